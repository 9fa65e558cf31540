package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/dto"
	"github.com/ignatzorin/freelance-escrow/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-escrow/internal/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/service"
)

// ReputationHandler принимает отзывы и отдаёт репутацию пользователей.
type ReputationHandler struct {
	reputation *service.ReputationService
}

func NewReputationHandler(reputation *service.ReputationService) *ReputationHandler {
	return &ReputationHandler{reputation: reputation}
}

// SubmitFeedback POST /feedback
func (h *ReputationHandler) SubmitFeedback(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.FeedbackRequest
	if !common.BindJSON(c, &req) {
		return
	}

	fb, err := h.reputation.SubmitFeedback(c.Request.Context(), service.FeedbackInput{
		ProjectID: req.ProjectID,
		AuthorID:  userID,
		Score:     req.Score,
		Comment:   req.Comment,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewFeedbackResponse(fb))
}

// GetReputation GET /users/:id/reputation
func (h *ReputationHandler) GetReputation(c *gin.Context) {
	userID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	score, err := h.reputation.ReputationOf(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ReputationResponse{UserID: userID, Reputation: score})
}
