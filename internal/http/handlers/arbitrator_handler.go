package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/dto"
	"github.com/ignatzorin/freelance-escrow/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-escrow/internal/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/arbitration"
	"github.com/ignatzorin/freelance-escrow/internal/validation"
)

type ArbitratorHandler struct {
	pool *arbitration.Pool
}

func NewArbitratorHandler(pool *arbitration.Pool) *ArbitratorHandler {
	return &ArbitratorHandler{pool: pool}
}

// Register POST /arbitrators/register
func (h *ArbitratorHandler) Register(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.RegisterArbitratorRequest
	if c.Request.ContentLength > 0 && !common.BindJSON(c, &req) {
		return
	}
	if req.ProfileRef != "" {
		if err := validation.ValidateReference("profile_ref", req.ProfileRef); err != nil {
			response.Error(c, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error()))
			return
		}
	}

	a, err := h.pool.Register(c.Request.Context(), userID, req.ProfileRef)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewArbitratorResponse(a))
}

// Deregister DELETE /arbitrators/:address
func (h *ArbitratorHandler) Deregister(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	address, ok := common.UUIDParam(c, "address")
	if !ok {
		return
	}

	a, err := h.pool.Deregister(c.Request.Context(), address, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewArbitratorResponse(a))
}

// ListActive GET /arbitrators/active
func (h *ArbitratorHandler) ListActive(c *gin.Context) {
	members, err := h.pool.ActiveSet(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}
