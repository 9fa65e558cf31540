package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/dto"
	"github.com/ignatzorin/freelance-escrow/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-escrow/internal/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/project"
	"github.com/ignatzorin/freelance-escrow/internal/validation"
)

// ProjectHandler обслуживает проекты, их этапы и эскроу.
type ProjectHandler struct {
	projects *project.StateMachine
	ledger   *escrow.Ledger
}

func NewProjectHandler(projects *project.StateMachine, ledger *escrow.Ledger) *ProjectHandler {
	return &ProjectHandler{projects: projects, ledger: ledger}
}

// StartProject POST /projects
func (h *ProjectHandler) StartProject(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.StartProjectRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateMilestoneCount(len(req.Milestones)); err != nil {
		response.Error(c, apperror.New(apperror.ErrCodeValidation, err.Error()))
		return
	}

	specs := make([]entity.MilestoneSpec, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		specs = append(specs, entity.MilestoneSpec{Description: m.Description, Amount: m.Amount})
	}
	p, err := h.projects.StartProject(c.Request.Context(), project.StartProjectInput{
		JobID:        req.JobID,
		ClientID:     userID,
		FreelancerID: req.FreelancerID,
		Budget:       req.Budget,
		Deadline:     req.Deadline,
		Milestones:   specs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewProjectResponse(p))
}

// ListMine GET /projects/my
func (h *ProjectHandler) ListMine(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	projects, err := h.projects.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.NewProjectList(projects), len(projects), limit, offset)
}

// GetProject GET /projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	p, ok := h.loadVisible(c)
	if !ok {
		return
	}
	response.Success(c, dto.NewProjectResponse(p))
}

// Fund POST /projects/:id/fund
func (h *ProjectHandler) Fund(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	projectID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.FundRequest
	if !common.BindJSON(c, &req) {
		return
	}
	currency, err := valueobject.NewCurrency(req.Currency)
	if err != nil {
		response.Error(c, err)
		return
	}

	if _, err := h.ledger.Fund(c.Request.Context(), projectID, userID, currency, req.Amount); err != nil {
		response.Error(c, err)
		return
	}
	h.respondEscrow(c, projectID)
}

// Escrow GET /projects/:id/escrow
func (h *ProjectHandler) Escrow(c *gin.Context) {
	p, ok := h.loadVisible(c)
	if !ok {
		return
	}
	h.respondEscrow(c, p.ID)
}

// CompleteMilestone POST /projects/:id/milestones/:index/complete
func (h *ProjectHandler) CompleteMilestone(c *gin.Context) {
	h.milestoneAction(c, h.projects.MarkMilestoneCompleted)
}

// ApproveMilestone POST /projects/:id/milestones/:index/approve
func (h *ProjectHandler) ApproveMilestone(c *gin.Context) {
	h.milestoneAction(c, h.projects.ApproveMilestone)
}

// DisputeMilestone POST /projects/:id/milestones/:index/dispute
func (h *ProjectHandler) DisputeMilestone(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	projectID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	index, ok := common.IndexParam(c, "index")
	if !ok {
		return
	}
	var req dto.DisputeMilestoneRequest
	if c.Request.ContentLength > 0 && !common.BindJSON(c, &req) {
		return
	}
	if req.ReasonRef != "" {
		if err := validation.ValidateReference("reason_ref", req.ReasonRef); err != nil {
			response.Error(c, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error()))
			return
		}
	}

	d, err := h.projects.DisputeMilestone(c.Request.Context(), projectID, index, req.ReasonRef, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewDisputeResponse(d))
}

type milestoneFunc func(ctx context.Context, projectID uuid.UUID, index int, caller uuid.UUID) (*entity.Project, error)

func (h *ProjectHandler) milestoneAction(c *gin.Context, action milestoneFunc) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	projectID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	index, ok := common.IndexParam(c, "index")
	if !ok {
		return
	}

	p, err := action(c.Request.Context(), projectID, index, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewProjectResponse(p))
}

// loadVisible загружает проект, доступный только его участникам.
func (h *ProjectHandler) loadVisible(c *gin.Context) (*entity.Project, bool) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return nil, false
	}
	projectID, ok := common.UUIDParam(c, "id")
	if !ok {
		return nil, false
	}

	p, err := h.projects.Get(c.Request.Context(), projectID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !p.IsParticipant(userID) {
		response.Error(c, apperror.ErrNotParticipant)
		return nil, false
	}
	return p, true
}

func (h *ProjectHandler) respondEscrow(c *gin.Context, projectID uuid.UUID) {
	ctx := c.Request.Context()
	account, err := h.ledger.Account(ctx, projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.ledger.Entries(ctx, projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewEscrowResponse(projectID, account, entries))
}
