package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/dto"
	"github.com/ignatzorin/freelance-escrow/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-escrow/internal/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/storage"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/dispute"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/registry"
	"github.com/ignatzorin/freelance-escrow/internal/validation"
)

type DisputeHandler struct {
	engine   *dispute.Engine
	evidence *storage.EvidenceStorage
	registry *registry.Registry
}

func NewDisputeHandler(engine *dispute.Engine, evidence *storage.EvidenceStorage, reg *registry.Registry) *DisputeHandler {
	return &DisputeHandler{engine: engine, evidence: evidence, registry: reg}
}

// GetDispute GET /disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	disputeID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	d, err := h.engine.Get(c.Request.Context(), disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Спор видят стороны, панель и оператор.
	if !d.IsParty(userID) && !d.IsPanelMember(userID) && !h.registry.IsOperator(userID) {
		response.Error(c, apperror.ErrNotParticipant)
		return
	}
	response.Success(c, dto.NewDisputeResponse(d))
}

// ListAssigned GET /disputes/assigned
func (h *DisputeHandler) ListAssigned(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	disputes, err := h.engine.ListForArbitrator(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewDisputeList(disputes))
}

// SubmitEvidence POST /disputes/:id/evidence
func (h *DisputeHandler) SubmitEvidence(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	disputeID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.EvidenceRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateReference("evidence_ref", req.EvidenceRef); err != nil {
		response.Error(c, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error()))
		return
	}

	d, err := h.engine.SubmitEvidence(c.Request.Context(), disputeID, req.EvidenceRef, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewDisputeResponse(d))
}

// UploadEvidence POST /disputes/:id/evidence/upload (multipart, поле file)
func (h *DisputeHandler) UploadEvidence(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	disputeID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// Сторону проверяем до записи файла на диск.
	current, err := h.engine.Get(ctx, disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !current.IsParty(userID) {
		response.Error(c, apperror.ErrNotParticipant)
		return
	}

	// Запас на заголовки multipart.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.evidence.MaxUploadBytes()+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, apperror.New(apperror.ErrCodeValidation, "файл не передан или превышает лимит"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, apperror.ErrStorageFailed.WithCause(err))
		return
	}
	defer file.Close()

	stored, err := h.evidence.Save(ctx, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	d, err := h.engine.SubmitEvidence(ctx, disputeID, stored.Ref, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.EvidenceUploadResponse{
		Ref:         stored.Ref,
		Size:        stored.Size,
		ContentType: stored.ContentType,
		Dispute:     dto.NewDisputeResponse(d),
	})
}

// StartVoting POST /disputes/:id/voting
func (h *DisputeHandler) StartVoting(c *gin.Context) {
	h.transition(c, func(c *gin.Context, userID, disputeID uuid.UUID) (*entity.Dispute, error) {
		return h.engine.StartVoting(c.Request.Context(), disputeID, userID)
	})
}

// Vote POST /disputes/:id/votes
func (h *DisputeHandler) Vote(c *gin.Context) {
	var req dto.VoteRequest
	h.transition(c, func(c *gin.Context, userID, disputeID uuid.UUID) (*entity.Dispute, error) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, "ошибка валидации запроса: "+err.Error())
		}
		return h.engine.Vote(c.Request.Context(), disputeID, userID, *req.ForClient)
	})
}

// Finalize POST /disputes/:id/finalize
func (h *DisputeHandler) Finalize(c *gin.Context) {
	h.transition(c, func(c *gin.Context, _, disputeID uuid.UUID) (*entity.Dispute, error) {
		return h.engine.Finalize(c.Request.Context(), disputeID)
	})
}

func (h *DisputeHandler) transition(c *gin.Context, fn func(c *gin.Context, userID, disputeID uuid.UUID) (*entity.Dispute, error)) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	disputeID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	d, err := fn(c, userID, disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewDisputeResponse(d))
}
