package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/dto"
	"github.com/ignatzorin/freelance-escrow/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-escrow/internal/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/registry"
)

// AdminHandler управляет реестром платформы. Права владельца проверяет сам реестр.
type AdminHandler struct {
	registry *registry.Registry
}

func NewAdminHandler(reg *registry.Registry) *AdminHandler {
	return &AdminHandler{registry: reg}
}

// GetParams GET /admin/params
func (h *AdminHandler) GetParams(c *gin.Context) {
	response.Success(c, dto.NewParamsResponse(h.registry))
}

// UpdateParams PUT /admin/params
func (h *AdminHandler) UpdateParams(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.ParamsRequest
	if !common.BindJSON(c, &req) {
		return
	}

	if err := h.registry.SetParams(c.Request.Context(), userID, req.ToParams()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewParamsResponse(h.registry))
}

// SetReference PUT /admin/references/:component
func (h *AdminHandler) SetReference(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.ReferenceRequest
	if !common.BindJSON(c, &req) {
		return
	}

	component := registry.Component(c.Param("component"))
	if err := h.registry.SetReference(c.Request.Context(), userID, component, req.Address); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewParamsResponse(h.registry))
}
