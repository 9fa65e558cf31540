package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/dto"
	"github.com/ignatzorin/freelance-escrow/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-escrow/internal/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/service"
)

type WalletHandler struct {
	wallets *service.WalletService
}

func NewWalletHandler(wallets *service.WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// Balances GET /wallet/balances
func (h *WalletHandler) Balances(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	balances, err := h.wallets.Balances(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewWalletBalances(balances))
}

// Deposit POST /wallet/deposit
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.DepositRequest
	if !common.BindJSON(c, &req) {
		return
	}
	currency, err := valueobject.NewCurrency(req.Currency)
	if err != nil {
		response.Error(c, err)
		return
	}

	balance, err := h.wallets.Deposit(c.Request.Context(), userID, currency, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NewWalletBalances([]entity.WalletBalance{*balance})[0])
}
