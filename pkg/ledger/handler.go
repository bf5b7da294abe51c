package ledger

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/response"
)

type LedgerHandler struct {
	service LedgerService
}

func NewLedgerHandler(service LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

func (h *LedgerHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/ledger/accounts", h.registerAccount)
	router.POST("/ledger/deposit", h.deposit)
	router.POST("/ledger/approve", h.approve)
	router.GET("/ledger/accounts/:uuid/balance", h.getBalance)
}

type registerAccountRequest struct {
	AccountUUID string `json:"account_uuid" binding:"required"`
	Email       string `json:"email"`
}

// @Summary      Register a ledger account
// @Description  Creates (or updates the contact email of) a fungible-ledger account
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        request body registerAccountRequest true "Account registration request"
// @Success      201  {object}  response.APIResponse{data=Account} "Account registered"
// @Failure      400  {object}  response.APIResponse "Invalid request payload"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /ledger/accounts [post]
func (h *LedgerHandler) registerAccount(c *gin.Context) {
	var req registerAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	if _, err := uuid.Parse(req.AccountUUID); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid account uuid", nil)
		return
	}

	account, err := h.service.RegisterAccount(c.Request.Context(), req.AccountUUID, req.Email)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "account registered", account)
}

type depositRequest struct {
	CallerUUID string `json:"caller_uuid" binding:"required"`
	ToUUID     string `json:"to_uuid" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
}

// @Summary      Deposit value into an account
// @Description  Administrator-only credit of an account balance
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        X-Admin-Key  header    string          true  "Administrator API key"
// @Param        request      body      depositRequest  true  "Deposit request"
// @Success      200  {object}  response.APIResponse "Deposit applied"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Caller is not the administrator"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /ledger/deposit [post]
func (h *LedgerHandler) deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	err := h.service.Deposit(c.Request.Context(), req.CallerUUID, c.GetHeader("X-Admin-Key"), req.ToUUID, req.Amount)
	if err != nil {
		if err == admin.ErrNotAdmin {
			response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the administrator", nil)
			return
		}
		if err == ErrInvalidAmount {
			response.SendAPIResponse(c, http.StatusBadRequest, false, "amount must be positive", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "deposit applied", nil)
}

type approveRequest struct {
	OwnerUUID   string `json:"owner_uuid" binding:"required"`
	SpenderUUID string `json:"spender_uuid" binding:"required"`
	Amount      int64  `json:"amount"`
}

// @Summary      Approve a spender allowance
// @Description  Grants a pool identity permission to pull up to the given amount from the owner
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        request body approveRequest true "Allowance approval request"
// @Success      200  {object}  response.APIResponse "Allowance set"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /ledger/approve [post]
func (h *LedgerHandler) approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	if _, err := uuid.Parse(req.OwnerUUID); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid owner uuid", nil)
		return
	}

	if err := h.service.Approve(c.Request.Context(), req.OwnerUUID, req.SpenderUUID, req.Amount); err != nil {
		if err == ErrInvalidAmount {
			response.SendAPIResponse(c, http.StatusBadRequest, false, "amount cannot be negative", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "allowance set", nil)
}

// @Summary      Get account balance
// @Description  Retrieves the fungible balance of an account
// @Tags         ledger
// @Produce      json
// @Param        uuid  path  string  true  "Account UUID"
// @Success      200  {object}  response.APIResponse "Balance fetched"
// @Failure      400  {object}  response.APIResponse "Invalid account UUID"
// @Failure      404  {object}  response.APIResponse "Account not found"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /ledger/accounts/{uuid}/balance [get]
func (h *LedgerHandler) getBalance(c *gin.Context) {
	accountUUID := c.Param("uuid")
	if _, err := uuid.Parse(accountUUID); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid account uuid", nil)
		return
	}

	balance, err := h.service.BalanceOf(c.Request.Context(), accountUUID)
	if err != nil {
		if err == ErrAccountNotFound {
			response.SendAPIResponse(c, http.StatusNotFound, false, "account not found", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "balance fetched", gin.H{"balance": balance})
}
