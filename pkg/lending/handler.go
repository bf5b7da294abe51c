package lending

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/custodian"
	"vaultyard/pkg/response"
)

type LendingHandler struct {
	service LendingService
}

func NewLendingHandler(service LendingService) *LendingHandler {
	return &LendingHandler{service: service}
}

func (h *LendingHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/loans", h.requestLoan)
	router.POST("/loans/:id/repayments", h.repayLoan)
	router.POST("/loans/:id/liquidate", h.liquidateLoan)
	router.POST("/loans/:id/withdraw-collateral", h.withdrawCollateral)
	router.GET("/loans/:id", h.getInstallmentStatus)
}

type requestLoanRequest struct {
	BorrowerUUID string `json:"borrower_uuid" binding:"required"`
	AssetID      int64  `json:"asset_id" binding:"required"`
	Amount       int64  `json:"amount" binding:"required"`
}

// @Summary      Request a collateralized loan
// @Description  Locks the asset as collateral and disburses the principal to the borrower
// @Tags         lending
// @Accept       json
// @Produce      json
// @Param        request  body      requestLoanRequest  true  "Loan request"
// @Success      201  {object}  response.APIResponse "Loan issued"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Borrower does not own the asset"
// @Failure      409  {object}  response.APIResponse "Asset already has an active loan"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /loans [post]
func (h *LendingHandler) requestLoan(c *gin.Context) {
	var req requestLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}
	if _, err := uuid.Parse(req.BorrowerUUID); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid borrower uuid", nil)
		return
	}

	loan, err := h.service.RequestLoan(c.Request.Context(), req.BorrowerUUID, req.AssetID, req.Amount)
	if err != nil {
		switch err {
		case ErrInvalidAmount:
			response.SendAPIResponse(c, http.StatusBadRequest, false, "amount must be positive", nil)
		case ErrNotOwner:
			response.SendAPIResponse(c, http.StatusForbidden, false, "borrower does not own the asset", nil)
		case ErrLoanExists, custodian.ErrAlreadyLocked:
			response.SendAPIResponse(c, http.StatusConflict, false, "asset already has an active loan", nil)
		default:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "loan issued", loan)
}

type repayLoanRequest struct {
	BorrowerUUID string `json:"borrower_uuid" binding:"required"`
	Amount       int64  `json:"amount" binding:"required"`
}

// @Summary      Repay a loan
// @Description  Applies a repayment capped at the outstanding balance and releases the collateral when fully repaid
// @Tags         lending
// @Accept       json
// @Produce      json
// @Param        id       path      int               true  "Asset ID"
// @Param        request  body      repayLoanRequest  true  "Repayment request"
// @Success      200  {object}  response.APIResponse "Repayment applied"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Caller is not the borrower"
// @Failure      404  {object}  response.APIResponse "No active loan for asset"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /loans/{id}/repayments [post]
func (h *LendingHandler) repayLoan(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	var req repayLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	result, err := h.service.RepayLoan(c.Request.Context(), req.BorrowerUUID, assetID, req.Amount)
	if err != nil {
		switch err {
		case ErrInvalidAmount:
			response.SendAPIResponse(c, http.StatusBadRequest, false, "amount must be positive", nil)
		case ErrNoActiveLoan:
			response.SendAPIResponse(c, http.StatusNotFound, false, "no active loan for asset", nil)
		case ErrNotBorrower:
			response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the borrower", nil)
		default:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "repayment applied", result)
}

type liquidateLoanRequest struct {
	CallerUUID    string `json:"caller_uuid" binding:"required"`
	RecipientUUID string `json:"recipient_uuid"`
}

// @Summary      Liquidate an expired loan
// @Description  Administrator-only forfeiture of the collateral once the loan deadline has passed
// @Tags         lending
// @Accept       json
// @Produce      json
// @Param        X-Admin-Key  header    string                true  "Administrator API key"
// @Param        id           path      int                   true  "Asset ID"
// @Param        request      body      liquidateLoanRequest  true  "Liquidation request"
// @Success      200  {object}  response.APIResponse "Loan liquidated"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Caller is not the administrator"
// @Failure      404  {object}  response.APIResponse "No active loan for asset"
// @Failure      409  {object}  response.APIResponse "Loan deadline has not passed"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /loans/{id}/liquidate [post]
func (h *LendingHandler) liquidateLoan(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	var req liquidateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	err = h.service.LiquidateLoan(c.Request.Context(), req.CallerUUID, c.GetHeader("X-Admin-Key"), assetID, req.RecipientUUID)
	if err != nil {
		switch err {
		case admin.ErrNotAdmin:
			response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the administrator", nil)
		case ErrNoActiveLoan:
			response.SendAPIResponse(c, http.StatusNotFound, false, "no active loan for asset", nil)
		case ErrNotExpired:
			response.SendAPIResponse(c, http.StatusConflict, false, "loan deadline has not passed", nil)
		default:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "loan liquidated", nil)
}

type withdrawCollateralRequest struct {
	BorrowerUUID  string `json:"borrower_uuid" binding:"required"`
	RecipientUUID string `json:"recipient_uuid"`
}

// @Summary      Withdraw collateral
// @Description  Releases held collateral back to the borrower once the loan is fully repaid
// @Tags         lending
// @Accept       json
// @Produce      json
// @Param        id       path      int                        true  "Asset ID"
// @Param        request  body      withdrawCollateralRequest  true  "Withdrawal request"
// @Success      200  {object}  response.APIResponse "Collateral released"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Caller is not the borrower"
// @Failure      404  {object}  response.APIResponse "No loan found for asset"
// @Failure      409  {object}  response.APIResponse "Loan is not fully repaid"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /loans/{id}/withdraw-collateral [post]
func (h *LendingHandler) withdrawCollateral(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	var req withdrawCollateralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	err = h.service.WithdrawCollateral(c.Request.Context(), req.BorrowerUUID, assetID, req.RecipientUUID)
	if err != nil {
		switch err {
		case ErrLoanNotFound:
			response.SendAPIResponse(c, http.StatusNotFound, false, "no loan found for asset", nil)
		case ErrNotBorrower:
			response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the borrower", nil)
		case ErrNotRepaid, custodian.ErrNotLocked:
			response.SendAPIResponse(c, http.StatusConflict, false, err.Error(), nil)
		default:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "collateral released", nil)
}

// @Summary      Get loan status
// @Description  Returns the latest loan for an asset with its installment schedule and payment history
// @Tags         lending
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  response.APIResponse "Loan status fetched"
// @Failure      400  {object}  response.APIResponse "Invalid asset ID"
// @Failure      404  {object}  response.APIResponse "No loan found for asset"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /loans/{id} [get]
func (h *LendingHandler) getInstallmentStatus(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	status, err := h.service.GetInstallmentStatus(c.Request.Context(), assetID)
	if err != nil {
		if err == ErrLoanNotFound {
			response.SendAPIResponse(c, http.StatusNotFound, false, "no loan found for asset", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "loan status fetched", status)
}
