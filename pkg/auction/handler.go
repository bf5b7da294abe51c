package auction

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/custodian"
	"vaultyard/pkg/response"
)

type AuctionHandler struct {
	service AuctionService
}

func NewAuctionHandler(service AuctionService) *AuctionHandler {
	return &AuctionHandler{service: service}
}

func (h *AuctionHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/auctions", h.startAuction)
	router.POST("/auctions/:id/bids", h.placeBid)
	router.POST("/auctions/:id/cancel", h.cancelAuction)
	router.POST("/auctions/:id/finalize", h.finalizeAuction)
	router.POST("/auctions/:id/forfeit", h.forfeitCollateral)
	router.GET("/auctions/:id", h.getAuction)
	router.POST("/returns/withdraw", h.withdrawReturns)
	router.GET("/returns/:uuid", h.getPendingReturn)
}

type startAuctionRequest struct {
	SellerUUID      string `json:"seller_uuid" binding:"required"`
	AssetID         int64  `json:"asset_id" binding:"required"`
	MinBid          int64  `json:"min_bid" binding:"required"`
	DurationSeconds int64  `json:"duration_seconds" binding:"required"`
}

// @Summary      Start a timed auction
// @Description  Locks the asset with the custodian and opens an ascending-price auction with a hard deadline
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Param        request  body      startAuctionRequest  true  "Auction parameters"
// @Success      201  {object}  response.APIResponse "Auction started"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Seller does not own the asset"
// @Failure      409  {object}  response.APIResponse "Asset already has an active auction"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /auctions [post]
func (h *AuctionHandler) startAuction(c *gin.Context) {
	var req startAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}
	if _, err := uuid.Parse(req.SellerUUID); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid seller uuid", nil)
		return
	}

	a, err := h.service.StartAuction(c.Request.Context(), req.SellerUUID, req.AssetID, req.MinBid,
		time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		switch err {
		case ErrInvalidBid, ErrDurationTooShort:
			response.SendAPIResponse(c, http.StatusBadRequest, false, err.Error(), nil)
		case ErrNotOwner:
			response.SendAPIResponse(c, http.StatusForbidden, false, "seller does not own the asset", nil)
		case ErrAuctionExists, custodian.ErrAlreadyLocked:
			response.SendAPIResponse(c, http.StatusConflict, false, "asset already has an active auction", nil)
		default:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "auction started", a)
}

type placeBidRequest struct {
	BidderUUID string `json:"bidder_uuid" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
}

// @Summary      Place a bid
// @Description  Escrows the bid amount; the displaced highest bidder is credited to pending returns
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Param        id       path      int             true  "Asset ID"
// @Param        request  body      placeBidRequest true  "Bid"
// @Success      200  {object}  response.APIResponse "Bid accepted"
// @Failure      400  {object}  response.APIResponse "Bid too low or invalid request"
// @Failure      403  {object}  response.APIResponse "Seller cannot bid"
// @Failure      404  {object}  response.APIResponse "No active auction for asset"
// @Failure      409  {object}  response.APIResponse "Auction has ended"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /auctions/{id}/bids [post]
func (h *AuctionHandler) placeBid(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	err = h.service.PlaceBid(c.Request.Context(), req.BidderUUID, assetID, req.Amount)
	if err != nil {
		switch err {
		case ErrNoActiveAuction:
			response.SendAPIResponse(c, http.StatusNotFound, false, "no active auction for asset", nil)
		case ErrAuctionEnded:
			response.SendAPIResponse(c, http.StatusConflict, false, "auction has ended", nil)
		case ErrSellerCannotBid:
			response.SendAPIResponse(c, http.StatusForbidden, false, "seller cannot bid on their own auction", nil)
		case ErrBidTooLow:
			response.SendAPIResponse(c, http.StatusBadRequest, false, err.Error(), nil)
		default:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "bid accepted", nil)
}

type cancelAuctionRequest struct {
	CallerUUID string `json:"caller_uuid" binding:"required"`
}

// @Summary      Cancel an auction
// @Description  Seller or administrator cancels an auction that has received no bids; the asset returns to the seller
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Param        X-Admin-Key  header    string                false "Administrator API key (for admin cancellation)"
// @Param        id           path      int                   true  "Asset ID"
// @Param        request      body      cancelAuctionRequest  true  "Cancellation request"
// @Success      200  {object}  response.APIResponse "Auction cancelled"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Caller is not the seller"
// @Failure      404  {object}  response.APIResponse "No active auction for asset"
// @Failure      409  {object}  response.APIResponse "Auction already has bids"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /auctions/{id}/cancel [post]
func (h *AuctionHandler) cancelAuction(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	var req cancelAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	err = h.service.CancelAuction(c.Request.Context(), req.CallerUUID, c.GetHeader("X-Admin-Key"), assetID)
	if err != nil {
		switch err {
		case ErrNoActiveAuction:
			response.SendAPIResponse(c, http.StatusNotFound, false, "no active auction for asset", nil)
		case ErrNotSeller:
			response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the seller", nil)
		case ErrHasBids:
			response.SendAPIResponse(c, http.StatusConflict, false, "auction already has bids", nil)
		default:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "auction cancelled", nil)
}

// @Summary      Finalize an auction
// @Description  Settles a past-deadline auction: fee to treasury, royalty to its recipient, proceeds to the seller, asset to the winner
// @Tags         auctions
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  response.APIResponse "Auction settled"
// @Failure      400  {object}  response.APIResponse "Invalid asset ID"
// @Failure      404  {object}  response.APIResponse "No active auction for asset"
// @Failure      409  {object}  response.APIResponse "Auction end time not reached"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /auctions/{id}/finalize [post]
func (h *AuctionHandler) finalizeAuction(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	settlement, err := h.service.FinalizeAuction(c.Request.Context(), assetID)
	if err != nil {
		switch err {
		case ErrNoActiveAuction:
			response.SendAPIResponse(c, http.StatusNotFound, false, "no active auction for asset", nil)
		case ErrTooEarly:
			response.SendAPIResponse(c, http.StatusConflict, false, "auction end time has not been reached", nil)
		case ErrFeesExceedPrice:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		default:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "auction settled", settlement)
}

type forfeitCollateralRequest struct {
	CallerUUID string `json:"caller_uuid" binding:"required"`
}

// @Summary      Forfeit auction collateral
// @Description  Administrator emergency path: returns the asset to the seller and credits any standing bid to pending returns
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Param        X-Admin-Key  header    string                    true  "Administrator API key"
// @Param        id           path      int                       true  "Asset ID"
// @Param        request      body      forfeitCollateralRequest  true  "Forfeiture request"
// @Success      200  {object}  response.APIResponse "Collateral forfeited"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Caller is not the administrator"
// @Failure      404  {object}  response.APIResponse "No active auction for asset"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /auctions/{id}/forfeit [post]
func (h *AuctionHandler) forfeitCollateral(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	var req forfeitCollateralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	err = h.service.ForfeitCollateral(c.Request.Context(), req.CallerUUID, c.GetHeader("X-Admin-Key"), assetID)
	if err != nil {
		switch err {
		case admin.ErrNotAdmin:
			response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the administrator", nil)
		case ErrNoActiveAuction:
			response.SendAPIResponse(c, http.StatusNotFound, false, "no active auction for asset", nil)
		default:
			response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "collateral forfeited", nil)
}

// @Summary      Get auction status
// @Description  Returns the latest auction record for an asset
// @Tags         auctions
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  response.APIResponse "Auction fetched"
// @Failure      400  {object}  response.APIResponse "Invalid asset ID"
// @Failure      404  {object}  response.APIResponse "No auction found for asset"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /auctions/{id} [get]
func (h *AuctionHandler) getAuction(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	a, err := h.service.GetAuction(c.Request.Context(), assetID)
	if err != nil {
		if err == ErrAuctionNotFound {
			response.SendAPIResponse(c, http.StatusNotFound, false, "no auction found for asset", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "auction fetched", a)
}

type withdrawReturnsRequest struct {
	CallerUUID string `json:"caller_uuid" binding:"required"`
}

// @Summary      Withdraw pending returns
// @Description  Pays out the caller's accumulated outbid refunds; a repeat call without a new credit transfers nothing
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Param        request  body      withdrawReturnsRequest  true  "Withdrawal request"
// @Success      200  {object}  response.APIResponse "Returns withdrawn"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /returns/withdraw [post]
func (h *AuctionHandler) withdrawReturns(c *gin.Context) {
	var req withdrawReturnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}
	if _, err := uuid.Parse(req.CallerUUID); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid caller uuid", nil)
		return
	}

	amount, err := h.service.WithdrawReturns(c.Request.Context(), req.CallerUUID)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "returns withdrawn", gin.H{"amount": amount})
}

// @Summary      Get pending returns balance
// @Description  Returns the refundable amount accumulated for a bidder
// @Tags         auctions
// @Produce      json
// @Param        uuid  path      string  true  "Bidder UUID"
// @Success      200  {object}  response.APIResponse "Pending returns fetched"
// @Failure      400  {object}  response.APIResponse "Invalid UUID"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /returns/{uuid} [get]
func (h *AuctionHandler) getPendingReturn(c *gin.Context) {
	bidder := c.Param("uuid")
	if _, err := uuid.Parse(bidder); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid bidder uuid", nil)
		return
	}

	amount, err := h.service.GetPendingReturn(c.Request.Context(), bidder)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "pending returns fetched", gin.H{"amount": amount})
}
