package custodian

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/response"
)

type CustodyHandler struct {
	service CustodyService
}

func NewCustodyHandler(service CustodyService) *CustodyHandler {
	return &CustodyHandler{service: service}
}

func (h *CustodyHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/custodian/trust", h.grantTrust)
	router.GET("/custodian/assets/:id/locked", h.isLocked)
}

type grantTrustRequest struct {
	CallerUUID string `json:"caller_uuid" binding:"required"`
	TrustedID  string `json:"trusted_id" binding:"required"`
	Enabled    *bool  `json:"enabled" binding:"required"`
}

// @Summary      Grant or revoke custodian trust
// @Description  Administrator-only toggle of a caller's permission to move assets through the custodian
// @Tags         custodian
// @Accept       json
// @Produce      json
// @Param        X-Admin-Key  header    string             true  "Administrator API key"
// @Param        request      body      grantTrustRequest  true  "Trust grant request"
// @Success      200  {object}  response.APIResponse "Trust updated"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Caller is not the administrator"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /custodian/trust [post]
func (h *CustodyHandler) grantTrust(c *gin.Context) {
	var req grantTrustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	err := h.service.GrantTrust(c.Request.Context(), req.CallerUUID, c.GetHeader("X-Admin-Key"), req.TrustedID, *req.Enabled)
	if err != nil {
		if err == admin.ErrNotAdmin {
			response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the administrator", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "trust updated", nil)
}

// @Summary      Check custody status
// @Description  Reports whether an asset is currently held by the custodian
// @Tags         custodian
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  response.APIResponse "Custody status fetched"
// @Failure      400  {object}  response.APIResponse "Invalid asset ID"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /custodian/assets/{id}/locked [get]
func (h *CustodyHandler) isLocked(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	locked, err := h.service.IsLocked(c.Request.Context(), id)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "custody status fetched", gin.H{"locked": locked})
}
