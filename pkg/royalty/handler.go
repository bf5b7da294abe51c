package royalty

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/response"
)

type PolicyHandler struct {
	service SplitterService
}

func NewPolicyHandler(service SplitterService) *PolicyHandler {
	return &PolicyHandler{service: service}
}

func (h *PolicyHandler) RegisterRoutes(router *gin.Engine) {
	router.PUT("/royalties/:id", h.setPolicy)
	router.GET("/royalties/:id", h.getPolicy)
}

type setPolicyRequest struct {
	CallerUUID    string `json:"caller_uuid" binding:"required"`
	RecipientUUID string `json:"recipient_uuid" binding:"required"`
	Bps           int    `json:"bps"`
}

// @Summary      Set royalty policy
// @Description  Administrator-only configuration of the per-asset royalty recipient and basis points
// @Tags         royalty
// @Accept       json
// @Produce      json
// @Param        id           path      int               true  "Asset ID"
// @Param        X-Admin-Key  header    string            true  "Administrator API key"
// @Param        request      body      setPolicyRequest  true  "Royalty policy"
// @Success      200  {object}  response.APIResponse "Policy set"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      403  {object}  response.APIResponse "Caller is not the administrator"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /royalties/{id} [put]
func (h *PolicyHandler) setPolicy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	var req setPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	if _, err := uuid.Parse(req.RecipientUUID); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid recipient uuid", nil)
		return
	}

	err = h.service.SetPolicy(c.Request.Context(), req.CallerUUID, c.GetHeader("X-Admin-Key"), Policy{
		AssetID:       id,
		RecipientUUID: req.RecipientUUID,
		Bps:           req.Bps,
	})
	if err != nil {
		if err == admin.ErrNotAdmin {
			response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the administrator", nil)
			return
		}
		if err == ErrInvalidBps {
			response.SendAPIResponse(c, http.StatusBadRequest, false, "bps must be between 0 and 10000", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "royalty policy set", nil)
}

// @Summary      Get royalty policy
// @Description  Retrieves the royalty policy configured for an asset
// @Tags         royalty
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  response.APIResponse{data=Policy} "Policy fetched"
// @Failure      400  {object}  response.APIResponse "Invalid asset ID"
// @Failure      404  {object}  response.APIResponse "Policy not found"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /royalties/{id} [get]
func (h *PolicyHandler) getPolicy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	policy, err := h.service.GetPolicy(c.Request.Context(), id)
	if err != nil {
		if err == ErrPolicyNotFound {
			response.SendAPIResponse(c, http.StatusNotFound, false, "royalty policy not found", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "royalty policy fetched", policy)
}
