package registry

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vaultyard/pkg/response"
)

type AssetHandler struct {
	service AssetService
}

func NewAssetHandler(service AssetService) *AssetHandler {
	return &AssetHandler{service: service}
}

func (h *AssetHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/assets", h.mintAsset)
	router.GET("/assets/:id", h.getAsset)
}

type mintAssetRequest struct {
	OwnerUUID   string `json:"owner_uuid" binding:"required"`
	Name        string `json:"name" binding:"required"`
	MetadataURL string `json:"metadata_url"`
}

// @Summary      Mint a new asset
// @Description  Registers a new uniquely-identified asset under the given owner
// @Tags         registry
// @Accept       json
// @Produce      json
// @Param        request body mintAssetRequest true "Asset mint request"
// @Success      201  {object}  response.APIResponse{data=Asset} "Asset minted"
// @Failure      400  {object}  response.APIResponse "Invalid request payload"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /assets [post]
func (h *AssetHandler) mintAsset(c *gin.Context) {
	var req mintAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	if _, err := uuid.Parse(req.OwnerUUID); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid owner uuid", nil)
		return
	}

	asset, err := h.service.Mint(c.Request.Context(), req.OwnerUUID, req.Name, req.MetadataURL)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "asset minted", asset)
}

// @Summary      Get asset by ID
// @Description  Retrieves a registered asset and its owner of record
// @Tags         registry
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  response.APIResponse{data=Asset} "Asset fetched"
// @Failure      400  {object}  response.APIResponse "Invalid asset ID"
// @Failure      404  {object}  response.APIResponse "Asset not found"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /assets/{id} [get]
func (h *AssetHandler) getAsset(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	asset, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if err == ErrAssetNotFound {
			response.SendAPIResponse(c, http.StatusNotFound, false, "asset not found", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "asset fetched", asset)
}
