package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibeboardhq/vibeboard/backend/internal/cache"
	"github.com/vibeboardhq/vibeboard/backend/internal/products"
)

type productPayload struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Tagline               string `json:"tagline,omitempty"`
	Description           string `json:"description,omitempty"`
	URL                   string `json:"url,omitempty"`
	IconURL               string `json:"icon_url,omitempty"`
	BannerURL             string `json:"banner_url,omitempty"`
	DemoURL               string `json:"demo_url,omitempty"`
	VideoURL              string `json:"video_url,omitempty"`
	Tools                 string `json:"tools,omitempty"`
	BuildTime             string `json:"build_time,omitempty"`
	Category              string `json:"category,omitempty"`
	SubmitterID           string `json:"submitter_id"`
	OwnerID               string `json:"owner_id,omitempty"`
	ProxyCreatorName      string `json:"proxy_creator_name,omitempty"`
	ProxyCreatorAvatarURL string `json:"proxy_creator_avatar_url,omitempty"`
	ClaimStatus           string `json:"claim_status"`
	VoteCount             int64  `json:"vote_count"`
	VibeScore             int64  `json:"vibe_score"`
	Featured              bool   `json:"featured"`
	CreatedAt             int64  `json:"created_at_s"`
	UpdatedAt             int64  `json:"updated_at_s"`
}

func toProductPayload(product products.Product) productPayload {
	return productPayload{
		ID:                    product.ID,
		Name:                  product.Name,
		Tagline:               product.Tagline,
		Description:           product.Description,
		URL:                   product.URL,
		IconURL:               product.IconURL,
		BannerURL:             product.BannerURL,
		DemoURL:               product.DemoURL,
		VideoURL:              product.VideoURL,
		Tools:                 product.Tools,
		BuildTime:             product.BuildTime,
		Category:              product.Category,
		SubmitterID:           product.SubmitterID,
		OwnerID:               product.Owner(),
		ProxyCreatorName:      product.ProxyCreatorName,
		ProxyCreatorAvatarURL: product.ProxyCreatorAvatarURL,
		ClaimStatus:           string(product.ClaimStatus),
		VoteCount:             product.VoteCount,
		VibeScore:             product.VibeScore,
		Featured:              product.Featured,
		CreatedAt:             product.CreatedAt.UTC().Unix(),
		UpdatedAt:             product.UpdatedAt.UTC().Unix(),
	}
}

func toProductPayloads(items []products.Product) []productPayload {
	payloads := make([]productPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, toProductPayload(item))
	}
	return payloads
}

// handleListProducts serves the directory through the shared cache: a fresh
// entry is returned as is, anything else is refetched and re-cached.
// Realtime change events mark the entry stale, so every client sees other
// clients' writes on its next request.
func (h *httpHandler) handleListProducts(c *gin.Context) {
	if cached, ok := h.cache.GetFresh(cache.KeyProductList); ok {
		if items, ok := cached.([]products.Product); ok {
			c.JSON(http.StatusOK, gin.H{"products": toProductPayloads(items)})
			return
		}
	}

	items, err := h.products.List(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.cache.Set(cache.KeyProductList, items)
	c.JSON(http.StatusOK, gin.H{"products": toProductPayloads(items)})
}

func (h *httpHandler) handleGetProduct(c *gin.Context) {
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}

	product, err := h.products.Get(c.Request.Context(), productID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	h.cache.Set(cache.KeyProduct(product.ID), product)
	c.JSON(http.StatusOK, toProductPayload(product))
}

type submitProductPayload struct {
	Name                  string `json:"name"`
	Tagline               string `json:"tagline"`
	Description           string `json:"description"`
	URL                   string `json:"url"`
	IconURL               string `json:"icon_url"`
	BannerURL             string `json:"banner_url"`
	DemoURL               string `json:"demo_url"`
	VideoURL              string `json:"video_url"`
	Tools                 string `json:"tools"`
	BuildTime             string `json:"build_time"`
	Category              string `json:"category"`
	ProxyCreatorName      string `json:"proxy_creator_name"`
	ProxyCreatorAvatarURL string `json:"proxy_creator_avatar_url"`
}

func (h *httpHandler) handleSubmitProduct(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var request submitProductPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	product, err := h.products.Submit(c.Request.Context(), userID, products.SubmitRequest{
		Name:                  request.Name,
		Tagline:               request.Tagline,
		Description:           request.Description,
		URL:                   request.URL,
		IconURL:               request.IconURL,
		BannerURL:             request.BannerURL,
		DemoURL:               request.DemoURL,
		VideoURL:              request.VideoURL,
		Tools:                 request.Tools,
		BuildTime:             request.BuildTime,
		Category:              request.Category,
		ProxyCreatorName:      request.ProxyCreatorName,
		ProxyCreatorAvatarURL: request.ProxyCreatorAvatarURL,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toProductPayload(product))
}

type updateProductPayload struct {
	Name        *string `json:"name"`
	Tagline     *string `json:"tagline"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	IconURL     *string `json:"icon_url"`
	BannerURL   *string `json:"banner_url"`
	DemoURL     *string `json:"demo_url"`
	VideoURL    *string `json:"video_url"`
	Tools       *string `json:"tools"`
	BuildTime   *string `json:"build_time"`
	Category    *string `json:"category"`
}

func (h *httpHandler) handleUpdateProduct(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}

	var request updateProductPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	product, err := h.products.Update(c.Request.Context(), userID, productID, products.Patch{
		Name:        request.Name,
		Tagline:     request.Tagline,
		Description: request.Description,
		URL:         request.URL,
		IconURL:     request.IconURL,
		BannerURL:   request.BannerURL,
		DemoURL:     request.DemoURL,
		VideoURL:    request.VideoURL,
		Tools:       request.Tools,
		BuildTime:   request.BuildTime,
		Category:    request.Category,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.cache.Invalidate(cache.KeyProductList, cache.KeyProduct(product.ID), cache.KeyMyProducts(userID.String()))
	c.JSON(http.StatusOK, toProductPayload(product))
}

func (h *httpHandler) handleListMine(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	items, err := h.products.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": toProductPayloads(items)})
}

func (h *httpHandler) handleRequestClaim(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}

	product, err := h.products.RequestClaim(c.Request.Context(), userID, productID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductPayload(product))
}

func (h *httpHandler) handleApproveClaim(c *gin.Context) {
	h.handleClaimDecision(c, true)
}

func (h *httpHandler) handleRejectClaim(c *gin.Context) {
	h.handleClaimDecision(c, false)
}

func (h *httpHandler) handleClaimDecision(c *gin.Context, approve bool) {
	moderatorID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}

	var product products.Product
	var err error
	if approve {
		product, err = h.products.ApproveClaim(c.Request.Context(), moderatorID, productID)
	} else {
		product, err = h.products.RejectClaim(c.Request.Context(), moderatorID, productID)
	}
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductPayload(product))
}

type featurePayload struct {
	Featured bool `json:"featured"`
}

func (h *httpHandler) handleSetFeatured(c *gin.Context) {
	moderatorID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}

	var request featurePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.products.SetFeatured(c.Request.Context(), moderatorID, productID, request.Featured); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"featured": request.Featured})
}

func (h *httpHandler) handleVibe(c *gin.Context) {
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}

	score, err := h.products.IncrementVibeScore(c.Request.Context(), productID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vibe_score": score})
}

type screenshotPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	ImageURL  string `json:"image_url"`
	SortOrder int    `json:"sort_order"`
	CreatedAt int64  `json:"created_at_s"`
}

func toScreenshotPayload(screenshot products.Screenshot) screenshotPayload {
	return screenshotPayload{
		ID:        screenshot.ID,
		ProductID: screenshot.ProductID,
		ImageURL:  screenshot.ImageURL,
		SortOrder: screenshot.SortOrder,
		CreatedAt: screenshot.CreatedAt.UTC().Unix(),
	}
}

func (h *httpHandler) handleListScreenshots(c *gin.Context) {
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}

	items, err := h.products.ListScreenshots(c.Request.Context(), productID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	payloads := make([]screenshotPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, toScreenshotPayload(item))
	}
	c.JSON(http.StatusOK, gin.H{"screenshots": payloads})
}

type addScreenshotPayload struct {
	ImageURL string `json:"image_url"`
}

func (h *httpHandler) handleAddScreenshot(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}

	var request addScreenshotPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ImageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	screenshot, err := h.products.AddScreenshot(c.Request.Context(), userID, productID, request.ImageURL)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toScreenshotPayload(screenshot))
}

func (h *httpHandler) handleRemoveScreenshot(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	screenshotID := c.Param("id")

	if err := h.products.RemoveScreenshot(c.Request.Context(), userID, screenshotID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
