package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibeboardhq/vibeboard/backend/internal/cache"
	"github.com/vibeboardhq/vibeboard/backend/internal/chronicles"
	"github.com/vibeboardhq/vibeboard/backend/internal/products"
	"github.com/vibeboardhq/vibeboard/backend/internal/profiles"
	"github.com/vibeboardhq/vibeboard/backend/internal/uploads"
	"github.com/vibeboardhq/vibeboard/backend/internal/votes"
)

type votePayload struct {
	HasVoted bool `json:"has_voted"`
}

// handleVoteToggle runs the optimistic toggle: the cached vote count and
// membership set are patched before the server write, rolled back if the
// write fails, and marked stale either way so the next read is
// authoritative.
func (h *httpHandler) handleVoteToggle(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}
	if h.votes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "votes_unavailable"})
		return
	}

	var request votePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	delta := int64(1)
	if request.HasVoted {
		delta = -1
	}

	listKey := cache.KeyProductList
	productKey := cache.KeyProduct(productID.String())
	votesKey := cache.KeyUserVotes(userID.String())

	tx := cache.Begin(h.cache, listKey, productKey, votesKey)
	tx.Apply(listKey, func(current interface{}) interface{} {
		return patchListVoteCount(current, productID.String(), delta)
	})
	tx.Apply(productKey, func(current interface{}) interface{} {
		return patchProductVoteCount(current, delta)
	})
	tx.Apply(votesKey, func(current interface{}) interface{} {
		return flipVoteMembership(current, productID.String(), !request.HasVoted)
	})

	var result votes.ToggleResult
	err := tx.Commit(func() error {
		settled, toggleErr := h.votes.Toggle(c.Request.Context(), productID.String(), userID.String(), request.HasVoted)
		if toggleErr != nil {
			return toggleErr
		}
		result = settled
		return nil
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"voted": result.Voted, "vote_count": result.VoteCount})
}

func patchListVoteCount(current interface{}, productID string, delta int64) interface{} {
	items, ok := current.([]products.Product)
	if !ok {
		return current
	}
	patched := make([]products.Product, len(items))
	copy(patched, items)
	for i := range patched {
		if patched[i].ID == productID {
			patched[i].VoteCount += delta
		}
	}
	return patched
}

func patchProductVoteCount(current interface{}, delta int64) interface{} {
	product, ok := current.(products.Product)
	if !ok {
		return current
	}
	product.VoteCount += delta
	return product
}

func flipVoteMembership(current interface{}, productID string, voted bool) interface{} {
	existing, _ := current.(map[string]bool)
	patched := make(map[string]bool, len(existing)+1)
	for key, value := range existing {
		patched[key] = value
	}
	if voted {
		patched[productID] = true
	} else {
		delete(patched, productID)
	}
	return patched
}

func (h *httpHandler) handleListMyVotes(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if h.votes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "votes_unavailable"})
		return
	}

	ids, err := h.votes.ListMine(c.Request.Context(), userID.String())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	membership := make(map[string]bool, len(ids))
	for _, id := range ids {
		membership[id] = true
	}
	h.cache.Set(cache.KeyUserVotes(userID.String()), membership)
	c.JSON(http.StatusOK, gin.H{"product_ids": ids})
}

func (h *httpHandler) handleEnsureShortLink(c *gin.Context) {
	if _, ok := h.currentUserID(c); !ok {
		return
	}
	productID, ok := h.pathProductID(c)
	if !ok {
		return
	}
	if h.shortURLs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shortlinks_unavailable"})
		return
	}

	if _, err := h.products.Get(c.Request.Context(), productID); err != nil {
		h.respondServiceError(c, err)
		return
	}

	code, err := h.shortURLs.Ensure(c.Request.Context(), productID.String())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

func (h *httpHandler) handleShortLinkRedirect(c *gin.Context) {
	if h.shortURLs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shortlinks_unavailable"})
		return
	}

	productID, err := h.shortURLs.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/product/"+productID)
}

type profilePayload struct {
	UserID            string `json:"user_id,omitempty"`
	Username          string `json:"username"`
	Bio               string `json:"bio,omitempty"`
	AvatarURL         string `json:"avatar_url,omitempty"`
	WebsiteURL        string `json:"website_url,omitempty"`
	TwitterHandle     string `json:"twitter_handle,omitempty"`
	GitHubHandle      string `json:"github_handle,omitempty"`
	InvitedBy         string `json:"invited_by,omitempty"`
	FeaturedProductID string `json:"featured_product_id,omitempty"`
	Virtual           bool   `json:"virtual"`
}

func toProfilePayload(profile profiles.Profile) profilePayload {
	return profilePayload{
		UserID:            profile.UserID,
		Username:          profile.Username,
		Bio:               profile.Bio,
		AvatarURL:         profile.AvatarURL,
		WebsiteURL:        profile.WebsiteURL,
		TwitterHandle:     profile.TwitterHandle,
		GitHubHandle:      profile.GitHubHandle,
		InvitedBy:         profile.InvitedBy,
		FeaturedProductID: profile.FeaturedProductID,
		Virtual:           profile.Virtual,
	}
}

func (h *httpHandler) handleGetMaker(c *gin.Context) {
	if h.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profiles_unavailable"})
		return
	}

	profile, err := h.profiles.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfilePayload(profile))
}

type upsertProfilePayload struct {
	Username      string `json:"username"`
	Bio           string `json:"bio"`
	AvatarURL     string `json:"avatar_url"`
	WebsiteURL    string `json:"website_url"`
	TwitterHandle string `json:"twitter_handle"`
	GitHubHandle  string `json:"github_handle"`
	InvitedBy     string `json:"invited_by"`
}

func (h *httpHandler) handleUpsertProfile(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if h.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profiles_unavailable"})
		return
	}

	var request upsertProfilePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	profile, err := h.profiles.Upsert(c.Request.Context(), userID.String(), profiles.UpsertRequest{
		Username:      request.Username,
		Bio:           request.Bio,
		AvatarURL:     request.AvatarURL,
		WebsiteURL:    request.WebsiteURL,
		TwitterHandle: request.TwitterHandle,
		GitHubHandle:  request.GitHubHandle,
		InvitedBy:     request.InvitedBy,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfilePayload(profile))
}

type featureProductPayload struct {
	ProductID string `json:"product_id"`
}

func (h *httpHandler) handleFeatureProduct(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if h.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profiles_unavailable"})
		return
	}

	var request featureProductPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ProductID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.profiles.FeatureProduct(c.Request.Context(), userID.String(), request.ProductID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"featured_product_id": request.ProductID})
}

type chroniclePayload struct {
	ID          string `json:"id"`
	AuthorID    string `json:"author_id"`
	Title       string `json:"title"`
	Body        string `json:"body,omitempty"`
	PublishedAt int64  `json:"published_at_s"`
}

func toChroniclePayload(entry chronicles.Chronicle) chroniclePayload {
	return chroniclePayload{
		ID:          entry.ID,
		AuthorID:    entry.AuthorID,
		Title:       entry.Title,
		Body:        entry.Body,
		PublishedAt: entry.PublishedAt.UTC().Unix(),
	}
}

func (h *httpHandler) handleListChronicles(c *gin.Context) {
	if h.chronicles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chronicles_unavailable"})
		return
	}

	entries, err := h.chronicles.List(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	payloads := make([]chroniclePayload, 0, len(entries))
	for _, entry := range entries {
		payloads = append(payloads, toChroniclePayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{"chronicles": payloads})
}

type chronicleRequestPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *httpHandler) handleCreateChronicle(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if h.chronicles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chronicles_unavailable"})
		return
	}

	var request chronicleRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entry, err := h.chronicles.Create(c.Request.Context(), userID.String(), request.Title, request.Body)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toChroniclePayload(entry))
}

func (h *httpHandler) handleUpdateChronicle(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if h.chronicles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chronicles_unavailable"})
		return
	}

	var request chronicleRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entry, err := h.chronicles.Update(c.Request.Context(), userID.String(), c.Param("id"), request.Title, request.Body)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toChroniclePayload(entry))
}

func (h *httpHandler) handleDeleteChronicle(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if h.chronicles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chronicles_unavailable"})
		return
	}

	if err := h.chronicles.Delete(c.Request.Context(), userID.String(), c.Param("id")); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleUpload(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if h.uploads == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads_unavailable"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	kind := uploads.Kind(c.PostForm("kind"))

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	defer file.Close()

	url, err := h.uploads.Upload(
		c.Request.Context(),
		userID.String(),
		kind,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
