package handler

import (
	"net/http"

	"github.com/209works/api-platform/internal/service"
	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	service *service.WebhookService
}

func NewWebhookHandler(service *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

func (h *WebhookHandler) Register(c *gin.Context) {
	var req struct {
		OwnerID string   `json:"owner_id" binding:"required"`
		URL     string   `json:"url" binding:"required"`
		Events  []string `json:"events" binding:"required"`
		Secret  string   `json:"secret"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	endpoint, err := h.service.Register(ctx, req.OwnerID, req.URL, req.Events, req.Secret)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"webhook": endpoint,
		"events":  endpoint.EventList(),
		"secret":  endpoint.Secret,
		"message": "Save the secret - it won't be shown again",
	})
}

func (h *WebhookHandler) List(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}

	ctx := c.Request.Context()
	endpoints, err := h.service.ListByOwner(ctx, ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, endpoints)
}

func (h *WebhookHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	ctx := c.Request.Context()
	endpoint, err := h.service.Get(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if endpoint == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Webhook not found"})
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Webhook deleted"})
}
