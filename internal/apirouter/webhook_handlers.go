package apirouter

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ferriqa/ferriqa/internal/logging"
	"github.com/ferriqa/ferriqa/internal/models"
	"github.com/ferriqa/ferriqa/internal/registry"
	"github.com/ferriqa/ferriqa/internal/webhook"
	"github.com/gin-gonic/gin"
)

type WebhookHandlers struct {
	store   registry.Store
	service *webhook.Service
	logger  *logging.Logger
}

func NewWebhookHandlers(store registry.Store, service *webhook.Service, logger *logging.Logger) *WebhookHandlers {
	return &WebhookHandlers{store: store, service: service, logger: logger}
}

func (h *WebhookHandlers) Create(c *gin.Context) {
	var input registry.CreateWebhookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(err)
		return
	}

	created, err := h.store.Create(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *WebhookHandlers) List(c *gin.Context) {
	req := registry.QueryRequest{
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
		Event: c.Query("event"),
	}
	if raw, ok := c.GetQuery("is_active"); ok {
		isActive, err := strconv.ParseBool(raw)
		if err != nil {
			c.Error(NewErrBadRequest(errors.New("is_active must be a boolean")))
			return
		}
		req.IsActive = &isActive
	}

	resp, err := h.store.Query(c.Request.Context(), req)
	if err != nil {
		c.Error(NewErrInternalServer(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WebhookHandlers) Retrieve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	found, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(NewErrInternalServer(err))
		return
	}
	if found == nil {
		c.Error(NewErrNotFound("webhook"))
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *WebhookHandlers) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch registry.UpdateWebhookInput
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.Error(err)
		return
	}

	updated, err := h.store.Update(c.Request.Context(), id, patch)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *WebhookHandlers) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		c.Error(NewErrInternalServer(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *WebhookHandlers) ListDeliveries(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.service.GetDeliveries(c.Request.Context(), id, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		c.Error(NewErrInternalServer(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

type testRequest struct {
	Event string      `json:"event" binding:"required"`
	Data  models.Data `json:"data"`
}

func (h *WebhookHandlers) Test(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req testRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}
	if !models.IsValidEvent(req.Event) {
		c.Error(NewErrBadRequest(errors.New("unknown event name")))
		return
	}

	result, err := h.service.Test(c.Request.Context(), id, req.Event, req.Data)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type dispatchRequest struct {
	Event   string           `json:"event" binding:"required"`
	Data    models.Data      `json:"data"`
	Options *dispatchOptions `json:"options"`
}

type dispatchOptions struct {
	MaxAttempts       int `json:"maxAttempts" binding:"omitempty,gte=1,lte=20"`
	TimeoutMS         int `json:"timeoutMs" binding:"omitempty,gte=1"`
	InitialDelayMS    int `json:"initialDelayMs" binding:"omitempty,gte=1"`
	BackoffMultiplier int `json:"backoffMultiplier" binding:"omitempty,gte=1"`
	Priority          int `json:"priority" binding:"omitempty,gte=0"`
}

// Dispatch fans an event out to its subscribers. This is how other Ferriqa
// services emit events over HTTP instead of linking the dispatcher directly.
func (h *WebhookHandlers) Dispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}
	if !models.IsValidEvent(req.Event) {
		c.Error(NewErrBadRequest(errors.New("unknown event name")))
		return
	}

	var opts *webhook.DispatchOptions
	if req.Options != nil {
		opts = &webhook.DispatchOptions{
			MaxAttempts:       req.Options.MaxAttempts,
			Timeout:           time.Duration(req.Options.TimeoutMS) * time.Millisecond,
			InitialDelay:      time.Duration(req.Options.InitialDelayMS) * time.Millisecond,
			BackoffMultiplier: req.Options.BackoffMultiplier,
			Priority:          req.Options.Priority,
		}
	}

	result, err := h.service.Dispatch(c.Request.Context(), req.Event, req.Data, opts)
	if err != nil {
		c.Error(NewErrInternalServer(err))
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (h *WebhookHandlers) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		c.Error(NewErrInternalServer(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *WebhookHandlers) Events(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": models.EventNames()})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(NewErrBadRequest(errors.New("id must be an integer")))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return value
}
