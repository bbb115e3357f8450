package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sentriwatch/notification-engine/internal/domain"
	"github.com/sentriwatch/notification-engine/internal/service/engine"
)

const (
	maxCustomTitleLength   = 200
	maxCustomMessageLength = 500
	maxCustomTTL           = 86400
)

// customSendLimit caps API-submitted notifications independently of the
// engine's cooldowns, so a misbehaving automation cannot flood the queue.
var customSendLimit = rate.Limit(1)

type NotificationHandler struct {
	engine   *engine.Engine
	registry domain.SubscriptionRegistry
	limiter  *rate.Limiter
}

func NewNotificationHandler(eng *engine.Engine, registry domain.SubscriptionRegistry) *NotificationHandler {
	return &NotificationHandler{
		engine:   eng,
		registry: registry,
		limiter:  rate.NewLimiter(customSendLimit, 5),
	}
}

type reviewEventRequest struct {
	Camera      string   `json:"camera" binding:"required"`
	ReviewID    string   `json:"review_id"`
	State       string   `json:"state"`
	Severity    string   `json:"severity"`
	Objects     []string `json:"objects"`
	SubLabels   []string `json:"sub_labels"`
	Zones       []string `json:"zones"`
	PrevObjects []string `json:"prev_objects"`
	PrevZones   []string `json:"prev_zones"`
	ThumbPath   string   `json:"thumb_path"`
}

// HandleReviewEvent ingests one review update from the detection pipeline.
func (h *NotificationHandler) HandleReviewEvent(c *gin.Context) {
	ctx := c.Request.Context()

	var req reviewEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Only alert-severity reviews notify; detections are recorded by the
	// pipeline but never pushed.
	if req.Severity != "" && req.Severity != "alert" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	h.engine.HandleAlert(ctx, engine.ReviewEvent{
		Camera:      req.Camera,
		ReviewID:    req.ReviewID,
		State:       req.State,
		Severity:    req.Severity,
		Objects:     req.Objects,
		SubLabels:   req.SubLabels,
		Zones:       req.Zones,
		PrevObjects: req.PrevObjects,
		PrevZones:   req.PrevZones,
		ThumbPath:   req.ThumbPath,
	})

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

type triggerEventRequest struct {
	Camera  string  `json:"camera" binding:"required"`
	Type    string  `json:"type"`
	EventID string  `json:"event_id"`
	Name    string  `json:"name" binding:"required"`
	Score   float64 `json:"score"`
}

// HandleTriggerEvent ingests one semantic trigger firing.
func (h *NotificationHandler) HandleTriggerEvent(c *gin.Context) {
	var req triggerEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.engine.HandleTrigger(c.Request.Context(), engine.TriggerEvent{
		Camera:  req.Camera,
		Type:    req.Type,
		EventID: req.EventID,
		Name:    req.Name,
		Score:   req.Score,
	})

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// HandleTest sends a test notification to every registered user.
func (h *NotificationHandler) HandleTest(c *gin.Context) {
	h.engine.HandleTest(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

type customNotificationRequest struct {
	Camera    string `json:"camera"`
	Title     string `json:"title" binding:"required"`
	Message   string `json:"message" binding:"required"`
	DirectURL string `json:"direct_url"`
	Image     string `json:"image"`
	TTL       int    `json:"ttl"`
}

// HandleSendCustom delivers an API-submitted notification, subject to the
// rate limit and the engine's cooldowns.
func (h *NotificationHandler) HandleSendCustom(c *gin.Context) {
	ctx := c.Request.Context()

	if !h.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many notification requests"})
		return
	}

	if !h.engine.NotificationsEnabled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notifications are not enabled"})
		return
	}

	var req customNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Title) > maxCustomTitleLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title too long"})
		return
	}
	if len(req.Message) > maxCustomMessageLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
		return
	}
	if req.TTL < 0 || req.TTL > maxCustomTTL {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ttl out of range"})
		return
	}

	outcome := h.engine.HandleCustom(ctx, engine.CustomEvent{
		Camera:    req.Camera,
		Title:     req.Title,
		Message:   req.Message,
		DirectURL: req.DirectURL,
		Image:     req.Image,
		TTL:       req.TTL,
	})

	switch outcome {
	case domain.OutcomeSkipped:
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found or notifications disabled"})
	default:
		c.JSON(http.StatusOK, gin.H{"outcome": string(outcome)})
	}
}

type registrationRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// HandleRegister stores a browser push registration for a user.
func (h *NotificationHandler) HandleRegister(c *gin.Context) {
	ctx := c.Request.Context()
	user := c.Param("user")

	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reg := domain.PushRegistration{
		Endpoint: req.Endpoint,
		P256dh:   req.P256dh,
		Auth:     req.Auth,
	}
	if err := h.registry.AddRegistration(ctx, user, reg); err != nil {
		slog.ErrorContext(ctx, "failed to store push registration",
			slog.String("user", user),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store registration"})
		return
	}

	slog.InfoContext(ctx, "push registration stored",
		slog.String("user", user),
		slog.String("audience", domain.Audience(req.Endpoint)),
	)
	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}

// HandleWeightStats reports the throttling state of all cameras.
func (h *NotificationHandler) HandleWeightStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cameras": h.engine.WeightStatistics()})
}

// HandleCameraWeightStats reports one camera's throttling state.
func (h *NotificationHandler) HandleCameraWeightStats(c *gin.Context) {
	camera := c.Param("camera")

	stats, err := h.engine.CameraStatistics(camera)
	if err != nil {
		if errors.Is(err, domain.ErrCameraNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type suspendRequest struct {
	Minutes int `json:"minutes" binding:"required,min=1,max=1440"`
}

// HandleSuspend mutes a camera for a bounded number of minutes.
func (h *NotificationHandler) HandleSuspend(c *gin.Context) {
	camera := c.Param("camera")

	var req suspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.engine.Suspend(camera, req.Minutes); err != nil {
		if errors.Is(err, domain.ErrCameraNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera": camera, "suspended_minutes": req.Minutes})
}

// HandleUnsuspend lifts a camera's suspension.
func (h *NotificationHandler) HandleUnsuspend(c *gin.Context) {
	camera := c.Param("camera")

	if err := h.engine.Unsuspend(camera); err != nil {
		if errors.Is(err, domain.ErrCameraNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera": camera, "suspended": false})
}

// HandleSuspended reports a camera's suspension deadline.
func (h *NotificationHandler) HandleSuspended(c *gin.Context) {
	camera := c.Param("camera")
	until := h.engine.SuspendedUntil(camera)
	c.JSON(http.StatusOK, gin.H{
		"camera":          camera,
		"suspended":       until > 0,
		"suspended_until": until,
	})
}
