package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentriwatch/notification-engine/internal/config"
)

const actionTimeout = 10 * time.Second

// CameraActionsHandler forwards configured per-camera HTTP actions, letting
// a notification's action button hit home-automation endpoints through this
// service instead of exposing them to the browser.
type CameraActionsHandler struct {
	cameras    *config.Manager
	httpClient *http.Client
}

func NewCameraActionsHandler(cameras *config.Manager) *CameraActionsHandler {
	return &CameraActionsHandler{
		cameras: cameras,
		httpClient: &http.Client{
			Timeout: actionTimeout,
		},
	}
}

// HandleListActions returns the action names configured for a camera.
func (h *CameraActionsHandler) HandleListActions(c *gin.Context) {
	camera := c.Param("camera")

	entry, ok := h.cameras.Get().Cameras[camera]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	names := make([]string, 0, len(entry.Actions))
	for _, action := range entry.Actions {
		names = append(names, action.Name)
	}
	c.JSON(http.StatusOK, gin.H{"camera": camera, "actions": names})
}

// HandleRunAction executes one configured action. Upstream failures are
// reported in the body with success false rather than as HTTP errors, so
// the caller can distinguish them from misrouted requests.
func (h *CameraActionsHandler) HandleRunAction(c *gin.Context) {
	ctx := c.Request.Context()
	camera := c.Param("camera")
	name := c.Param("name")

	entry, ok := h.cameras.Get().Cameras[camera]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	var action *config.CameraActionSetting
	for i := range entry.Actions {
		if entry.Actions[i].Name == name {
			action = &entry.Actions[i]
			break
		}
	}
	if action == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "action not found"})
		return
	}

	method := action.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, action.URL, strings.NewReader(action.Body))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	for k, v := range action.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "camera action failed",
			slog.String("camera", camera),
			slog.String("action", name),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !success {
		slog.WarnContext(ctx, "camera action rejected upstream",
			slog.String("camera", camera),
			slog.String("action", name),
			slog.Int("status", resp.StatusCode),
		)
	} else {
		slog.InfoContext(ctx, "camera action executed",
			slog.String("camera", camera),
			slog.String("action", name),
		)
	}

	c.JSON(http.StatusOK, gin.H{"success": success, "upstream_status": resp.StatusCode})
}
