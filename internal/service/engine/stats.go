package engine

import (
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

// CameraWeightStats is the diagnostic view of one camera's throttling
// state, served by the stats API.
type CameraWeightStats struct {
	Camera            string      `json:"camera"`
	SlotCount         int         `json:"slot_count"`
	CurrentSlot       int         `json:"current_slot"`
	SlotCounts        map[int]int `json:"slot_counts"`
	NormalizedWeight  int         `json:"normalized_weight"`
	DynamicFactor     float64     `json:"dynamic_factor"`
	Multiplier        float64     `json:"multiplier"`
	BaseCooldown      int         `json:"base_cooldown_seconds"`
	EffectiveCooldown float64     `json:"effective_cooldown_seconds"`
	WeightFactor      float64     `json:"weight_factor"`
	LastNotification  float64     `json:"last_notification,omitempty"`
	NextAllowedIn     float64     `json:"next_allowed_in_seconds"`
	SuspendedUntil    float64     `json:"suspended_until,omitempty"`
}

// WeightStatistics reports the throttling state of every enabled camera.
func (e *Engine) WeightStatistics() map[string]CameraWeightStats {
	doc := e.cameras.Get()

	stats := make(map[string]CameraWeightStats, len(doc.Cameras))
	for name := range doc.Cameras {
		if s, err := e.CameraStatistics(name); err == nil {
			stats[name] = s
		}
	}
	return stats
}

// CameraStatistics reports one camera's throttling state.
func (e *Engine) CameraStatistics(camera string) (CameraWeightStats, error) {
	doc := e.cameras.Get()
	entry, ok := doc.Cameras[camera]
	if !ok {
		return CameraWeightStats{}, domain.ErrCameraNotFound
	}

	s := entry.Notifications
	settings := cameraSettingsOf(s)
	now := e.now()
	decay := settings.DecaySeconds()
	currentSlot := domain.SlotOf(now, settings.SlotCount)

	counts := make(map[int]int, settings.SlotCount)
	for slot := 0; slot < settings.SlotCount; slot++ {
		if count := e.ledger.ActiveCount(camera, slot, now, decay); count > 0 {
			counts[slot] = count
		}
	}

	e.mu.Lock()
	lastCamera := e.lastCamera[camera]
	e.mu.Unlock()

	weight, multiplier := e.policy.Multiplier(camera, settings, lastCamera, now)
	effective := e.policy.EffectiveCooldown(camera, settings, lastCamera, now)

	nextAllowedIn := 0.0
	if lastCamera > 0 {
		nowSecs := float64(now.UnixNano()) / float64(time.Second)
		if remaining := lastCamera + effective - nowSecs; remaining > 0 {
			nextAllowedIn = remaining
		}
	}

	return CameraWeightStats{
		Camera:            camera,
		SlotCount:         settings.SlotCount,
		CurrentSlot:       currentSlot,
		SlotCounts:        counts,
		NormalizedWeight:  weight,
		DynamicFactor:     e.policy.DynamicWeightFactor(camera, settings, lastCamera, now),
		Multiplier:        multiplier,
		BaseCooldown:      settings.Cooldown,
		EffectiveCooldown: effective,
		WeightFactor:      settings.WeightFactor,
		LastNotification:  lastCamera,
		NextAllowedIn:     nextAllowedIn,
		SuspendedUntil:    e.SuspendedUntil(camera),
	}, nil
}
