package cooldown

import (
	"time"

	"github.com/sentriwatch/notification-engine/internal/domain"
)

// LedgerView is the read surface the policy needs from the weight ledger.
type LedgerView interface {
	NormalizedCount(camera string, slot int, now time.Time, decaySeconds float64) int
}

// CameraSettings are the throttling knobs for one camera, snapshotted from
// the live configuration at evaluation time.
type CameraSettings struct {
	Cooldown        int
	WeightFactor    float64
	WeightMaxFactor float64
	WeightDecayDays int
	SlotCount       int
}

// DecaySeconds is the camera's weight expiry window.
func (s CameraSettings) DecaySeconds() float64 {
	return float64(s.WeightDecayDays) * domain.SecondsPerDay
}

// WeightingEnabled reports whether per-camera weighted cooldown applies.
// With weighting disabled, only the global cooldown throttles the camera.
func (s CameraSettings) WeightingEnabled() bool {
	return s.WeightFactor > 0
}

// Policy derives the effective cooldown for a camera from its configuration
// and the ledger's current weights. All methods are pure computations over
// their inputs; the policy holds no mutable state.
type Policy struct {
	ledger LedgerView
}

func NewPolicy(ledger LedgerView) *Policy {
	return &Policy{ledger: ledger}
}

// DynamicWeightFactor adjusts the configured weight factor by five
// independent signals: time of day, weekday, self-regulation against
// runaway cooldown growth, recent activity, and recency of the camera's
// last notification. The result is clamped to [0.1, 3.0] times the base
// factor. The individual modifiers are tuned heuristics; do not re-derive
// them.
func (p *Policy) DynamicWeightFactor(camera string, cfg CameraSettings, lastNotification float64, now time.Time) float64 {
	base := cfg.WeightFactor
	factor := base

	factor *= timeOfDayModifier(now.Hour())
	factor *= weekdayModifier(now.Weekday())
	factor *= p.selfRegulationModifier(camera, cfg, now)
	factor *= p.recentActivityModifier(camera, cfg, now)
	factor *= recencyModifier(nowSeconds(now) - lastNotification)

	return clamp(factor, 0.1*base, 3.0*base)
}

// EffectiveCooldown returns the enforced minimum interval in seconds
// between notifications for a camera. The weighted multiplier is capped at
// the configured maximum, and the result never exceeds 80% of one slot's
// wall-clock span nor drops below half the base cooldown.
func (p *Policy) EffectiveCooldown(camera string, cfg CameraSettings, lastNotification float64, now time.Time) float64 {
	_, multiplier := p.multiplier(camera, cfg, lastNotification, now)

	raw := float64(cfg.Cooldown) * multiplier

	limit := 0.8 * domain.SlotSpanSeconds(cfg.SlotCount)
	if minimum := 0.5 * float64(cfg.Cooldown); minimum > limit {
		limit = minimum
	}
	if raw > limit {
		return limit
	}
	return raw
}

// Multiplier exposes the current weight and capped cooldown multiplier for
// diagnostics.
func (p *Policy) Multiplier(camera string, cfg CameraSettings, lastNotification float64, now time.Time) (int, float64) {
	return p.multiplier(camera, cfg, lastNotification, now)
}

func (p *Policy) multiplier(camera string, cfg CameraSettings, lastNotification float64, now time.Time) (int, float64) {
	slot := domain.SlotOf(now, cfg.SlotCount)
	weight := p.ledger.NormalizedCount(camera, slot, now, cfg.DecaySeconds())
	dynamic := p.DynamicWeightFactor(camera, cfg, lastNotification, now)

	multiplier := 1 + float64(weight)*dynamic
	if multiplier > cfg.WeightMaxFactor {
		multiplier = cfg.WeightMaxFactor
	}
	return weight, multiplier
}

// IsSuppressed decides whether a candidate notification at now must be
// dropped. With weighting disabled the global cooldown applies; otherwise
// the camera's own weighted cooldown governs. An event exactly at the
// cooldown boundary is delivered.
func (p *Policy) IsSuppressed(camera string, cfg CameraSettings, globalCooldown int, lastCamera, lastGlobal float64, now time.Time) bool {
	nowSecs := nowSeconds(now)

	if !cfg.WeightingEnabled() && nowSecs-lastGlobal < float64(globalCooldown) {
		return true
	}

	cooldown := p.EffectiveCooldown(camera, cfg, lastCamera, now)
	return nowSecs-lastCamera < cooldown
}

// timeOfDayModifier softens weighting at night and sharpens it midday. The
// bands are intentionally asymmetric.
func timeOfDayModifier(hour int) float64 {
	switch {
	case hour >= 22 || hour < 7:
		return 0.5
	case hour < 10 || hour >= 17:
		return 1.0
	default:
		return 1.25
	}
}

func weekdayModifier(day time.Weekday) float64 {
	if day == time.Saturday || day == time.Sunday {
		return 0.8
	}
	return 1.0
}

// selfRegulationModifier dampens the factor once the current effective
// cooldown exceeds twice the base cooldown, so compounding weights cannot
// grow the cooldown without bound.
func (p *Policy) selfRegulationModifier(camera string, cfg CameraSettings, now time.Time) float64 {
	if cfg.Cooldown <= 0 {
		return 1.0
	}

	slot := domain.SlotOf(now, cfg.SlotCount)
	weight := p.ledger.NormalizedCount(camera, slot, now, cfg.DecaySeconds())

	multiplier := 1 + float64(weight)*cfg.WeightFactor
	if multiplier > cfg.WeightMaxFactor {
		multiplier = cfg.WeightMaxFactor
	}

	if multiplier <= 2.0 {
		return 1.0
	}
	damped := 1.0 - (multiplier-2.0)*0.03
	if damped < 0.2 {
		return 0.2
	}
	return damped
}

// recentActivityModifier sums normalized weights over the last 3-4 slots.
func (p *Policy) recentActivityModifier(camera string, cfg CameraSettings, now time.Time) float64 {
	slot := domain.SlotOf(now, cfg.SlotCount)
	decay := cfg.DecaySeconds()

	total := 0
	start := slot - 3
	if start < 0 {
		start = 0
	}
	for s := start; s <= slot; s++ {
		total += p.ledger.NormalizedCount(camera, s%cfg.SlotCount, now, decay)
	}

	switch {
	case total > 10:
		return 1.5
	case total > 5:
		return 1.2
	case total <= 1:
		return 0.7
	default:
		return 1.0
	}
}

func recencyModifier(age float64) float64 {
	switch {
	case age < 300:
		return 1.3
	case age < 3600:
		return 1.1
	case age > 21600:
		return 0.6
	default:
		return 1.0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nowSeconds(now time.Time) float64 {
	return float64(now.UnixNano()) / 1e9
}
