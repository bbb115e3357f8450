package cooldown

import (
	"testing"
	"time"
)

// mapLedger is a fixed NormalizedCount view keyed by slot.
type mapLedger struct {
	counts map[int]int
}

func (m *mapLedger) NormalizedCount(_ string, slot int, _ time.Time, _ float64) int {
	return m.counts[slot]
}

func defaultSettings() CameraSettings {
	return CameraSettings{
		Cooldown:        60,
		WeightFactor:    0.2,
		WeightMaxFactor: 3.0,
		WeightDecayDays: 3,
		SlotCount:       24,
	}
}

// Tuesday midday: time modifier 1.25, weekday 1.0.
var midday = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func TestTimeOfDayModifierBands(t *testing.T) {
	tests := []struct {
		hour int
		want float64
	}{
		{23, 0.5},
		{0, 0.5},
		{6, 0.5},
		{7, 1.0},
		{9, 1.0},
		{10, 1.25},
		{16, 1.25},
		{17, 1.0},
		{21, 1.0},
		{22, 0.5},
	}
	for _, tt := range tests {
		if got := timeOfDayModifier(tt.hour); got != tt.want {
			t.Errorf("timeOfDayModifier(%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestWeekdayModifier(t *testing.T) {
	if got := weekdayModifier(time.Saturday); got != 0.8 {
		t.Errorf("weekdayModifier(Saturday) = %v, want 0.8", got)
	}
	if got := weekdayModifier(time.Wednesday); got != 1.0 {
		t.Errorf("weekdayModifier(Wednesday) = %v, want 1.0", got)
	}
}

func TestDynamicWeightFactorClamped(t *testing.T) {
	cfg := defaultSettings()
	p := NewPolicy(&mapLedger{counts: map[int]int{12: 50, 11: 50, 10: 50, 9: 50}})

	// Heavy activity and a recent notification push every modifier up;
	// the result must still respect the 3x base ceiling.
	last := epoch(midday) - 60
	got := p.DynamicWeightFactor("cam", cfg, last, midday)
	if got > 3.0*cfg.WeightFactor+1e-9 {
		t.Errorf("DynamicWeightFactor() = %v, exceeds 3x base", got)
	}

	// With weighting disabled, the factor collapses to zero.
	cfg.WeightFactor = 0
	if got := p.DynamicWeightFactor("cam", cfg, last, midday); got != 0 {
		t.Errorf("DynamicWeightFactor() with factor 0 = %v, want 0", got)
	}
}

func TestEffectiveCooldownBaseCase(t *testing.T) {
	cfg := defaultSettings()
	cfg.WeightFactor = 0
	p := NewPolicy(&mapLedger{counts: map[int]int{}})

	got := p.EffectiveCooldown("cam", cfg, 0, midday)
	if got != 60 {
		t.Errorf("EffectiveCooldown() = %v, want 60", got)
	}
}

func TestEffectiveCooldownMonotonicInWeight(t *testing.T) {
	cfg := defaultSettings()
	ledger := &mapLedger{counts: map[int]int{}}
	p := NewPolicy(ledger)
	last := epoch(midday) - 7200

	limit := 0.8 * 3600.0
	prev := -1.0
	for weight := 0; weight <= 15; weight++ {
		ledger.counts = map[int]int{12: weight}
		got := p.EffectiveCooldown("cam", cfg, last, midday)
		if got < prev {
			t.Fatalf("EffectiveCooldown() decreased at weight %d: %v < %v", weight, got, prev)
		}
		if got > limit {
			t.Fatalf("EffectiveCooldown() = %v exceeds slot cap %v", got, limit)
		}
		prev = got
	}
}

func TestEffectiveCooldownCappedByMaxFactor(t *testing.T) {
	// 10 prior notifications in the current slot, baseline zero: the
	// theoretical multiplier 1+10*dynamic blows past the 3.0 cap, so the
	// effective cooldown is exactly 3x base (well under the slot cap).
	cfg := defaultSettings()
	p := NewPolicy(&mapLedger{counts: map[int]int{12: 10}})
	last := epoch(midday) - 7200

	weight, multiplier := p.Multiplier("cam", cfg, last, midday)
	if weight != 10 {
		t.Fatalf("weight = %d, want 10", weight)
	}
	if multiplier != 3.0 {
		t.Errorf("multiplier = %v, want 3.0 (capped)", multiplier)
	}

	got := p.EffectiveCooldown("cam", cfg, last, midday)
	if got != 180 {
		t.Errorf("EffectiveCooldown() = %v, want 180", got)
	}
}

func TestEffectiveCooldownSlotSpanCap(t *testing.T) {
	cfg := defaultSettings()
	cfg.Cooldown = 7200 // 2h base with 1h slots
	p := NewPolicy(&mapLedger{counts: map[int]int{12: 10}})

	got := p.EffectiveCooldown("cam", cfg, 0, midday)

	// Cap is max(0.8*3600, 0.5*7200) = 3600.
	if got != 3600 {
		t.Errorf("EffectiveCooldown() = %v, want 3600", got)
	}
}

func TestIsSuppressedGlobalCooldown(t *testing.T) {
	cfg := defaultSettings()
	cfg.WeightFactor = 0 // weighting disabled, global cooldown applies
	p := NewPolicy(&mapLedger{counts: map[int]int{}})

	lastGlobal := epoch(midday) - 10
	if !p.IsSuppressed("cam", cfg, 60, 0, lastGlobal, midday) {
		t.Error("IsSuppressed() = false inside global cooldown")
	}

	lastGlobal = epoch(midday) - 61
	if p.IsSuppressed("cam", cfg, 60, 0, lastGlobal, midday) {
		t.Error("IsSuppressed() = true outside global cooldown")
	}
}

func TestIsSuppressedPerCameraBoundaries(t *testing.T) {
	cfg := defaultSettings()
	cfg.WeightFactor = 0
	p := NewPolicy(&mapLedger{counts: map[int]int{}})

	cooldown := p.EffectiveCooldown("cam", cfg, 0, midday)

	// One second before the cooldown elapses: suppressed.
	last := epoch(midday) - cooldown + 1
	if !p.IsSuppressed("cam", cfg, 0, last, last, midday) {
		t.Error("IsSuppressed() = false just inside cooldown")
	}

	// One second past: delivered.
	last = epoch(midday) - cooldown - 1
	if p.IsSuppressed("cam", cfg, 0, last, last, midday) {
		t.Error("IsSuppressed() = true just outside cooldown")
	}

	// Exactly at the boundary: delivered (strict comparison).
	last = epoch(midday) - cooldown
	if p.IsSuppressed("cam", cfg, 0, last, last, midday) {
		t.Error("IsSuppressed() = true exactly at cooldown boundary")
	}
}

func TestSelfRegulationDampsHighMultipliers(t *testing.T) {
	cfg := defaultSettings()
	cfg.WeightMaxFactor = 10.0
	p := NewPolicy(&mapLedger{counts: map[int]int{12: 40}})

	// Multiplier 1+40*0.2 = 9.0: damping 1-(9-2)*0.03 = 0.79.
	got := p.selfRegulationModifier("cam", cfg, midday)
	if got < 0.789 || got > 0.791 {
		t.Errorf("selfRegulationModifier() = %v, want 0.79", got)
	}

	// The raw multiplier is capped at the max factor before damping, so an
	// extreme weight cannot push the modifier below 1-(max-2)*0.03.
	cfg.WeightFactor = 2.0
	got = p.selfRegulationModifier("cam", cfg, midday)
	if got < 0.759 || got > 0.761 {
		t.Errorf("selfRegulationModifier() at max factor = %v, want 0.76", got)
	}
}

func TestRecencyModifier(t *testing.T) {
	tests := []struct {
		age  float64
		want float64
	}{
		{60, 1.3},
		{1800, 1.1},
		{7200, 1.0},
		{30000, 0.6},
	}
	for _, tt := range tests {
		if got := recencyModifier(tt.age); got != tt.want {
			t.Errorf("recencyModifier(%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}
