package domain

import "time"

// SecondsPerDay is the wall-clock span covered by one full slot cycle.
const SecondsPerDay = 86400

// SlotOf maps a timestamp to a time slot in [0, slots). With 24 slots this
// is the local hour; fewer slots widen each band proportionally.
func SlotOf(t time.Time, slots int) int {
	if slots <= 0 {
		return 0
	}
	slot := t.Hour() * slots / 24
	if slot >= slots {
		slot = slots - 1
	}
	return slot
}

// SlotSpanSeconds returns the wall-clock length of one slot.
func SlotSpanSeconds(slots int) float64 {
	if slots <= 0 {
		slots = 1
	}
	return float64(SecondsPerDay) / float64(slots)
}
