package config

import "errors"

var (
	ErrRedisAddrMissing     = errors.New("REDIS_ADDR is required")
	ErrInvalidRedisDB       = errors.New("REDIS_DB must be a valid integer")
	ErrCameraConfigMissing  = errors.New("CAMERA_CONFIG_PATH environment variable is required")
	ErrUnknownSnapshotStore = errors.New("SNAPSHOT_BACKEND must be \"file\" or \"redis\"")
	ErrInvalidDecayDays     = errors.New("weight_decay_days must be at least 1")
	ErrInvalidWeightFactor  = errors.New("weight_factor must be between 0.0 and 2.0")
	ErrInvalidMaxFactor     = errors.New("weight_max_factor must be between 1.0 and 10.0")
	ErrInvalidTimeSlots     = errors.New("weight_time_slots must be between 1 and 24")
	ErrInvalidCooldown      = errors.New("cooldown must not be negative")
	ErrActionMissingName    = errors.New("camera action requires a name")
	ErrActionMissingURL     = errors.New("camera action requires a url")
)
