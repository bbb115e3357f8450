package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultWeightDecayDays = 3
	defaultWeightFactor    = 0.2
	defaultWeightMaxFactor = 3.0
	defaultWeightTimeSlots = 24
)

// CameraDocument is the hot-reloadable camera/notification configuration,
// parsed from the YAML file at CAMERA_CONFIG_PATH.
type CameraDocument struct {
	Notifications GlobalNotifications    `yaml:"notifications"`
	Cameras       map[string]CameraEntry `yaml:"cameras"`
}

// GlobalNotifications holds settings that apply across all cameras. The
// global cooldown is only consulted for cameras with weighting disabled.
type GlobalNotifications struct {
	Enabled  bool   `yaml:"enabled"`
	Email    string `yaml:"email"`
	Cooldown int    `yaml:"cooldown"`
}

type CameraEntry struct {
	Enabled       bool                  `yaml:"enabled"`
	FriendlyName  string                `yaml:"friendly_name"`
	Notifications NotificationSettings  `yaml:"notifications"`
	Actions       []CameraActionSetting `yaml:"actions"`
}

// NotificationSettings are the per-camera throttling knobs.
type NotificationSettings struct {
	Enabled         bool
	Cooldown        int
	WeightDecayDays int
	WeightFactor    float64
	WeightMaxFactor float64
	WeightTimeSlots int
}

// UnmarshalYAML applies defaults for omitted fields. An explicit
// weight_factor of 0 is preserved: it disables per-camera weighting.
func (s *NotificationSettings) UnmarshalYAML(unmarshal func(any) error) error {
	var raw struct {
		Enabled         bool     `yaml:"enabled"`
		Cooldown        int      `yaml:"cooldown"`
		WeightDecayDays int      `yaml:"weight_decay_days"`
		WeightFactor    *float64 `yaml:"weight_factor"`
		WeightMaxFactor float64  `yaml:"weight_max_factor"`
		WeightTimeSlots int      `yaml:"weight_time_slots"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	s.Enabled = raw.Enabled
	s.Cooldown = raw.Cooldown
	s.WeightDecayDays = raw.WeightDecayDays
	s.WeightMaxFactor = raw.WeightMaxFactor
	s.WeightTimeSlots = raw.WeightTimeSlots
	if raw.WeightFactor != nil {
		s.WeightFactor = *raw.WeightFactor
	} else {
		s.WeightFactor = defaultWeightFactor
	}
	return nil
}

// CameraActionSetting describes one HTTP action that can be triggered for a
// camera through the API.
type CameraActionSetting struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
}

// ParseCameraDocument decodes and validates a camera configuration, filling
// per-camera defaults for omitted throttling fields.
func ParseCameraDocument(data []byte) (*CameraDocument, error) {
	var doc CameraDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse camera config: %w", err)
	}

	if doc.Cameras == nil {
		doc.Cameras = make(map[string]CameraEntry)
	}

	for name, entry := range doc.Cameras {
		applyDefaults(&entry.Notifications)
		if err := entry.Notifications.Validate(); err != nil {
			return nil, fmt.Errorf("camera %s: %w", name, err)
		}
		for _, action := range entry.Actions {
			if err := action.Validate(); err != nil {
				return nil, fmt.Errorf("camera %s: %w", name, err)
			}
		}
		doc.Cameras[name] = entry
	}

	if doc.Notifications.Cooldown < 0 {
		return nil, ErrInvalidCooldown
	}

	return &doc, nil
}

func LoadCameraDocument(path string) (*CameraDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera config %s: %w", path, err)
	}
	return ParseCameraDocument(data)
}

func applyDefaults(s *NotificationSettings) {
	// A fully zero struct means the notifications section was omitted and
	// the custom unmarshal never ran.
	if s.WeightDecayDays == 0 && s.WeightFactor == 0 && s.WeightMaxFactor == 0 && s.WeightTimeSlots == 0 {
		s.WeightFactor = defaultWeightFactor
	}
	if s.WeightDecayDays == 0 {
		s.WeightDecayDays = defaultWeightDecayDays
	}
	if s.WeightMaxFactor == 0 {
		s.WeightMaxFactor = defaultWeightMaxFactor
	}
	if s.WeightTimeSlots == 0 {
		s.WeightTimeSlots = defaultWeightTimeSlots
	}
}

func (s NotificationSettings) Validate() error {
	if s.Cooldown < 0 {
		return ErrInvalidCooldown
	}
	if s.WeightDecayDays < 1 {
		return ErrInvalidDecayDays
	}
	if s.WeightFactor < 0 || s.WeightFactor > 2.0 {
		return ErrInvalidWeightFactor
	}
	if s.WeightMaxFactor < 1.0 || s.WeightMaxFactor > 10.0 {
		return ErrInvalidMaxFactor
	}
	if s.WeightTimeSlots < 1 || s.WeightTimeSlots > 24 {
		return ErrInvalidTimeSlots
	}
	return nil
}

func (a CameraActionSetting) Validate() error {
	if a.Name == "" {
		return ErrActionMissingName
	}
	if a.URL == "" {
		return ErrActionMissingURL
	}
	return nil
}

// DecaySeconds converts the configured decay window to seconds.
func (s NotificationSettings) DecaySeconds() float64 {
	return float64(s.WeightDecayDays) * 86400
}

// AnyEnabled reports whether notifications are enabled globally or for at
// least one camera.
func (d *CameraDocument) AnyEnabled() bool {
	if d.Notifications.Enabled {
		return true
	}
	for _, entry := range d.Cameras {
		if entry.Enabled && entry.Notifications.Enabled {
			return true
		}
	}
	return false
}
