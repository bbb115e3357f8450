package config

func ValidateForRun(cfg *Config) error {
	if cfg.CameraConfigPath == "" {
		return ErrCameraConfigMissing
	}
	switch cfg.SnapshotBackend {
	case "file", "redis":
	default:
		return ErrUnknownSnapshotStore
	}
	if cfg.SnapshotBackend == "redis" {
		return cfg.Redis.Validate()
	}
	return nil
}
