package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: the log level,
// which feeds a slog.LevelVar, and the confidence thresholds, which the
// classifier can swap at runtime. Everything else needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ConfidenceChanged bool
	NewConfidence     ConfidenceConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Confidence != new.Confidence {
		d.ConfidenceChanged = true
		d.NewConfidence = new.Confidence
	}

	return d
}
