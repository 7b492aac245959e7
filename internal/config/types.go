package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Scheduler controls the trigger service.
	Scheduler SchedulerConfig `json:"scheduler"`

	Storage *StorageConfig `json:"storage,omitempty"`

	// Triggers are registered on start and re-synced on every reload.
	Triggers []TriggerConfig `json:"triggers,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./recurd_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	// Format of console output: "pretty", "json" or empty for auto.
	Format string      `json:"format,omitempty"`
	File   LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the trigger service.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	// Trigger timezone (IANA). Empty means the host's local zone.
	Timezone string `json:"timezone,omitempty"`

	// HorizonYears bounds the next-occurrence search. 0 means 4.
	HorizonYears int `json:"horizon_years,omitempty"`

	// DefaultTimeout is a Go duration string (e.g. "10s", "1m").
	// Use "0s" to disable a global default timeout.
	DefaultTimeout string `json:"default_timeout,omitempty"`
}

// TriggerConfig declares one scheduled trigger.
//
// Schedule accepts trigger expressions ("0 0 9 LW * *", "30 8 * * MON#1"),
// descriptors ("@monthly") and intervals ("15m", "@every 1h", "02:30").
type TriggerConfig struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	// Timeout is a Go duration string; empty uses scheduler.default_timeout.
	Timeout string `json:"timeout,omitempty"`
	// Message is logged and published with every fire.
	Message string `json:"message,omitempty"`
	// Owner is attributed as the registering principal.
	Owner    string `json:"owner,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}
