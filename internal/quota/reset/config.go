package reset

import "time"

// Config controls the deleted-counter reset loop.
type Config struct {
	BatchSize int
	Interval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize: 500,
		Interval:  24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	return c
}
