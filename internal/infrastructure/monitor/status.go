package monitor

import "time"

// Status is the last probe result for the storefront's dependencies.
type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

// Ready reports whether orders and sales can be written. Redis and the click
// buffer are soft dependencies.
func (s Status) Ready() bool {
	return s.PostgreSQL
}

// Degraded lists the dependencies that failed their last probe.
func (s Status) Degraded() []string {
	var down []string
	if !s.PostgreSQL {
		down = append(down, "postgresql")
	}
	if !s.Redis {
		down = append(down, "redis")
	}
	if !s.Buffer {
		down = append(down, "buffer")
	}
	return down
}
