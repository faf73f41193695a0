package engine

import (
	"fmt"
	"time"
)

// ConfigError rejects a run configuration before the run starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// RejectedOrder records a sizing decision the portfolio clipped or refused.
// Rejections never abort the run; they are collected on the run result so
// callers and tests can assert on them.
type RejectedOrder struct {
	At        time.Time `json:"at"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Requested int64     `json:"requested"`
	Granted   int64     `json:"granted"`
	Reason    string    `json:"reason"`
}

// DroppedOrder records an order that could not be executed because no price
// was available, e.g. at the end of data. Non-fatal.
type DroppedOrder struct {
	Order  OrderEvent `json:"order"`
	Reason string     `json:"reason"`
}
