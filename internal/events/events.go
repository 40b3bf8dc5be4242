// Package events fans engine events out to live subscribers such as the
// /events server-sent stream.
package events

import (
	"encoding/json"
	"time"
)

const (
	TypeBatchProcessed = "batch_processed"
	TypePing           = "ping"
)

type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// New stamps an event. Data that cannot be marshalled is dropped.
func New(typ string, data any, now time.Time) Event {
	e := Event{Type: typ, Version: 1, At: now.UTC()}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	return e
}

func (e Event) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}
