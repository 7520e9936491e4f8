package event

import (
	"encoding/json"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/model"
)

// TextMessage is a chat message observed on the mesh. Messages are
// append-only facts; once normalized they are never updated.
type TextMessage struct {
	FromID    string         `json:"from_id"`
	FromName  string         `json:"from_name,omitempty"`
	ToID      string         `json:"to_id"`
	ToName    string         `json:"to_name,omitempty"`
	Text      string         `json:"text"`
	RSSI      *int           `json:"rssi,omitempty"`
	SNR       *float64       `json:"snr,omitempty"`
	HopCount  model.HopCount `json:"hop_count"`
	Channel   int            `json:"channel"`
	Timestamp int64          `json:"timestamp"`
}

// Kind returns KindTextMessage.
func (e *TextMessage) Kind() Kind { return KindTextMessage }

// Validate checks the message has a sender.
func (e *TextMessage) Validate() error {
	if e.FromID == "" {
		return errors.WrapInvalid(errors.ErrMissingNodeID, "TextMessage", "Validate", "sender id is required")
	}
	return nil
}

// Model converts the event into its persistence/live-state shape.
func (e *TextMessage) Model() model.TextMessage {
	return model.TextMessage{
		FromID:    e.FromID,
		FromName:  e.FromName,
		ToID:      e.ToID,
		ToName:    e.ToName,
		Text:      e.Text,
		RSSI:      e.RSSI,
		SNR:       e.SNR,
		HopCount:  e.HopCount,
		Channel:   e.Channel,
		Timestamp: e.Timestamp,
	}
}

// MarshalJSON serializes the event.
func (e *TextMessage) MarshalJSON() ([]byte, error) {
	// Use alias to avoid infinite recursion
	type Alias TextMessage
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON deserializes the event.
func (e *TextMessage) UnmarshalJSON(data []byte) error {
	// Use alias to avoid infinite recursion
	type Alias TextMessage
	return json.Unmarshal(data, (*Alias)(e))
}
