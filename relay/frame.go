package relay

import "encoding/json"

const (
	EventEdit   = "edit"
	EventUpdate = "update"
)

// Frame is one JSON message on the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EditPayload is carried by both edit and update frames.
type EditPayload struct {
	FileID  string `json:"fileId"`
	Content string `json:"content"`
}

// NewFrame encodes data into a frame for event.
func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}
