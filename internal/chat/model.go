package chat

import "encoding/json"

// Event names carried in the envelope.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSendMessage = "sendMessage"
	EventNewMessage  = "newMessage"
	EventError       = "error"
)

// Envelope is every frame on the socket, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendPayload is what the client sends with sendMessage.
type SendPayload struct {
	RecipientID string `json:"recipientId"`
	Message     struct {
		ConnectionID string `json:"connectionId"`
		Content      string `json:"content"`
	} `json:"message"`
}

type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
