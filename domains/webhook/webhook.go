package webhook

import "context"

type IWebhookUsecase interface {
	// Verify answers the Graph subscription handshake. It returns the
	// challenge to echo back, or an error when the token does not match.
	Verify(mode, token, challenge string) (string, error)
	HandleEvent(ctx context.Context, event Event) error
}

// Event mirrors the Messenger webhook payload shape.
type Event struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string      `json:"id"` // page ID
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

type Messaging struct {
	Sender    Principal `json:"sender"`
	Recipient Principal `json:"recipient"`
	Timestamp int64     `json:"timestamp"` // epoch millis
	Message   *Message  `json:"message,omitempty"`
}

type Principal struct {
	ID string `json:"id"`
}

type Message struct {
	MID  string `json:"mid"`
	Text string `json:"text"`
}
