// Package syncbus propagates session-lifecycle events between the cooperating
// apps of the platform over a shared broadcast channel. Every message is
// HMAC-signed (forgery, tampering, replay) and its payload encrypted (the
// channel offers no confidentiality of its own); receivers additionally
// enforce a trusted-app allow-list.
package syncbus

import "encoding/json"

// EventType enumerates the session-lifecycle events carried on the channel.
type EventType string

const (
	// EventSignIn carries the full new session as payload.
	EventSignIn EventType = "SIGN_IN"
	// EventSignOut carries a null payload.
	EventSignOut EventType = "SIGN_OUT"
	// EventTokenRefreshed carries {access_token, expires_at}.
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Valid reports whether t is a recognized event type.
func (t EventType) Valid() bool {
	switch t {
	case EventSignIn, EventSignOut, EventTokenRefreshed:
		return true
	}
	return false
}

// Event is the decoded auth event handed to registered handlers and accepted
// by BroadcastAuthEvent.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RefreshedPayload is the payload of an EventTokenRefreshed event.
type RefreshedPayload struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// crossAppMessage is the wire shape inside the signed envelope. Payload is
// the encrypted event payload; the envelope's HMAC authenticates the whole
// structure while the encryption hides the session contents.
type crossAppMessage struct {
	Type      EventType `json:"type"`
	Payload   string    `json:"payload"`
	AppID     string    `json:"appId"`
	Timestamp int64     `json:"timestamp"`
}
