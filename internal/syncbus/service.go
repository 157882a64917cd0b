package syncbus

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sasarjan/authsync/internal/crypto"
	"github.com/sasarjan/authsync/internal/signer"
)

// Handler receives verified, decrypted auth events from sibling apps.
type Handler func(evt Event)

// ServiceConfig configures a sync Service.
type ServiceConfig struct {
	// AppID identifies this app on the channel; receivers drop our own
	// messages by it, so it must be unique per app.
	AppID string
	// TrustedApps lists the appIds whose messages are accepted. Our own
	// AppID never needs to appear here.
	TrustedApps []string
	// Channel is the bus channel name all cooperating apps share.
	Channel string
	// OnBroadcast, if set, observes each successfully published event
	// (e.g. to record it on an audit trail). It runs on the broadcasting
	// goroutine and sees the plaintext event, not the wire envelope.
	OnBroadcast func(ctx context.Context, evt Event)
}

// Service broadcasts local auth events to sibling apps and dispatches
// verified inbound events to registered handlers. Outbound: payload is
// AEAD-encrypted, wrapped in a crossAppMessage, HMAC-signed, published.
// Inbound runs the inverse pipeline and drops, silently, anything that fails
// a step: malformed envelopes, bad signatures, stale or replayed messages,
// untrusted or self appIds, undecryptable payloads.
type Service struct {
	cfg       ServiceConfig
	bus       Bus
	signer    *signer.Signer
	encryptor crypto.Encryptor
	trusted   map[string]struct{}

	mu          sync.Mutex
	handlers    []Handler
	unsubscribe func()
	destroyed   bool

	nowF func() time.Time
}

// NewService wires a Service onto the bus and begins consuming the channel.
func NewService(ctx context.Context, cfg ServiceConfig, bus Bus, s *signer.Signer, enc crypto.Encryptor) (*Service, error) {
	if cfg.AppID == "" {
		return nil, errors.New("syncbus: empty app id")
	}
	if cfg.Channel == "" {
		return nil, errors.New("syncbus: empty channel")
	}
	trusted := make(map[string]struct{}, len(cfg.TrustedApps))
	for _, app := range cfg.TrustedApps {
		trusted[app] = struct{}{}
	}
	svc := &Service{
		cfg:       cfg,
		bus:       bus,
		signer:    s,
		encryptor: enc,
		trusted:   trusted,
		nowF:      time.Now,
	}
	unsub, err := bus.Subscribe(ctx, cfg.Channel, svc.handleMessage)
	if err != nil {
		return nil, err
	}
	svc.unsubscribe = unsub
	return svc, nil
}

// OnAuthEvent registers a handler for verified inbound events. Handlers run
// in registration order on the bus delivery goroutine; a panic in one is
// contained so the rest still run.
func (s *Service) OnAuthEvent(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// BroadcastAuthEvent publishes evt to the sibling apps.
func (s *Service) BroadcastAuthEvent(ctx context.Context, evt Event) error {
	if !evt.Type.Valid() {
		return errors.New("syncbus: unknown event type")
	}
	payload := evt.Payload
	if payload == nil {
		payload = json.RawMessage("null")
	}
	ciphertext, err := s.encryptor.Encrypt(payload)
	if err != nil {
		return err
	}
	msg := crossAppMessage{
		Type:      evt.Type,
		Payload:   ciphertext,
		AppID:     s.cfg.AppID,
		Timestamp: s.nowF().UnixMilli(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	signed, err := s.signer.Sign(raw)
	if err != nil {
		return err
	}
	envelope, err := json.Marshal(signed)
	if err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, s.cfg.Channel, envelope); err != nil {
		return err
	}
	if s.cfg.OnBroadcast != nil {
		s.cfg.OnBroadcast(ctx, evt)
	}
	return nil
}

// SignMessage signs an arbitrary payload with this service's channel signer,
// for callers that need the envelope without publishing it.
func (s *Service) SignMessage(payload json.RawMessage) (*signer.SignedMessage, error) {
	return s.signer.Sign(payload)
}

// Destroy unsubscribes from the bus and drops all handlers. Idempotent.
func (s *Service) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.handlers = nil
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// handleMessage is the inbound pipeline. Every failure is a silent drop:
// the channel is shared and unauthenticated senders must learn nothing from
// our behavior, and one bad message must never take down the consumer.
func (s *Service) handleMessage(data []byte) {
	var envelope signer.SignedMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}
	var msg crossAppMessage
	if err := json.Unmarshal(envelope.Message, &msg); err != nil {
		return
	}
	if msg.AppID == s.cfg.AppID {
		// Our own broadcast reflected back. Dropped before Verify: the
		// signer may be shared with sibling services in this process, and
		// the sender must never consume the nonce its siblings still need.
		return
	}
	if !s.signer.Verify(&envelope) {
		return
	}
	if _, ok := s.trusted[msg.AppID]; !ok {
		log.Printf("syncbus: dropping %s from untrusted app %q", msg.Type, msg.AppID)
		return
	}
	if !msg.Type.Valid() {
		return
	}
	payload, err := s.encryptor.Decrypt(msg.Payload)
	if err != nil {
		return
	}

	evt := Event{Type: msg.Type, Payload: payload}
	s.mu.Lock()
	handlers := make([]Handler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()
	for _, h := range handlers {
		s.dispatch(h, evt)
	}
}

func (s *Service) dispatch(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("syncbus: handler panic on %s: %v", evt.Type, r)
		}
	}()
	h(evt)
}
