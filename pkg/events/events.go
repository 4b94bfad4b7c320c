// Package events defines the bus contract between the verification and
// wallet services: JSON payloads, partitioning keys and headers for the
// user.verified and wallet.created topics.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event type discriminators carried in the "event" field and the event_type
// header.
const (
	TypeUserVerified  = "user.verified"
	TypeWalletCreated = "wallet.created"
)

// Header is a transport-agnostic message header.
type Header struct {
	Key   string
	Value []byte
}

// Envelope is a ready-to-publish message: serialised value, partitioning key
// and headers. The broker package maps it onto its client's message type.
type Envelope struct {
	Key     []byte
	Value   []byte
	Headers []Header
}

// UserVerifiedEvent is emitted by the verification service once an attempt
// reaches the verified status.
type UserVerifiedEvent struct {
	Event     string    `json:"event"`
	UserID    string    `json:"user_id"`
	Network   string    `json:"network"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserVerified returns an event stamped with the current time.
func NewUserVerified(userID, network string) UserVerifiedEvent {
	return UserVerifiedEvent{
		Event:     TypeUserVerified,
		UserID:    userID,
		Network:   network,
		Timestamp: time.Now().UTC(),
	}
}

// Envelope serialises the event. The key is the raw user id so that all
// events of one user land in one partition, in order.
func (e UserVerifiedEvent) Envelope() (Envelope, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Key:   []byte(e.UserID),
		Value: value,
		Headers: []Header{
			{Key: "event_type", Value: []byte(TypeUserVerified)},
			{Key: "timestamp", Value: epochSeconds(e.Timestamp)},
		},
	}, nil
}

// DedupKey identifies one logical delivery for the consumer-side duplicate
// filter.
func (e UserVerifiedEvent) DedupKey() string {
	return fmt.Sprintf("%s:%s:%s", e.UserID, e.Network, e.Timestamp.UTC().Format(time.RFC3339Nano))
}

// DecodeUserVerified parses and checks a user.verified payload.
func DecodeUserVerified(b []byte) (UserVerifiedEvent, error) {
	var e UserVerifiedEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("malformed user.verified payload: %w", err)
	}
	if e.Event != TypeUserVerified {
		return e, fmt.Errorf("unexpected event type %q", e.Event)
	}
	if e.UserID == "" || e.Network == "" {
		return e, fmt.Errorf("user.verified payload misses user_id or network")
	}
	return e, nil
}

// WalletCreatedEvent is emitted by the wallet service after a wallet row is
// persisted.
type WalletCreatedEvent struct {
	Event         string    `json:"event"`
	UserID        string    `json:"user_id"`
	Network       string    `json:"network"`
	WalletAddress string    `json:"wallet_address"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewWalletCreated returns an event stamped with the current time.
func NewWalletCreated(userID, network, address string) WalletCreatedEvent {
	return WalletCreatedEvent{
		Event:         TypeWalletCreated,
		UserID:        userID,
		Network:       network,
		WalletAddress: address,
		Timestamp:     time.Now().UTC(),
	}
}

// Envelope serialises the event. The key is "{user_id}:{network}" keeping
// per-wallet ordering.
func (e WalletCreatedEvent) Envelope() (Envelope, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Key:   []byte(e.UserID + ":" + e.Network),
		Value: value,
		Headers: []Header{
			{Key: "event_type", Value: []byte(TypeWalletCreated)},
			{Key: "timestamp", Value: epochSeconds(e.Timestamp)},
			{Key: "network", Value: []byte(e.Network)},
		},
	}, nil
}

// DecodeWalletCreated parses and checks a wallet.created payload.
func DecodeWalletCreated(b []byte) (WalletCreatedEvent, error) {
	var e WalletCreatedEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("malformed wallet.created payload: %w", err)
	}
	if e.Event != TypeWalletCreated {
		return e, fmt.Errorf("unexpected event type %q", e.Event)
	}
	return e, nil
}

func epochSeconds(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.Unix(), 10))
}
