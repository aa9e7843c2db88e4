package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/bazaar/core"
	"github.com/layer-3/bazaar/ports"
)

// Topics published by the auth service
const (
	TopicAccountRegistered = "bazaar.account.registered"
	TopicSessionIssued     = "bazaar.session.issued"
	TopicSessionLogout     = "bazaar.session.logout"
)

// AccountRegisteredEvent is emitted when an account completes registration
type AccountRegisteredEvent struct {
	AccountID     string    `json:"account_id"`
	Role          string    `json:"role"`
	Method        string    `json:"method"` // "password" or "wallet"
	WalletAddress string    `json:"wallet_address,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// SessionEvent is emitted when a session token is issued or revoked
type SessionEvent struct {
	AccountID string    `json:"account_id"`
	Role      string    `json:"role"`
	TokenID   string    `json:"token_id"`
	Flow      string    `json:"flow,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// PublishRegistered publishes an account registration event
func (p *WatermillPublisher) PublishRegistered(ctx context.Context, account *core.Account) error {
	method := "password"
	if account.WalletAddress != "" {
		method = "wallet"
	}
	return p.publish(ctx, TopicAccountRegistered, account.ID, AccountRegisteredEvent{
		AccountID:     account.ID,
		Role:          string(account.Role),
		Method:        method,
		WalletAddress: account.WalletAddress,
		OccurredAt:    account.UpdatedAt,
	})
}

// PublishSessionIssued publishes a login event
func (p *WatermillPublisher) PublishSessionIssued(ctx context.Context, session *core.Session, flow string) error {
	return p.publish(ctx, TopicSessionIssued, session.ID, sessionEvent(session, flow))
}

// PublishLogout publishes a logout event so other instances can drop cached sessions
func (p *WatermillPublisher) PublishLogout(ctx context.Context, session *core.Session) error {
	return p.publish(ctx, TopicSessionLogout, session.ID, sessionEvent(session, ""))
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("key", key)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func sessionEvent(session *core.Session, flow string) SessionEvent {
	return SessionEvent{
		AccountID: session.AccountID,
		Role:      string(session.Role),
		TokenID:   session.ID,
		Flow:      flow,
		ExpiresAt: session.ExpiresAt,
	}
}
