package ports

import (
	"context"

	"github.com/layer-3/bazaar/core"
)

// EventPublisher publishes events to notify other instances and services
type EventPublisher interface {
	PublishRegistered(ctx context.Context, account *core.Account) error
	PublishSessionIssued(ctx context.Context, session *core.Session, flow string) error
	PublishLogout(ctx context.Context, session *core.Session) error
}
