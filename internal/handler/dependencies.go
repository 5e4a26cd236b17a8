package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/service/eventstore"
	"github.com/calensync/backend/internal/service/oauthflow"
	"github.com/calensync/backend/internal/service/sync"
	"github.com/calensync/backend/internal/service/token"
	"github.com/calensync/backend/internal/service/webhook"
)

// eventService is the slice of the Event Store Facade the events handler
// depends on for reads; write-through mutations go through mediator
// instead, since those require the upstream round trip.
type eventService interface {
	List(ctx context.Context, userID uuid.UUID, filter model.EventFilter) (*model.EventPage, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Event, error)
}

// writeThroughMediator is the slice of the Write-Through Mediator the
// events handler depends on for mutations.
type writeThroughMediator interface {
	CreateEvent(ctx context.Context, userID uuid.UUID, e *model.Event) (*model.Event, error)
	UpdateEvent(ctx context.Context, userID, id uuid.UUID, patch eventstore.Patch) (*model.Event, error)
	DeleteEvent(ctx context.Context, userID, id uuid.UUID) error
}

// syncRunner is the slice of the Sync Engine the sync handler depends on.
type syncRunner interface {
	Run(ctx context.Context, userID uuid.UUID, opts sync.Options) (*model.SyncResult, error)
}

// oauthOrchestrator is the slice of the OAuth Orchestrator the auth
// handler depends on.
type oauthOrchestrator interface {
	Initiate(ctx context.Context) (authURL, state string, err error)
	Callback(ctx context.Context, state, sessionState, code string) (*oauthflow.Result, error)
}

// credentialManager is the slice of the Token Manager the auth handler
// depends on for forced refresh and logout.
type credentialManager interface {
	Refresh(ctx context.Context, userID uuid.UUID) (token.Tokens, error)
	Revoke(ctx context.Context, userID uuid.UUID) error
}

// userLookup is the slice of UserRepository the auth handler depends on.
type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// webhookSubscriber is the slice of the Webhook Demultiplexer the webhook
// handler depends on for the subscribe/unsubscribe endpoints.
type webhookSubscriber interface {
	Subscribe(ctx context.Context, userID uuid.UUID) (*model.WebhookSubscription, error)
	Unsubscribe(ctx context.Context, userID uuid.UUID, sub *model.WebhookSubscription) error
}

// webhookSubscriptionLookup is the slice of WebhookSubscriptionRepository
// the webhook handler depends on to resolve the caller's active channel
// before tearing it down.
type webhookSubscriptionLookup interface {
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*model.WebhookSubscription, error)
}

// notificationHandler is the slice of the Webhook Demultiplexer the
// public webhook callback endpoint depends on.
type notificationHandler interface {
	Handle(ctx context.Context, n webhook.Notification)
}
