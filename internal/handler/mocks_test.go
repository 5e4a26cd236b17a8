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

type mockEventService struct {
	ListFunc func(ctx context.Context, userID uuid.UUID, filter model.EventFilter) (*model.EventPage, error)
	GetFunc  func(ctx context.Context, userID, id uuid.UUID) (*model.Event, error)
}

func (m *mockEventService) List(ctx context.Context, userID uuid.UUID, filter model.EventFilter) (*model.EventPage, error) {
	if m.ListFunc == nil {
		return &model.EventPage{}, nil
	}
	return m.ListFunc(ctx, userID, filter)
}
func (m *mockEventService) Get(ctx context.Context, userID, id uuid.UUID) (*model.Event, error) {
	if m.GetFunc == nil {
		return &model.Event{}, nil
	}
	return m.GetFunc(ctx, userID, id)
}

type mockMediator struct {
	CreateEventFunc func(ctx context.Context, userID uuid.UUID, e *model.Event) (*model.Event, error)
	UpdateEventFunc func(ctx context.Context, userID, id uuid.UUID, patch eventstore.Patch) (*model.Event, error)
	DeleteEventFunc func(ctx context.Context, userID, id uuid.UUID) error
}

func (m *mockMediator) CreateEvent(ctx context.Context, userID uuid.UUID, e *model.Event) (*model.Event, error) {
	if m.CreateEventFunc == nil {
		return e, nil
	}
	return m.CreateEventFunc(ctx, userID, e)
}
func (m *mockMediator) UpdateEvent(ctx context.Context, userID, id uuid.UUID, patch eventstore.Patch) (*model.Event, error) {
	if m.UpdateEventFunc == nil {
		return &model.Event{}, nil
	}
	return m.UpdateEventFunc(ctx, userID, id, patch)
}
func (m *mockMediator) DeleteEvent(ctx context.Context, userID, id uuid.UUID) error {
	if m.DeleteEventFunc == nil {
		return nil
	}
	return m.DeleteEventFunc(ctx, userID, id)
}

type mockSyncRunner struct {
	RunFunc func(ctx context.Context, userID uuid.UUID, opts sync.Options) (*model.SyncResult, error)
}

func (m *mockSyncRunner) Run(ctx context.Context, userID uuid.UUID, opts sync.Options) (*model.SyncResult, error) {
	if m.RunFunc == nil {
		return &model.SyncResult{Success: true}, nil
	}
	return m.RunFunc(ctx, userID, opts)
}

type mockOrchestrator struct {
	InitiateFunc func(ctx context.Context) (string, string, error)
	CallbackFunc func(ctx context.Context, state, sessionState, code string) (*oauthflow.Result, error)
}

func (m *mockOrchestrator) Initiate(ctx context.Context) (string, string, error) {
	if m.InitiateFunc == nil {
		return "", "", nil
	}
	return m.InitiateFunc(ctx)
}
func (m *mockOrchestrator) Callback(ctx context.Context, state, sessionState, code string) (*oauthflow.Result, error) {
	if m.CallbackFunc == nil {
		return &oauthflow.Result{}, nil
	}
	return m.CallbackFunc(ctx, state, sessionState, code)
}

type mockCredentialManager struct {
	RefreshFunc func(ctx context.Context, userID uuid.UUID) (token.Tokens, error)
	RevokeFunc  func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockCredentialManager) Refresh(ctx context.Context, userID uuid.UUID) (token.Tokens, error) {
	if m.RefreshFunc == nil {
		return token.Tokens{}, nil
	}
	return m.RefreshFunc(ctx, userID)
}
func (m *mockCredentialManager) Revoke(ctx context.Context, userID uuid.UUID) error {
	if m.RevokeFunc == nil {
		return nil
	}
	return m.RevokeFunc(ctx, userID)
}

type mockUserLookup struct {
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*model.User, error)
}

func (m *mockUserLookup) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if m.GetByIDFunc == nil {
		return &model.User{}, nil
	}
	return m.GetByIDFunc(ctx, id)
}

type mockWebhookSubscriber struct {
	SubscribeFunc   func(ctx context.Context, userID uuid.UUID) (*model.WebhookSubscription, error)
	UnsubscribeFunc func(ctx context.Context, userID uuid.UUID, sub *model.WebhookSubscription) error
}

func (m *mockWebhookSubscriber) Subscribe(ctx context.Context, userID uuid.UUID) (*model.WebhookSubscription, error) {
	if m.SubscribeFunc == nil {
		return &model.WebhookSubscription{}, nil
	}
	return m.SubscribeFunc(ctx, userID)
}
func (m *mockWebhookSubscriber) Unsubscribe(ctx context.Context, userID uuid.UUID, sub *model.WebhookSubscription) error {
	if m.UnsubscribeFunc == nil {
		return nil
	}
	return m.UnsubscribeFunc(ctx, userID, sub)
}

type mockWebhookSubscriptionLookup struct {
	GetActiveByUserFunc func(ctx context.Context, userID uuid.UUID) (*model.WebhookSubscription, error)
}

func (m *mockWebhookSubscriptionLookup) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*model.WebhookSubscription, error) {
	if m.GetActiveByUserFunc == nil {
		return &model.WebhookSubscription{}, nil
	}
	return m.GetActiveByUserFunc(ctx, userID)
}

type mockNotificationHandler struct {
	HandleFunc func(ctx context.Context, n webhook.Notification)
	Handled    []webhook.Notification
}

func (m *mockNotificationHandler) Handle(ctx context.Context, n webhook.Notification) {
	m.Handled = append(m.Handled, n)
	if m.HandleFunc != nil {
		m.HandleFunc(ctx, n)
	}
}
