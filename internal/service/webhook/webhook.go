// Package webhook demultiplexes inbound push notifications from the
// upstream calendar: it resolves a notification's (channel, resource) pair
// back to the local subscription that owns it and triggers an incremental
// sync, and it owns the subscribe/unsubscribe lifecycle backing those
// channels. A notification that cannot be resolved or is not actionable is
// never an error from the caller's perspective — the HTTP layer always
// answers success so the upstream provider does not retry.
package webhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calensync/backend/internal/apperr"
	"github.com/calensync/backend/internal/model"
	"github.com/calensync/backend/internal/service/calendarapi"
	"github.com/calensync/backend/internal/service/sync"
)

// ChannelTTL is how long an upstream push channel is requested for before
// it must be renewed with a fresh Subscribe call.
const ChannelTTL = 7 * 24 * time.Hour

// triggeredSyncMaxResults bounds the page size of a notification-triggered
// sync: the provider tells us something changed but not what, so the sync
// is a normal incremental pass, just requested in small pages to keep a
// single push notification cheap.
const triggeredSyncMaxResults = 25

// syncInProgressResetAfter bounds how long a notification-triggered sync
// may hold its claim before the sweeper considers it stuck.
var syncInProgressResetAfter = model.StuckWebhookSyncAge

// Actionable resource-state values. Google Calendar's initial "sync"
// notification on channel creation carries no actual change and is
// resolved only to prove the channel is alive; "exists" notifications
// carry a real change and are the ones worth acting on, but since the
// provider does not describe what changed, both states trigger the same
// incremental sync.
const (
	stateSync   = "sync"
	stateExists = "exists"
)

type subscriptionRepository interface {
	Create(ctx context.Context, s *model.WebhookSubscription) error
	FindOwner(ctx context.Context, channelID, resourceID string) (*model.WebhookSubscription, error)
	TryStartSync(ctx context.Context, id uuid.UUID) (bool, error)
	FinishSync(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type credentialSource interface {
	EnsureValid(ctx context.Context, userID uuid.UUID) (string, error)
}

type syncRunner interface {
	Run(ctx context.Context, userID uuid.UUID, opts sync.Options) (*model.SyncResult, error)
}

// Demultiplexer is the Webhook Demultiplexer.
type Demultiplexer struct {
	subs    subscriptionRepository
	tokens  credentialSource
	client  calendarapi.Client
	syncer  syncRunner
	baseURL string
}

// NewDemultiplexer builds a Demultiplexer. baseURL is this deployment's
// public address, used to build the callback address Subscribe registers
// with the upstream provider.
func NewDemultiplexer(subs subscriptionRepository, tokens credentialSource, client calendarapi.Client, syncer syncRunner, baseURL string) *Demultiplexer {
	return &Demultiplexer{subs: subs, tokens: tokens, client: client, syncer: syncer, baseURL: baseURL}
}

// Notification is the provider-neutral shape of an inbound push
// notification, already extracted from whatever transport-specific
// headers or body the HTTP layer received.
type Notification struct {
	ChannelID         string
	ResourceID        string
	ResourceState     string
	VerificationToken string
}

// Handle resolves a notification to its owning subscription and, if the
// notification is actionable and verified, triggers a best-effort
// incremental sync in the background. It never returns an error the
// caller should act on: every failure path is logged and swallowed, since
// the HTTP handler must answer 200 regardless of what happens here.
func (d *Demultiplexer) Handle(ctx context.Context, n Notification) {
	sub, err := d.subs.FindOwner(ctx, n.ChannelID, n.ResourceID)
	if err != nil {
		if err == model.ErrNotFound {
			slog.Warn("webhook notification for unknown channel", "channelId", n.ChannelID, "resourceId", n.ResourceID)
			return
		}
		slog.Error("failed to resolve webhook subscription", "error", err, "channelId", n.ChannelID)
		return
	}

	if sub.VerificationToken != n.VerificationToken {
		slog.Warn("webhook verification token mismatch", "channelId", n.ChannelID, "userId", sub.UserID)
		return
	}

	switch n.ResourceState {
	case stateSync, stateExists:
	default:
		slog.Info("ignoring non-actionable webhook notification", "resourceState", n.ResourceState, "userId", sub.UserID)
		return
	}

	started, err := d.subs.TryStartSync(ctx, sub.ID)
	if err != nil {
		slog.Error("failed to claim webhook-triggered sync", "error", err, "userId", sub.UserID)
		return
	}
	if !started {
		// A notification already in flight is handling this channel.
		return
	}

	go d.runTriggeredSync(sub)
}

func (d *Demultiplexer) runTriggeredSync(sub *model.WebhookSubscription) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in webhook-triggered sync", "panic", r, "userId", sub.UserID)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), syncInProgressResetAfter)
	defer cancel()
	defer func() {
		if err := d.subs.FinishSync(ctx, sub.ID); err != nil {
			slog.Error("failed to release webhook sync claim", "error", err, "userId", sub.UserID)
		}
	}()

	result, err := d.syncer.Run(ctx, sub.UserID, sync.Options{MaxResults: triggeredSyncMaxResults})
	if err != nil {
		slog.Error("webhook-triggered sync failed", "error", err, "userId", sub.UserID)
		return
	}
	slog.Info("webhook-triggered sync completed", "userId", sub.UserID, "processed", result.Processed, "created", result.Created, "updated", result.Updated, "deleted", result.Deleted)
}

// Subscribe registers a new push channel for userID's primary calendar and
// persists the binding. Any existing active channel for the same resource
// is left in place; callers that want exactly one active channel per user
// are responsible for deactivating the prior one first.
func (d *Demultiplexer) Subscribe(ctx context.Context, userID uuid.UUID) (*model.WebhookSubscription, error) {
	accessToken, err := d.tokens.EnsureValid(ctx, userID)
	if err != nil {
		return nil, err
	}
	creds := calendarapi.Credentials{AccessToken: accessToken}

	channelID := uuid.New().String()
	watch, err := d.client.Subscribe(ctx, creds, channelID, d.callbackAddress(), ChannelTTL)
	if err != nil {
		return nil, err
	}

	sub := &model.WebhookSubscription{
		ID:                 uuid.New(),
		UserID:             userID,
		UpstreamResourceID: watch.ResourceID,
		ChannelID:          watch.ChannelID,
		VerificationToken:  watch.VerificationToken,
		ResourceURI:        watch.ResourceURI,
		ExpiresAt:          watch.Expiration,
		Active:             true,
		CreatedAt:          time.Now().UTC(),
	}
	if err := d.subs.Create(ctx, sub); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "persist webhook subscription", err)
	}
	return sub, nil
}

// Unsubscribe tears down a previously registered channel both upstream and
// locally. The upstream call is best-effort: a channel the provider has
// already forgotten (expired or cancelled out of band) must not block
// marking the local row inactive.
func (d *Demultiplexer) Unsubscribe(ctx context.Context, userID uuid.UUID, sub *model.WebhookSubscription) error {
	accessToken, err := d.tokens.EnsureValid(ctx, userID)
	if err != nil {
		return err
	}
	creds := calendarapi.Credentials{AccessToken: accessToken}

	if err := d.client.Unsubscribe(ctx, creds, sub.ChannelID, sub.UpstreamResourceID); err != nil {
		slog.Warn("upstream channel teardown failed, deactivating locally anyway", "error", err, "userId", userID)
	}

	if err := d.subs.Deactivate(ctx, sub.ID); err != nil {
		return apperr.Wrap(apperr.Internal, "deactivate webhook subscription", err)
	}
	return nil
}

func (d *Demultiplexer) callbackAddress() string {
	return d.baseURL + "/webhooks/calendar"
}
