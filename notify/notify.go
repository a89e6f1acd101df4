// Package notify is the append-only log of change notifications that
// clients poll to learn that plates, wells or libraries changed.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacentio/ffcs/internal/metrics"
	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// Notification types.
const (
	TypePlates  = "plates"
	TypeWells   = "wells"
	TypeLibrary = "library"
)

// Log appends and polls notifications.
type Log struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLog creates a Log over the notifications collection of s.
func NewLog(s *store.Store, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{store: s, logger: logger, now: time.Now}
}

// Append inserts a notification. It fails only with a store error.
func (l *Log) Append(ctx context.Context, user, campaign, notificationType string) error {
	coll, err := l.store.Collection(store.Notifications)
	if err != nil {
		return err
	}
	_, err = coll.InsertOne(ctx, store.Doc{
		"userAccount":       user,
		"campaignId":        campaign,
		"createdOn":         l.now().UTC(),
		"notification_type": notificationType,
	})
	metrics.ObserveNotification(notificationType, err)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// Post appends a notification after a committed mutation. Failures are
// logged and never reach the caller.
func (l *Log) Post(ctx context.Context, user, campaign, notificationType string) {
	if err := l.Append(ctx, user, campaign, notificationType); err != nil {
		l.logger.Warn("notification not recorded",
			"user", user,
			"campaign", campaign,
			"type", notificationType,
			"error", err,
		)
	}
}

// Since returns the notifications for user and campaign created at or
// after since, oldest first.
func (l *Log) Since(ctx context.Context, user, campaign string, since time.Time) ([]schema.Notification, error) {
	coll, err := l.store.Collection(store.Notifications)
	if err != nil {
		return nil, err
	}
	docs, err := coll.Find(ctx, store.And(
		store.Eq("userAccount", user),
		store.Eq("campaignId", campaign),
		store.Gte("createdOn", since),
	), store.SortBy("createdOn", false))
	if err != nil {
		return nil, fmt.Errorf("poll notifications: %w", err)
	}
	out := make([]schema.Notification, len(docs))
	for i, d := range docs {
		out[i] = schema.NotificationFromDoc(d)
	}
	return out, nil
}
