// Package notifications provides real-time notification delivery over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "notifications:user:"

// Event is the payload published for each new notification.
type Event struct {
	Type         string               `json:"type"`
	Recipient    string               `json:"recipient"`
	Notification *models.Notification `json:"notification"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether a Redis client is attached.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, username string, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(username), payload).Err()
}

// PublishNotification sends a stored notification to its recipient's channel.
func (n *Notifier) PublishNotification(ctx context.Context, notification *models.Notification) error {
	if !n.Enabled() {
		return nil
	}
	payload, err := json.Marshal(Event{
		Type:         "notification",
		Recipient:    notification.User,
		Notification: notification,
	})
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	return n.PublishUser(ctx, notification.User, string(payload))
}

// StartPatternSubscriber subscribes to `notifications:user:*` and calls onMessage
// for each incoming message until ctx is cancelled. onMessage receives the
// recipient username and the payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(username string, payload string),
) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	// Wait for the subscription confirmation so publishes right after return are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(strings.TrimPrefix(msg.Channel, userChannelPrefix), msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(username string) string {
	return userChannelPrefix + username
}
