// Package notifications provides real-time notification delivery and management.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"socialapp/internal/observability"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "notifications:user:"

// Event type constants prevent typos in event names.
const (
	EventPostLiked      = "post_liked"
	EventCommentLiked   = "comment_liked"
	EventCommentCreated = "comment_created"
)

// Event is the JSON envelope delivered to websocket clients.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb   *redis.Client
	local *Hub
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// rdb may be nil, in which case events only reach the local hub (if any).
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// SetLocalHub makes the notifier deliver straight to hub when Redis is not
// configured, so a single instance still pushes events.
func (n *Notifier) SetLocalHub(hub *Hub) {
	n.local = hub
}

// UserChannel derives the Redis channel name for a subject.
func UserChannel(subjectID string) string {
	return userChannelPrefix + subjectID
}

// PublishUser sends a notification payload to a subject's channel.
func (n *Notifier) PublishUser(ctx context.Context, subjectID, payload string) error {
	if n.rdb == nil {
		if n.local != nil {
			n.local.Broadcast(subjectID, payload)
			observability.NotificationsPublished.WithLabelValues("local").Inc()
		}
		return nil
	}
	if err := n.rdb.Publish(ctx, UserChannel(subjectID), payload).Err(); err != nil {
		observability.NotificationsPublished.WithLabelValues("error").Inc()
		return err
	}
	observability.NotificationsPublished.WithLabelValues("ok").Inc()
	return nil
}

// PublishEvent marshals evt and publishes it to the subject's channel.
func (n *Notifier) PublishEvent(ctx context.Context, subjectID string, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	return n.PublishUser(ctx, subjectID, string(payload))
}

// StartPatternSubscriber subscribes to pattern `notifications:user:*` and calls onMessage
// for each incoming message. onMessage receives channel and payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	// Wait for the subscription so no publish after return is missed.
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
							observability.Logger.Error("PANIC in PatternSubscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// subjectFromChannel extracts the subject id from a user channel name.
func subjectFromChannel(channel string) (string, bool) {
	subject, ok := strings.CutPrefix(channel, userChannelPrefix)
	return subject, ok && subject != ""
}
