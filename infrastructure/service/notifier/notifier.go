package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

// DefaultChannel is the Redis channel alerts are published on
const DefaultChannel = "brandpilot:alerts"

// LogNotifier writes alerts to the structured log. It is always wired so an
// alert is visible even when no external channel is configured.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.WithFields(map[string]interface{}{"component": "notifier"})}
}

func (n *LogNotifier) Notify(ctx context.Context, alert outbound.Alert) error {
	fields := map[string]interface{}{
		"alert_type": alert.Type,
		"domain_id":  alert.DomainID,
		"subject":    alert.Subject,
	}
	for k, v := range alert.Data {
		fields["alert_"+k] = v
	}
	n.logger.Warn(ctx, "Alert: "+alert.Message, fields)
	return nil
}

// RedisNotifier publishes alerts as JSON for downstream push delivery
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, alert outbound.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

// Fanout delivers each alert to every notifier and joins their errors
type Fanout []outbound.Notifier

func (f Fanout) Notify(ctx context.Context, alert outbound.Alert) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
