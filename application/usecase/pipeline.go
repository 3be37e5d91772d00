package usecase

import (
	"context"
	"time"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

// Clock returns the current time. Services take one so windows can be tested
// against a fixed instant.
type Clock func() time.Time

// SystemClock is the production clock, always UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

func orSystemClock(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// storeErr keeps classified errors as they are and wraps anything else from
// a repository as a persistence failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.Persistence(op, err)
}

// sendAlert is fire-and-forget: delivery errors are logged and dropped
func sendAlert(ctx context.Context, n outbound.Notifier, log logger.Logger, alert outbound.Alert) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, alert); err != nil {
		log.Warn(ctx, "Alert delivery failed", map[string]interface{}{
			"alert_type": alert.Type,
			"domain_id":  alert.DomainID,
			"error":      err.Error(),
		})
	}
}
