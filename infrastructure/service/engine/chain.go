package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brandpilot/brandpilot/application/port/outbound"
	apperr "github.com/brandpilot/brandpilot/domain/error"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

// Chain tries each engine in order, each under its own timeout, and reports
// CollaboratorUnavailable once all of them have failed.
type Chain struct {
	engines []outbound.ContentEngine
	timeout time.Duration
	metrics outbound.PipelineMetrics
	logger  logger.Logger
}

func NewChain(timeout time.Duration, metrics outbound.PipelineMetrics, log logger.Logger, engines ...outbound.ContentEngine) *Chain {
	if metrics == nil {
		metrics = outbound.NoopMetrics{}
	}
	return &Chain{
		engines: engines,
		timeout: timeout,
		metrics: metrics,
		logger:  log.WithFields(map[string]interface{}{"component": "content_engine"}),
	}
}

func (c *Chain) Generate(ctx context.Context, req outbound.BriefRequest) (*outbound.BriefDraft, error) {
	var errs []error
	for _, engine := range c.engines {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		start := time.Now()
		draft, err := c.call(ctx, engine, req)
		if err == nil {
			c.metrics.ObserveEngineCall(engine.Name(), "success")
			logger.LogPerformance(ctx, c.logger, "engine_draft", time.Since(start), map[string]interface{}{
				"engine": engine.Name(),
			})
			return draft, nil
		}

		result := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
		c.metrics.ObserveEngineCall(engine.Name(), result)
		c.logger.Warn(ctx, "Content engine failed, falling through", map[string]interface{}{
			"engine": engine.Name(),
			"result": result,
			"error":  err.Error(),
		})
		errs = append(errs, fmt.Errorf("%s: %w", engine.Name(), err))
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no content engines configured"))
	}
	return nil, apperr.CollaboratorUnavailable("content-engine", errors.Join(errs...))
}

func (c *Chain) call(ctx context.Context, engine outbound.ContentEngine, req outbound.BriefRequest) (*outbound.BriefDraft, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	draft, err := engine.Draft(ctx, req)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, errors.New("engine returned no draft")
	}
	if draft.Engine == "" {
		draft.Engine = engine.Name()
	}
	return draft, nil
}
