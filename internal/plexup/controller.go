package plexup

import (
	"context"
	"fmt"
	"time"
)

// ServiceController wraps a ServiceManager with a settle phase: after
// issuing stop or start it polls the unit state until the target state
// is reached or the settle timeout elapses. Callers must not assume the
// state is correct immediately after Stop or Start returns; Verify is
// the authoritative check.
type ServiceController struct {
	manager      ServiceManager
	clock        Clock
	stopSettle   time.Duration
	startSettle  time.Duration
	pollInterval time.Duration
	logger       Logger
}

// NewServiceController creates a controller with the given settle
// timeouts and poll interval.
func NewServiceController(manager ServiceManager, clock Clock, stopSettle, startSettle, pollInterval time.Duration, logger Logger) *ServiceController {
	return &ServiceController{
		manager:      manager,
		clock:        clock,
		stopSettle:   stopSettle,
		startSettle:  startSettle,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Stop issues a stop command and waits for the unit to go inactive.
// A failed stop command is fatal to the run.
func (c *ServiceController) Stop(ctx context.Context) error {
	if err := c.manager.Stop(ctx); err != nil {
		return fmt.Errorf("stopping service: %w: %v", ErrServiceControl, err)
	}
	c.settle(ctx, false, c.stopSettle)
	return nil
}

// Start issues a start command and waits for the unit to go active.
// A failed start command is fatal to the run.
func (c *ServiceController) Start(ctx context.Context) error {
	if err := c.manager.Start(ctx); err != nil {
		return fmt.Errorf("starting service: %w: %v", ErrServiceControl, err)
	}
	c.settle(ctx, true, c.startSettle)
	return nil
}

// Verify queries the current active state once, without waiting or
// retrying. The caller decides the outcome.
func (c *ServiceController) Verify(ctx context.Context) (bool, error) {
	return c.manager.IsActive(ctx)
}

// settle polls the unit state until it matches want or the timeout
// elapses. Reaching the timeout is not an error here; the caller's
// Verify decides what an unsettled service means.
func (c *ServiceController) settle(ctx context.Context, want bool, timeout time.Duration) {
	deadline := c.clock.Now().Add(timeout)
	for {
		active, err := c.manager.IsActive(ctx)
		if err == nil && active == want {
			return
		}
		if err != nil {
			c.logger.Debug("service state query failed while settling", "error", err)
		} else {
			c.logger.Debug("waiting for service to settle", "active", active, "want", want)
		}
		if !c.clock.Now().Add(c.pollInterval).Before(deadline) {
			return
		}
		c.clock.Sleep(c.pollInterval)
	}
}
