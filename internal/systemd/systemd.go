// Package systemd implements the service manager collaborator over the
// systemd D-Bus API.
package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/igoyetche/plex-update-script/internal/plexup"
)

// Manager controls one systemd unit. Each call opens a short-lived
// system bus connection; runs issue at most a handful of unit commands,
// so holding a connection open buys nothing.
type Manager struct {
	unit   string
	logger plexup.Logger
}

var _ plexup.ServiceManager = (*Manager)(nil)

// NewManager creates a Manager for the named service. A bare name gets
// the ".service" suffix appended.
func NewManager(service string, logger plexup.Logger) *Manager {
	unit := service
	if !strings.HasSuffix(unit, ".service") {
		unit += ".service"
	}
	return &Manager{unit: unit, logger: logger}
}

// Start issues a start job and waits for systemd to report its result.
func (m *Manager) Start(ctx context.Context) error {
	return m.runJob(ctx, "start", func(conn *dbus.Conn, ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, m.unit, "replace", ch)
	})
}

// Stop issues a stop job and waits for systemd to report its result.
func (m *Manager) Stop(ctx context.Context) error {
	return m.runJob(ctx, "stop", func(conn *dbus.Conn, ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, m.unit, "replace", ch)
	})
}

// IsActive reports whether the unit's ActiveState is "active".
func (m *Manager) IsActive(ctx context.Context) (bool, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return false, fmt.Errorf("connecting to system bus: %w", err)
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, m.unit, "ActiveState")
	if err != nil {
		return false, fmt.Errorf("querying %s: %w", m.unit, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return false, fmt.Errorf("unexpected ActiveState type for %s", m.unit)
	}
	m.logger.Debug("unit state", "unit", m.unit, "state", state)
	return state == "active", nil
}

func (m *Manager) runJob(ctx context.Context, verb string, job func(*dbus.Conn, chan<- string) (int, error)) error {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("connecting to system bus: %w", err)
	}
	defer conn.Close()

	results := make(chan string, 1)
	if _, err := job(conn, results); err != nil {
		return fmt.Errorf("%s %s: %w", verb, m.unit, err)
	}

	select {
	case result := <-results:
		if result != "done" {
			return fmt.Errorf("%s %s: job result %q", verb, m.unit, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
