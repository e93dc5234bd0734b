package plexup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/igoyetche/plex-update-script/internal/plexup"
	"github.com/igoyetche/plex-update-script/internal/testutil"
)

// slowServiceManager reaches the commanded state only after a number of
// state queries, simulating a unit that takes time to settle.
type slowServiceManager struct {
	active      bool
	target      bool
	queriesLeft int // IsActive calls until the target state is reached
	queries     int
}

func (m *slowServiceManager) Start(ctx context.Context) error {
	m.target = true
	return nil
}

func (m *slowServiceManager) Stop(ctx context.Context) error {
	m.target = false
	return nil
}

func (m *slowServiceManager) IsActive(ctx context.Context) (bool, error) {
	m.queries++
	if m.queriesLeft > 0 {
		m.queriesLeft--
		if m.queriesLeft == 0 {
			m.active = m.target
		}
	}
	return m.active, nil
}

func newController(m plexup.ServiceManager, clock plexup.Clock) *plexup.ServiceController {
	return plexup.NewServiceController(m, clock, 3*time.Second, 5*time.Second, 500*time.Millisecond, plexup.NewNopLogger())
}

func TestServiceController_Stop_WaitsForInactive(t *testing.T) {
	m := &slowServiceManager{active: true, queriesLeft: 3}
	clock := testutil.FixedClock()

	if err := newController(m, clock).Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.active {
		t.Error("service still active after Stop settled")
	}
	if m.queries != 3 {
		t.Errorf("IsActive queried %d times, want 3", m.queries)
	}
}

func TestServiceController_Start_WaitsForActive(t *testing.T) {
	m := &slowServiceManager{active: false, queriesLeft: 2}
	clock := testutil.FixedClock()

	if err := newController(m, clock).Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.active {
		t.Error("service not active after Start settled")
	}
}

func TestServiceController_SettleTimeoutIsNotAnError(t *testing.T) {
	// The unit never reaches the target state; Stop must still return
	// once the settle window elapses. Verify is the authoritative check.
	m := &slowServiceManager{active: true, queriesLeft: 1000}
	clock := testutil.FixedClock()

	start := clock.Now()
	if err := newController(m, clock).Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if elapsed := clock.Now().Sub(start); elapsed > 3*time.Second {
		t.Errorf("settle ran past its window: %v", elapsed)
	}

	active, err := newController(m, clock).Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !active {
		t.Error("Verify() = false, the fake never went inactive")
	}
}

func TestServiceController_StopCommandFailure(t *testing.T) {
	m := &testutil.FakeServiceManager{Active: true, StopErr: errors.New("unit not loaded")}
	clock := testutil.FixedClock()

	err := newController(m, clock).Stop(context.Background())
	if !errors.Is(err, plexup.ErrServiceControl) {
		t.Errorf("Stop() error = %v, want ErrServiceControl", err)
	}
}

func TestServiceController_StartCommandFailure(t *testing.T) {
	m := &testutil.FakeServiceManager{StartErr: errors.New("unit not loaded")}
	clock := testutil.FixedClock()

	err := newController(m, clock).Start(context.Background())
	if !errors.Is(err, plexup.ErrServiceControl) {
		t.Errorf("Start() error = %v, want ErrServiceControl", err)
	}
}
