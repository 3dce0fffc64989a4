package autodrive

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/derbyworks/derbycar/pkg/brake"
	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/datalog"
	"github.com/derbyworks/derbycar/pkg/hw"
	"github.com/derbyworks/derbycar/pkg/nvram"
	"github.com/derbyworks/derbycar/pkg/steering"
)

func testCal() *steering.Calibration {
	return &steering.Calibration{
		LeftExtreme:     800,
		RightExtreme:    200,
		Center:          500,
		JitterTolerance: 5,
		Complete:        true,
	}
}

func newTestSupervisor(cfg config.Config) (*Supervisor, *hw.DummyHW) {
	d := hw.Dummy()
	d.Quiet = true
	cal := testCal()
	steer := steering.NewController(d, cfg, cal)
	brk := brake.New(d, cfg)
	log := datalog.New(cfg.LogCapacity, cfg.OverwriteOnOverflow)
	return New(d, steer, brk, log, nil, cfg), d
}

func TestDriftCorrection(t *testing.T) {
	cfg := config.Default()
	cfg.LoopPeriodMs = 1
	s, d := newTestSupervisor(cfg)
	odo := d.Odometer()
	snap := hw.Snapshot{AutonomousSwitch: true, Potentiometer: 500}

	// Left wheel 10 pulses, right 6: well past the drift band, so the
	// car is arcing right and must steer back left.
	for i := 0; i < 10; i++ {
		odo.CountLeftPulse()
	}
	for i := 0; i < 6; i++ {
		odo.CountRightPulse()
	}
	s.correctDrift(snap)
	if got := d.LastSteeringSpeed(); got != -80 {
		t.Errorf("left-ahead drift: steering = %d, want -80", got)
	}

	// Mirror case.
	odo.Reset()
	for i := 0; i < 4; i++ {
		odo.CountRightPulse()
	}
	s.correctDrift(snap)
	if got := d.LastSteeringSpeed(); got != 80 {
		t.Errorf("right-ahead drift: steering = %d, want 80", got)
	}

	// Counts inside the band fall through to pot centering: a pot right
	// of center steers right at the centering speed, never a full turn.
	odo.Reset()
	odo.CountLeftPulse()
	odo.CountRightPulse()
	s.correctDrift(hw.Snapshot{AutonomousSwitch: true, Potentiometer: 520})
	if got := d.LastSteeringSpeed(); got != 20 {
		t.Errorf("in-band drift with pot offset: steering = %d, want 20", got)
	}
	s.correctDrift(hw.Snapshot{AutonomousSwitch: true, Potentiometer: 500})
	if got := d.LastSteeringSpeed(); got != 0 {
		t.Errorf("in-band drift on center: steering = %d, want 0", got)
	}
}

func TestRunCancelledBeforeLaunch(t *testing.T) {
	cfg := config.Default()
	cfg.LoopPeriodMs = 1
	cfg.FlushLogOnExit = false
	s, d := newTestSupervisor(cfg)

	// Switch already off, brake limit ready to confirm.
	d.SetSnapshot(hw.Snapshot{BrakeApplyLimit: true})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after pre-launch cancel")
	}

	if s.IsExecuting() {
		t.Error("still flagged as executing after the run")
	}
	if s.Phase() != Idle {
		t.Errorf("phase = %v, want idle", s.Phase())
	}
	if d.LastSteeringSpeed() != 0 {
		t.Errorf("steering after exit = %d, want 0", d.LastSteeringSpeed())
	}
	if d.LastBrakeSpeed() != 0 {
		t.Errorf("brake speed after exit = %d, want 0 (limit confirmed)", d.LastBrakeSpeed())
	}
}

func TestRunTimesOutAndStops(t *testing.T) {
	cfg := config.Default()
	cfg.LoopPeriodMs = 1
	cfg.MaxRunLengthMs = 100
	cfg.LaunchCountThresh = 0 // Launch immediately.
	cfg.FlushLogOnExit = false
	s, d := newTestSupervisor(cfg)

	// Rolling: switch on, brake release limit confirming each cycle.
	d.SetSnapshot(hw.Snapshot{
		AutonomousSwitch:  true,
		BrakeReleaseLimit: true,
		Potentiometer:     500,
	})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	// The run must reach Executing, then time out into Exiting on its own.
	waitForPhase(t, s, Executing)
	if !s.IsExecuting() {
		t.Error("not flagged as executing mid-run")
	}
	waitForPhase(t, s, Exiting)

	// Operator stops the car and flips the switch off.
	d.SetSnapshot(hw.Snapshot{BrakeApplyLimit: true})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after switch release")
	}

	if s.log.Index() == 0 && !s.log.Overflowed() {
		t.Error("no telemetry entries logged during the run")
	}
	left, right := d.Odometer().Counts()
	if left != 0 || right != 0 {
		t.Errorf("counters after exit = %d/%d, want 0/0", left, right)
	}
	if !s.brake.IsApplied() {
		t.Error("brake not applied after exit")
	}
}

func TestRunFlushesLogOnExit(t *testing.T) {
	cfg := config.Default()
	cfg.LoopPeriodMs = 1
	cfg.MaxRunLengthMs = 10
	cfg.LaunchCountThresh = 0
	cfg.LogCapacity = 16
	cfg.FlushLogOnExit = true

	d := hw.Dummy()
	d.Quiet = true
	steer := steering.NewController(d, cfg, testCal())
	brk := brake.New(d, cfg)
	log := datalog.New(cfg.LogCapacity, cfg.OverwriteOnOverflow)
	store := nvram.NewMem(4096)
	s := New(d, steer, brk, log, store, cfg)

	d.SetSnapshot(hw.Snapshot{
		AutonomousSwitch:  true,
		BrakeReleaseLimit: true,
		Potentiometer:     500,
	})
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	waitForPhase(t, s, Exiting)
	d.SetSnapshot(hw.Snapshot{BrakeApplyLimit: true})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	if !bytes.Equal(store.Data[0:4], datalog.Magic[:]) {
		t.Error("no log record flushed to storage on exit")
	}
}

func waitForPhase(t *testing.T, s *Supervisor, want Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.Phase() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for phase %v (at %v)", want, s.Phase())
		}
		time.Sleep(time.Millisecond)
	}
}
