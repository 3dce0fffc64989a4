package brake

import (
	"context"
	"testing"

	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/hw"
)

func newTestBrake() (*Controller, *hw.DummyHW) {
	d := hw.Dummy()
	d.Quiet = true
	cfg := config.Default()
	cfg.LoopPeriodMs = 1
	return New(d, cfg), d
}

func TestApplyDrivesUntilLimit(t *testing.T) {
	c, d := newTestBrake()

	if done := c.Apply(hw.Snapshot{}); done {
		t.Fatal("Apply confirmed with no limit switch")
	}
	if d.LastBrakeSpeed() != -40 {
		t.Errorf("brake speed = %d, want -40", d.LastBrakeSpeed())
	}
	if c.State() != Applying || c.IsApplied() {
		t.Errorf("state = %v applied=%v, want applying/false", c.State(), c.IsApplied())
	}

	if done := c.Apply(hw.Snapshot{BrakeApplyLimit: true}); !done {
		t.Fatal("Apply did not confirm at limit")
	}
	if d.LastBrakeSpeed() != 0 {
		t.Errorf("brake speed at limit = %d, want 0", d.LastBrakeSpeed())
	}
	if c.State() != Applied || !c.IsApplied() {
		t.Errorf("state = %v applied=%v, want applied/true", c.State(), c.IsApplied())
	}
}

func TestReleaseDrivesUntilLimit(t *testing.T) {
	c, d := newTestBrake()

	if done := c.Release(hw.Snapshot{}); done {
		t.Fatal("Release confirmed with no limit switch")
	}
	if d.LastBrakeSpeed() != 25 {
		t.Errorf("brake speed = %d, want 25", d.LastBrakeSpeed())
	}

	if done := c.Release(hw.Snapshot{BrakeReleaseLimit: true}); !done {
		t.Fatal("Release did not confirm at limit")
	}
	if d.LastBrakeSpeed() != 0 {
		t.Errorf("brake speed at limit = %d, want 0", d.LastBrakeSpeed())
	}
	if c.State() != Released || c.IsApplied() {
		t.Errorf("state = %v applied=%v, want released/false", c.State(), c.IsApplied())
	}
}

func TestApplyAndWait(t *testing.T) {
	c, d := newTestBrake()
	d.SetSnapshot(hw.Snapshot{BrakeApplyLimit: true})
	if err := c.ApplyAndWait(context.Background()); err != nil {
		t.Fatalf("ApplyAndWait: %v", err)
	}
	if !c.IsApplied() {
		t.Error("brake should be applied")
	}
}

func TestApplyAndWaitTimesOut(t *testing.T) {
	d := hw.Dummy()
	d.Quiet = true
	cfg := config.Default()
	cfg.LoopPeriodMs = 1
	cfg.BrakeConfirmSec = 0 // Timeout immediately.
	c := New(d, cfg)

	if err := c.ApplyAndWait(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
	if d.LastBrakeSpeed() != 0 {
		t.Errorf("brake speed after timeout = %d, want 0", d.LastBrakeSpeed())
	}
}
