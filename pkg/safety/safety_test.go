package safety

import (
	"testing"

	"github.com/derbyworks/derbycar/pkg/brake"
	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/hw"
	"github.com/derbyworks/derbycar/pkg/steering"
)

// orderRecorder notes the order actuator commands arrive in.
type orderRecorder struct {
	*hw.DummyHW
	order []string
}

func (r *orderRecorder) SetSteeringSpeed(pct int) error {
	r.order = append(r.order, "steering")
	return r.DummyHW.SetSteeringSpeed(pct)
}

func (r *orderRecorder) SetBrakeSpeed(pct int) error {
	r.order = append(r.order, "brake")
	return r.DummyHW.SetBrakeSpeed(pct)
}

func newTestMonitor() (*Monitor, *orderRecorder) {
	d := hw.Dummy()
	d.Quiet = true
	rec := &orderRecorder{DummyHW: d}
	cfg := config.Default()
	cal := steering.NewCalibration(cfg.PotJitterTolerance)
	steer := steering.NewController(rec, cfg, cal)
	brk := brake.New(rec, cfg)
	m := New(rec, brk, steer, cfg)
	m.halt = func() {} // Keep Fatal returnable under test.
	return m, rec
}

func TestFatalBrakesBeforeSteering(t *testing.T) {
	m, rec := newTestMonitor()

	m.Fatal("test condition")

	if !m.Tripped() {
		t.Error("monitor not tripped after Fatal")
	}
	if len(rec.order) < 2 {
		t.Fatalf("expected brake and steering commands, got %v", rec.order)
	}
	if rec.order[0] != "brake" {
		t.Errorf("first actuator command = %q, want brake", rec.order[0])
	}
	if rec.order[1] != "steering" {
		t.Errorf("second actuator command = %q, want steering", rec.order[1])
	}
	if rec.LastBrakeSpeed() != -40 {
		t.Errorf("brake speed = %d, want -40", rec.LastBrakeSpeed())
	}
	if rec.LastSteeringSpeed() != 0 {
		t.Errorf("steering speed = %d, want 0", rec.LastSteeringSpeed())
	}
}

func TestSafeStateRespectsBrakeLimit(t *testing.T) {
	m, rec := newTestMonitor()
	rec.SetSnapshot(hw.Snapshot{BrakeApplyLimit: true})

	m.EnterSafeState()

	// At the limit the brake actuator must be off, not stalled against
	// the end stop.
	if rec.LastBrakeSpeed() != 0 {
		t.Errorf("brake speed at limit = %d, want 0", rec.LastBrakeSpeed())
	}
}
