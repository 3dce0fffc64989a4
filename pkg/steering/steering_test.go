package steering

import (
	"testing"

	"github.com/derbyworks/derbycar/pkg/config"
	"github.com/derbyworks/derbycar/pkg/hw"
)

func newTestController() (*Controller, *hw.DummyHW) {
	d := hw.Dummy()
	d.Quiet = true
	cfg := config.Default()
	cal := NewCalibration(cfg.PotJitterTolerance)
	return NewController(d, cfg, cal), d
}

func TestDeadZone(t *testing.T) {
	c, _ := newTestController()
	for _, v := range []int{0, 1, 5, 9, 10, -1, -5, -9, -10} {
		if got := c.SetCommand(hw.Snapshot{}, v); got != 0 {
			t.Errorf("SetCommand(%d) realized %d, want 0 (dead zone)", v, got)
		}
	}
	if got := c.SetCommand(hw.Snapshot{}, 11); got != 11 {
		t.Errorf("SetCommand(11) realized %d, want 11", got)
	}
	if got := c.SetCommand(hw.Snapshot{}, -11); got != -11 {
		t.Errorf("SetCommand(-11) realized %d, want -11", got)
	}
}

func TestLimitSwitchInterlock(t *testing.T) {
	c, _ := newTestController()

	atLeft := hw.Snapshot{SteeringLeftLimit: true}
	if got := c.SetCommand(atLeft, -80); got != 0 {
		t.Errorf("left command into left limit realized %d, want 0", got)
	}
	if got := c.SetCommand(atLeft, 80); got != 80 {
		t.Errorf("right command at left limit realized %d, want 80", got)
	}

	atRight := hw.Snapshot{SteeringRightLimit: true}
	if got := c.SetCommand(atRight, 80); got != 0 {
		t.Errorf("right command into right limit realized %d, want 0", got)
	}
	if got := c.SetCommand(atRight, -80); got != -80 {
		t.Errorf("left command at right limit realized %d, want -80", got)
	}
}

func TestClampAndDirection(t *testing.T) {
	c, _ := newTestController()
	if got := c.SetCommand(hw.Snapshot{}, 250); got != 100 {
		t.Errorf("SetCommand(250) realized %d, want 100", got)
	}
	if c.Direction() != Right {
		t.Errorf("Direction = %v, want right", c.Direction())
	}
	c.SetCommand(hw.Snapshot{}, -50)
	if c.Direction() != Left {
		t.Errorf("Direction = %v, want left", c.Direction())
	}
	c.SetCommand(hw.Snapshot{}, 0)
	if c.Direction() != Neutral {
		t.Errorf("Direction = %v, want neutral", c.Direction())
	}
}

func TestCenterComputation(t *testing.T) {
	for _, tc := range []struct {
		left, right, center int
	}{
		{800, 200, 500},
		{1023, 0, 511},
		{601, 600, 600},
		{600, 600, 600},
	} {
		cal := NewCalibration(5)
		cal.LeftExtreme = tc.left
		cal.RightExtreme = tc.right
		cal.computeCenter()
		if cal.Center != tc.center {
			t.Errorf("center of (%d, %d) = %d, want %d", tc.left, tc.right, cal.Center, tc.center)
		}
		if cal.Center < tc.right || cal.Center > tc.left {
			t.Errorf("center %d outside extremes [%d, %d]", cal.Center, tc.right, tc.left)
		}
	}
}

func TestCenterByPotentiometer(t *testing.T) {
	c, _ := newTestController()
	cal := c.Calibration()
	cal.LeftExtreme = 800
	cal.RightExtreme = 200
	cal.computeCenter()
	cal.Complete = true

	for _, tc := range []struct {
		pot  int
		want int
	}{
		{500, 0},   // dead center
		{503, 0},   // within jitter
		{497, 0},   // within jitter
		{520, 20},  // pot high of center: steer right
		{480, -20}, // pot low of center: steer left
	} {
		got := c.CenterByPotentiometer(hw.Snapshot{Potentiometer: tc.pot})
		if got != tc.want {
			t.Errorf("CenterByPotentiometer(pot=%d) = %d, want %d", tc.pot, got, tc.want)
		}
	}
}

func TestCenterByPotentiometerIncomplete(t *testing.T) {
	c, _ := newTestController()
	if got := c.CenterByPotentiometer(hw.Snapshot{Potentiometer: 900}); got != 0 {
		t.Errorf("centering without calibration realized %d, want 0", got)
	}
}

func TestJitterFilter(t *testing.T) {
	cal := NewCalibration(5)
	cal.LeftExtreme = 800
	cal.RightExtreme = 200
	cal.computeCenter()
	cal.Complete = true

	if got := cal.Filter(500); got != 500 {
		t.Errorf("Filter(500) = %d, want 500", got)
	}
	// Outside the extremes by more than the tolerance: keep the last good.
	if got := cal.Filter(900); got != 500 {
		t.Errorf("Filter(900) = %d, want 500 (last good)", got)
	}
	if got := cal.Filter(100); got != 500 {
		t.Errorf("Filter(100) = %d, want 500 (last good)", got)
	}
	// Just beyond the extreme but inside the tolerance is fine.
	if got := cal.Filter(804); got != 804 {
		t.Errorf("Filter(804) = %d, want 804", got)
	}
}
