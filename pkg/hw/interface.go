package hw

import "github.com/derbyworks/derbycar/pkg/odometry"

// Snapshot is one control cycle's consistent view of the switches and the
// steering potentiometer.  It is read once at the top of each loop and
// handed to every component that needs it; only the hall counters can
// change underneath a cycle.
type Snapshot struct {
	SteeringLeftLimit  bool
	SteeringRightLimit bool
	BrakeApplyLimit    bool
	BrakeReleaseLimit  bool
	AutonomousSwitch   bool
	Potentiometer      int
}

// Interface is the hardware the car control code runs against.  The real
// implementation talks to the hat, GPIO and the ADC; Dummy() is a bench
// fake with settable state.
type Interface interface {
	ReadSnapshot() Snapshot

	// Signed percentage in [-100, 100] per actuator.
	SetSteeringSpeed(pct int) error
	SetBrakeSpeed(pct int) error

	Odometer() *odometry.Odometer

	SetLED(n int, on bool)
	PlaySound(path string)

	Shutdown()
}
