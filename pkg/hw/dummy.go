package hw

import (
	"fmt"
	"sync"

	"github.com/derbyworks/derbycar/pkg/odometry"
)

// DummyHW is the bench fake: switch and pot state is settable, actuator
// commands are recorded.  Used when the real hardware is missing and by
// the package tests.
type DummyHW struct {
	lock sync.Mutex

	Snap Snapshot
	odo  *odometry.Odometer

	SteeringSpeeds []int
	BrakeSpeeds    []int

	Quiet bool
}

var _ Interface = (*DummyHW)(nil)

func Dummy() *DummyHW {
	return &DummyHW{
		odo: odometry.New(6, 1.26),
	}
}

func (d *DummyHW) SetSnapshot(s Snapshot) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.Snap = s
}

func (d *DummyHW) ReadSnapshot() Snapshot {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.Snap
}

func (d *DummyHW) SetSteeringSpeed(pct int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.SteeringSpeeds = append(d.SteeringSpeeds, pct)
	if !d.Quiet {
		fmt.Printf("Dummy hw steering speed = %d%%\n", pct)
	}
	return nil
}

func (d *DummyHW) SetBrakeSpeed(pct int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.BrakeSpeeds = append(d.BrakeSpeeds, pct)
	if !d.Quiet {
		fmt.Printf("Dummy hw brake speed = %d%%\n", pct)
	}
	return nil
}

// LastSteeringSpeed returns the most recent steering command, or 0.
func (d *DummyHW) LastSteeringSpeed() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	if len(d.SteeringSpeeds) == 0 {
		return 0
	}
	return d.SteeringSpeeds[len(d.SteeringSpeeds)-1]
}

func (d *DummyHW) LastBrakeSpeed() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	if len(d.BrakeSpeeds) == 0 {
		return 0
	}
	return d.BrakeSpeeds[len(d.BrakeSpeeds)-1]
}

func (d *DummyHW) Odometer() *odometry.Odometer {
	return d.odo
}

func (d *DummyHW) SetLED(n int, on bool) {
	if !d.Quiet {
		fmt.Printf("Dummy hw LED %d = %v\n", n, on)
	}
}

func (d *DummyHW) PlaySound(path string) {
	if !d.Quiet {
		fmt.Println("Dummy hw playing sound", path)
	}
}

func (d *DummyHW) Shutdown() {
}
