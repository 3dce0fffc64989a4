package odometry

import (
	"sync/atomic"
)

// Odometer counts hall-sensor pulses from the two wheel magnets.  The
// counters are bumped from the per-pin edge goroutines and read from the
// main control loop, so all access goes through sync/atomic.
type Odometer struct {
	leftCount  uint32
	rightCount uint32

	pulsesPerRev   uint32
	circumferenceM float64
}

func New(magnetsPerWheel int, wheelCircumferenceM float64) *Odometer {
	return &Odometer{
		pulsesPerRev:   uint32(magnetsPerWheel),
		circumferenceM: wheelCircumferenceM,
	}
}

// CountLeftPulse is called once per falling edge on the left hall sensor.
// Safe to call concurrently with any reader.
func (o *Odometer) CountLeftPulse() {
	atomic.AddUint32(&o.leftCount, 1)
}

func (o *Odometer) CountRightPulse() {
	atomic.AddUint32(&o.rightCount, 1)
}

func (o *Odometer) LeftCount() uint32 {
	return atomic.LoadUint32(&o.leftCount)
}

func (o *Odometer) RightCount() uint32 {
	return atomic.LoadUint32(&o.rightCount)
}

// Counts returns a consistent left/right pair.  The two counters can tick
// between the individual loads, so re-read until a double read of each
// counter is stable.
func (o *Odometer) Counts() (left, right uint32) {
	for {
		left = atomic.LoadUint32(&o.leftCount)
		right = atomic.LoadUint32(&o.rightCount)
		if atomic.LoadUint32(&o.leftCount) == left &&
			atomic.LoadUint32(&o.rightCount) == right {
			return
		}
	}
}

// DistanceLeftM converts the left pulse count to metres travelled.
func (o *Odometer) DistanceLeftM() float64 {
	return o.distanceM(o.LeftCount())
}

func (o *Odometer) DistanceRightM() float64 {
	return o.distanceM(o.RightCount())
}

func (o *Odometer) distanceM(count uint32) float64 {
	return float64(count) * o.circumferenceM / float64(o.pulsesPerRev)
}

// Reset zeroes both counters.  Only call from the main loop while the car
// is stationary (edges mid-reset would be lost, not corrupted).
func (o *Odometer) Reset() {
	atomic.StoreUint32(&o.leftCount, 0)
	atomic.StoreUint32(&o.rightCount, 0)
}
