package steering

// Calibration holds the potentiometer readings recorded at the mechanical
// steering limits and the center derived from them.  The pot's scale is
// reversed relative to physical left/right: the left extreme is the
// numerically larger reading.
type Calibration struct {
	LeftExtreme  int
	RightExtreme int
	Center       int

	JitterTolerance int

	lastGood int
	Complete bool
}

func NewCalibration(jitterTolerance int) *Calibration {
	return &Calibration{JitterTolerance: jitterTolerance}
}

// computeCenter derives the true-center reading.  Integer division, and
// RightExtreme <= Center <= LeftExtreme by construction.
func (c *Calibration) computeCenter() {
	c.Center = c.RightExtreme + (c.LeftExtreme-c.RightExtreme)/2
}

// Filter rejects pot jitter: a reading outside the calibrated extremes by
// more than the tolerance is discarded in favour of the last good one.
// Purely a filtering policy, never an error.
func (c *Calibration) Filter(reading int) int {
	if !c.Complete {
		c.lastGood = reading
		return reading
	}
	if reading > c.LeftExtreme+c.JitterTolerance ||
		reading < c.RightExtreme-c.JitterTolerance {
		return c.lastGood
	}
	c.lastGood = reading
	return reading
}
