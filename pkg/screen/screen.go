package screen

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fogleman/gg"
)

// Status is what the little panel shows between runs: enough for the
// pit crew to sanity-check the car without plugging a laptop in.
type Status struct {
	Mode            string
	SteeringCommand int
	Potentiometer   int
	PotCenter       int
	LeftHallCount   uint32
	RightHallCount  uint32
	BrakeState      string
	Calibrated      bool
}

const (
	size      = 128 // Square framebuffer, 16-bit RGB565.
	potMax    = 1023
	barHeight = 10
)

// LoopUpdatingScreen redraws the status panel twice a second until the
// context is cancelled, then blanks it.  A missing framebuffer (bench
// runs) is not an error; the loop just doesn't start.
func LoopUpdatingScreen(ctx context.Context, source func() Status) {
	f, err := os.OpenFile("/dev/fb1", os.O_RDWR, 0666)
	if err != nil {
		fmt.Println("Failed to open screen, ignoring")
		return
	}

	for range time.NewTicker(500 * time.Millisecond).C {
		if ctx.Err() != nil {
			var buf [size * size * 2]byte
			_, _ = f.Seek(0, 0)
			_, _ = f.Write(buf[:])
			return
		}

		dc := render(source())
		if err := blit(f, dc); err != nil {
			fmt.Println("Screen failure: ", err)
			return
		}
	}
}

func render(s Status) *gg.Context {
	dc := gg.NewContext(size, size)
	dc.SetRGBA(1, 0.9, 0, 1)

	dc.DrawString(s.Mode, 4, 14)
	if s.Calibrated {
		dc.DrawString(fmt.Sprintf("steer %4d", s.SteeringCommand), 4, 30)
	} else {
		dc.DrawString("NOT CALIBRATED", 4, 30)
	}
	dc.DrawString(fmt.Sprintf("hall %d/%d", s.LeftHallCount, s.RightHallCount), 4, 46)
	dc.DrawString("brake "+s.BrakeState, 4, 62)

	drawPotBar(dc, s.Potentiometer, s.PotCenter)
	return dc
}

// drawPotBar shows the live pot position with a tick at the calibrated
// center, so a skewed axle is visible at a glance.
func drawPotBar(dc *gg.Context, pot, center int) {
	const y = float64(size - barHeight - 4)
	dc.DrawRectangle(2, y, size-4, barHeight)
	dc.Stroke()

	pos := float64(pot) / potMax * (size - 4)
	dc.DrawRectangle(2, y, pos, barHeight)
	dc.Fill()

	if center > 0 {
		tick := 2 + float64(center)/potMax*(size-4)
		dc.SetRGBA(1, 0.2, 0.2, 1)
		dc.DrawRectangle(tick-1, y-2, 2, barHeight+4)
		dc.Fill()
		dc.SetRGBA(1, 0.9, 0, 1)
	}
}

// blit converts the rendered image to the panel's RGB565 layout and
// writes it out row by row; the panel glitches on big writes, hence the
// per-row pacing.
func blit(f *os.File, dc *gg.Context) error {
	var buf [size * size * 2]byte
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := dc.Image().At(x, y)
			r, g, b, _ := c.RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(size-1-y)*2+x*size*2+1] = (rb << 3) | (gb >> 3)
			buf[(size-1-y)*2+x*size*2] = bb | (gb << 5)
		}
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		if _, err := f.Write(buf[i*256 : i*256+256]); err != nil {
			return err
		}
		time.Sleep(10 * time.Microsecond)
	}
	return nil
}
