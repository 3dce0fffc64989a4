package motor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/kr/pty"
	"golang.org/x/exp/io/i2c"
)

// Register map of the derby hat.  One signed-percentage speed register per
// channel; the hat converts the percentage to the PWM drive signal.
const (
	RegSteering = 22
	RegBrake    = 23
	RegSpare1   = 24
	RegSpare2   = 25
)

type Channel byte

const (
	Steering Channel = RegSteering
	Brake    Channel = RegBrake
)

// Interface is the speed-controller contract the rest of the car depends
// on: a signed percentage in [-100, 100] per channel.
type Interface interface {
	SetSpeed(ch Channel, pct int) error
}

type DerbyHat struct {
	dev        *i2c.Device
	deviceFile string
	addr       int
	image      string
}

func Dummy() Interface {
	return &dummyHat{}
}

func New(deviceFile string, addr int, image string, flash bool) (*DerbyHat, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, err
	}

	hat := &DerbyHat{
		dev:        dev,
		deviceFile: deviceFile,
		addr:       addr,
		image:      image,
	}

	if flash {
		if err := hat.Flash(); err != nil {
			return nil, err
		}
	}

	return hat, nil
}

var _ Interface = (*DerbyHat)(nil)

// Flash reloads the hat's firmware image.  propman requires a TTY, or it
// reports success but the hat doesn't actually boot, so wrap it in a PTY.
func (h *DerbyHat) Flash() error {
	fmt.Println("Flashing the derby hat")
	cmd := exec.Command("propman", h.image)
	f, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	fmt.Printf("propman output:\n")
	go io.Copy(os.Stdout, f)
	err = cmd.Wait()
	if err != nil {
		return err
	}
	fmt.Println("Flashed the derby hat")
	// Give the hat time to boot...
	time.Sleep(25 * time.Millisecond)
	return nil
}

func (h *DerbyHat) SetSpeed(ch Channel, pct int) error {
	if pct > 100 {
		pct = 100
	}
	if pct < -100 {
		pct = -100
	}
	data := []byte{byte(ch), byte(int8(pct))}
	return h.writeWithRetries(data)
}

// Stop zeroes every output channel.
func (h *DerbyHat) Stop() {
	_ = h.SetSpeed(Steering, 0)
	_ = h.SetSpeed(Brake, 0)
}

func (h *DerbyHat) writeWithRetries(data []byte) error {
	var err error
	for tries := 0; tries < 20; tries++ {
		err = h.dev.Write(data)
		if err == nil {
			if tries > 0 {
				fmt.Println("Successfully programmed derby hat after retries")
			}
			return nil
		}
		fmt.Println("Failed to write to derby hat:", err)
		time.Sleep(1 * time.Millisecond)
		_ = h.dev.Close()
		dev, err := i2c.Open(&i2c.Devfs{Dev: h.deviceFile}, h.addr)
		if err != nil {
			continue
		}
		h.dev = dev
	}
	return fmt.Errorf("failed to write to derby hat after retries: %w", err)
}

func (h *DerbyHat) Close() error {
	h.Stop()
	return h.dev.Close()
}

type dummyHat struct {
}

func (h *dummyHat) SetSpeed(ch Channel, pct int) error {
	fmt.Printf("Dummy hat setting channel %d speed to %d%%\n", ch, pct)
	return nil
}
