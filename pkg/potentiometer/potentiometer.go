package potentiometer

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/io/i2c"
)

// ADS1015 register map; the steering potentiometer hangs off AIN0.
const (
	RegConversion = 0
	RegConfig     = 1

	// Single shot, AIN0 vs ground, +-4.096V, 1600SPS.
	configSingleShotAIN0 = 0xC383

	// The ADC gives 12 bits; the pot range the car works in is 0-1023.
	MaxValue = 1024
)

type Interface interface {
	Read() (int, error)
}

type port interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) (err error)
}

type ADS1015 struct {
	dev port
}

func New(deviceFile string, addr int) (*ADS1015, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, err
	}
	return &ADS1015{dev: dev}, nil
}

var _ Interface = (*ADS1015)(nil)

// Read kicks off a single-shot conversion and returns the reading scaled
// to 0-1023.
func (a *ADS1015) Read() (int, error) {
	var cfg [2]byte
	binary.BigEndian.PutUint16(cfg[:], configSingleShotAIN0)
	if err := a.dev.WriteReg(RegConfig, cfg[:]); err != nil {
		return 0, fmt.Errorf("failed to start conversion: %w", err)
	}
	// Poll the config register until the conversion-done bit sets.
	for {
		var buf [2]byte
		if err := a.dev.ReadReg(RegConfig, buf[:]); err != nil {
			return 0, fmt.Errorf("failed to read ADC status: %w", err)
		}
		if binary.BigEndian.Uint16(buf[:])&0x8000 != 0 {
			break
		}
	}
	var buf [2]byte
	if err := a.dev.ReadReg(RegConversion, buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read conversion: %w", err)
	}
	raw := int(binary.BigEndian.Uint16(buf[:]) >> 4) // 12-bit result
	if raw > 2047 {
		raw = 0 // Negative reading, pot unplugged.
	}
	// Scale 0-2047 down to the 0-1023 range the steering math uses.
	return raw / 2, nil
}

func Dummy(value int) Interface {
	return &dummyPot{value: value}
}

type dummyPot struct {
	value int
}

func (d *dummyPot) Read() (int, error) {
	return d.value, nil
}
