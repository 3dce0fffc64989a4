package nvram

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/io/i2c"
)

// Store is byte-addressable non-volatile storage.  The data log is the
// only component that talks to it, and only from the main context.
type Store interface {
	ReadByte(offset int) (byte, error)
	WriteByte(offset int, value byte) error
	Size() int
}

// EEPROM is an AT24C32-style I2C part: two-byte addressing and a write
// cycle of a few milliseconds per byte.  The limited write-cycle lifetime
// is why callers do read-before-write.
type EEPROM struct {
	dev  *i2c.Device
	size int
}

const writeCycleTime = 5 * time.Millisecond

func NewEEPROM(deviceFile string, addr, size int) (*EEPROM, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open EEPROM: %w", err)
	}
	return &EEPROM{dev: dev, size: size}, nil
}

var _ Store = (*EEPROM)(nil)

func (e *EEPROM) ReadByte(offset int) (byte, error) {
	if offset < 0 || offset >= e.size {
		return 0, fmt.Errorf("EEPROM read out of range: %d", offset)
	}
	if err := e.dev.Write([]byte{byte(offset >> 8), byte(offset)}); err != nil {
		return 0, err
	}
	var buf [1]byte
	if err := e.dev.Read(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (e *EEPROM) WriteByte(offset int, value byte) error {
	if offset < 0 || offset >= e.size {
		return fmt.Errorf("EEPROM write out of range: %d", offset)
	}
	if err := e.dev.Write([]byte{byte(offset >> 8), byte(offset), value}); err != nil {
		return err
	}
	time.Sleep(writeCycleTime)
	return nil
}

func (e *EEPROM) Size() int {
	return e.size
}

func (e *EEPROM) Close() error {
	return e.dev.Close()
}

// File is a file-backed store for bench runs without the EEPROM fitted.
type File struct {
	f    *os.File
	size int
}

func NewFile(path string, size int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, size: size}, nil
}

var _ Store = (*File)(nil)

func (s *File) ReadByte(offset int) (byte, error) {
	var buf [1]byte
	if _, err := s.f.ReadAt(buf[:], int64(offset)); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (s *File) WriteByte(offset int, value byte) error {
	_, err := s.f.WriteAt([]byte{value}, int64(offset))
	return err
}

func (s *File) Size() int {
	return s.size
}

func (s *File) Close() error {
	return s.f.Close()
}

// Mem is the in-memory store used by tests.  It counts writes so the
// read-before-write economy is observable.
type Mem struct {
	Data   []byte
	Writes int
}

func NewMem(size int) *Mem {
	return &Mem{Data: make([]byte, size)}
}

var _ Store = (*Mem)(nil)

func (m *Mem) ReadByte(offset int) (byte, error) {
	if offset < 0 || offset >= len(m.Data) {
		return 0, fmt.Errorf("mem read out of range: %d", offset)
	}
	return m.Data[offset], nil
}

func (m *Mem) WriteByte(offset int, value byte) error {
	if offset < 0 || offset >= len(m.Data) {
		return fmt.Errorf("mem write out of range: %d", offset)
	}
	m.Data[offset] = value
	m.Writes++
	return nil
}

func (m *Mem) Size() int {
	return len(m.Data)
}
