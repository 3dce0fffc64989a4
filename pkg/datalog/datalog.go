package datalog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/derbyworks/derbycar/pkg/nvram"
)

// Magic marks a valid header in storage.  Kept as an explicit byte array
// so the on-wire layout doesn't depend on integer endianness.
var Magic = [4]byte{'S', 'B', 'D', 'C'}

const (
	headerBytes = 16 // magic[4] + incarnation[4] + index[4] + overflowed[1] + pad
	entryBytes  = 16 // timestamp[4] + leftMM[4] + rightMM[4] + pot[4]
)

// Entry is one telemetry sample: distances in whole millimetres so the
// stored layout is integer end to end.
type Entry struct {
	TimestampMs uint32
	LeftDistMM  int32
	RightDistMM int32
	Pot         int32
}

type Target int

const (
	Volatile Target = iota
	NonVolatile
)

// Log is a fixed-capacity ring of entries held in RAM during a run and
// flushed to byte-addressable storage on request.
type Log struct {
	entries []Entry
	index   int

	// wrapped goes true when the cursor advances from capacity-1 back to
	// 0; overflowed surfaces on the next append and then latches until an
	// explicit clear.
	wrapped    bool
	overflowed bool
	overwrite  bool

	incarnation uint32
}

func New(capacity int, overwriteOnOverflow bool) *Log {
	return &Log{
		entries:   make([]Entry, capacity),
		overwrite: overwriteOnOverflow,
	}
}

// Append stores an entry at the cursor.  Once the ring has overflowed and
// overwriting is disabled the append is a silent no-op.  Returns whether
// the entry was stored.
func (l *Log) Append(e Entry) bool {
	if l.wrapped && !l.overflowed {
		l.overflowed = true
	}
	if l.overflowed && !l.overwrite {
		return false
	}
	l.entries[l.index] = e
	l.index++
	if l.index == len(l.entries) {
		l.index = 0
		l.wrapped = true
	}
	return true
}

func (l *Log) Capacity() int {
	return len(l.entries)
}

func (l *Log) Index() int {
	return l.index
}

func (l *Log) Overflowed() bool {
	return l.overflowed
}

// Incarnation is the boot counter restored from storage, bumped once per
// boot that finds a valid prior record.
func (l *Log) Incarnation() uint32 {
	return l.incarnation
}

func (l *Log) Entry(i int) Entry {
	return l.entries[i]
}

// Clear zeroes the in-memory ring or erases the storage region.
func (l *Log) Clear(target Target, store nvram.Store) error {
	switch target {
	case Volatile:
		for i := range l.entries {
			l.entries[i] = Entry{}
		}
		l.index = 0
		l.wrapped = false
		l.overflowed = false
		return nil
	case NonVolatile:
		if store == nil {
			return fmt.Errorf("no store to clear")
		}
		for off := 0; off < l.regionSize(); off++ {
			if err := economyWrite(store, off, 0); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown clear target %d", target)
}

func (l *Log) regionSize() int {
	return headerBytes + len(l.entries)*entryBytes
}

func (l *Log) headerBytes() []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], l.incarnation)
	buf.Write(u32[:])
	binary.BigEndian.PutUint32(u32[:], uint32(l.index))
	buf.Write(u32[:])
	if l.overflowed {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	for buf.Len() < headerBytes {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func entryToBytes(e Entry) []byte {
	var buf [entryBytes]byte
	binary.BigEndian.PutUint32(buf[0:4], e.TimestampMs)
	binary.BigEndian.PutUint32(buf[4:8], uint32(e.LeftDistMM))
	binary.BigEndian.PutUint32(buf[8:12], uint32(e.RightDistMM))
	binary.BigEndian.PutUint32(buf[12:16], uint32(e.Pot))
	return buf[:]
}

func entryFromBytes(buf []byte) Entry {
	return Entry{
		TimestampMs: binary.BigEndian.Uint32(buf[0:4]),
		LeftDistMM:  int32(binary.BigEndian.Uint32(buf[4:8])),
		RightDistMM: int32(binary.BigEndian.Uint32(buf[8:12])),
		Pot:         int32(binary.BigEndian.Uint32(buf[12:16])),
	}
}

// economyWrite reads before writing and skips bytes that already hold the
// value, to bound wear on parts with a limited write-cycle lifetime.
func economyWrite(store nvram.Store, offset int, value byte) error {
	cur, err := store.ReadByte(offset)
	if err != nil {
		return err
	}
	if cur == value {
		return nil
	}
	return store.WriteByte(offset, value)
}

// Flush serializes the header record and every entry to storage.
func (l *Log) Flush(store nvram.Store) error {
	if l.regionSize() > store.Size() {
		return fmt.Errorf("log (%d bytes) does not fit in store (%d bytes)", l.regionSize(), store.Size())
	}
	raw := l.headerBytes()
	for _, e := range l.entries {
		raw = append(raw, entryToBytes(e)...)
	}
	for off, b := range raw {
		if err := economyWrite(store, off, b); err != nil {
			return fmt.Errorf("flush failed at offset %d: %w", off, err)
		}
	}
	fmt.Printf("Flushed %d log bytes (incarnation %d, index %d)\n", len(raw), l.incarnation, l.index)
	return nil
}

// Restore loads the header and entries back from storage.  A bad magic
// means the region has never been written (or got scrambled); it is
// treated as freshly initialized, not as an error.  A valid record bumps
// the incarnation counter by one.  Returns whether a valid record was
// found.
func (l *Log) Restore(store nvram.Store) (bool, error) {
	raw := make([]byte, l.regionSize())
	if len(raw) > store.Size() {
		return false, fmt.Errorf("log (%d bytes) does not fit in store (%d bytes)", len(raw), store.Size())
	}
	for off := range raw {
		b, err := store.ReadByte(off)
		if err != nil {
			return false, fmt.Errorf("restore failed at offset %d: %w", off, err)
		}
		raw[off] = b
	}

	if !bytes.Equal(raw[0:4], Magic[:]) {
		fmt.Println("No valid log record in storage, starting fresh")
		l.incarnation = 0
		_ = l.Clear(Volatile, nil)
		return false, nil
	}

	l.incarnation = binary.BigEndian.Uint32(raw[4:8]) + 1
	l.index = int(binary.BigEndian.Uint32(raw[8:12])) % len(l.entries)
	l.overflowed = raw[12] != 0
	l.wrapped = l.overflowed
	for i := range l.entries {
		off := headerBytes + i*entryBytes
		l.entries[i] = entryFromBytes(raw[off : off+entryBytes])
	}
	fmt.Printf("Restored log: incarnation %d, index %d, overflowed %v\n", l.incarnation, l.index, l.overflowed)
	return true, nil
}

// Dump writes a human-readable listing of the ring.
func (l *Log) Dump(w io.Writer) {
	fmt.Fprintf(w, "log: incarnation=%d index=%d overflowed=%v capacity=%d\n",
		l.incarnation, l.index, l.overflowed, len(l.entries))
	for i, e := range l.entries {
		if e == (Entry{}) {
			continue
		}
		marker := " "
		if i == l.index {
			marker = ">"
		}
		fmt.Fprintf(w, "%s %3d: t=%6dms left=%6dmm right=%6dmm pot=%4d\n",
			marker, i, e.TimestampMs, e.LeftDistMM, e.RightDistMM, e.Pot)
	}
}
