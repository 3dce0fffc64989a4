package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/derbyworks/derbycar/pkg/datalog"
	"github.com/derbyworks/derbycar/pkg/nvram"
	"github.com/derbyworks/derbycar/pkg/telemetry"
)

func newTestConsole() (*Console, *datalog.Log, *nvram.Mem, *bytes.Buffer) {
	log := datalog.New(8, false)
	store := nvram.NewMem(256)
	out := &bytes.Buffer{}
	source := func() telemetry.Snapshot {
		return telemetry.Snapshot{Potentiometer: 500, LeftHallCount: 3, RightHallCount: 2}
	}
	return New(log, store, source, out), log, store, out
}

func run(c *Console, commands string) {
	c.Run(context.Background(), strings.NewReader(commands))
}

func TestWriteRestoreCommands(t *testing.T) {
	c, log, store, _ := newTestConsole()
	log.Append(datalog.Entry{TimestampMs: 100, Pot: 510})

	run(c, "w\n")
	if !bytes.Equal(store.Data[0:4], datalog.Magic[:]) {
		t.Fatal("w did not write a valid record")
	}

	run(c, "c\n")
	if log.Index() != 0 {
		t.Fatal("c did not clear the log")
	}

	run(c, "r\n")
	if log.Index() != 1 || log.Entry(0).Pot != 510 {
		t.Error("r did not restore the flushed entry")
	}
}

func TestEraseCommand(t *testing.T) {
	c, log, store, _ := newTestConsole()
	log.Append(datalog.Entry{TimestampMs: 100})
	run(c, "w\ne\n")
	if bytes.Equal(store.Data[0:4], datalog.Magic[:]) {
		t.Error("e left a valid magic in storage")
	}
}

func TestTelemetryCommand(t *testing.T) {
	c, _, _, out := newTestConsole()
	run(c, "t\n")
	if !strings.HasPrefix(out.String(), telemetry.Header+"\n") {
		t.Errorf("t output does not start with the frame header: %q", out.String())
	}
}

func TestDisplayAndHelp(t *testing.T) {
	c, _, _, out := newTestConsole()
	run(c, "d\n?\nz\n")
	got := out.String()
	for _, want := range []string{"potentiometer: 500", "hall counts: left=3 right=2", "this help", "unknown command"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
