package tunable

import (
	"fmt"
	"sync/atomic"
)

// Tunable is a named integer that can be nudged from the D-pad while
// the car is live.  Get is safe from any goroutine; the control loop
// reads tunables every cycle while the joystick handler edits them.
type Tunable struct {
	Name  string
	value int64
}

func (t *Tunable) Add(delta int) {
	newV := atomic.AddInt64(&t.value, int64(delta))
	fmt.Println("Tunable", t.Name, "=", newV)
}

func (t *Tunable) Get() int {
	return int(atomic.LoadInt64(&t.value))
}

// Tunables is an ordered registry with a selection cursor for the
// D-pad editor.
type Tunables struct {
	All      []*Tunable
	selected int
}

func (t *Tunables) Create(name string, value int) *Tunable {
	nt := &Tunable{
		Name:  name,
		value: int64(value),
	}
	t.All = append(t.All, nt)
	return nt
}

func (t *Tunables) SelectNext() {
	t.selected++
	if t.selected >= len(t.All) {
		t.selected = 0
	}
	t.announce()
}

func (t *Tunables) SelectPrev() {
	t.selected--
	if t.selected < 0 {
		t.selected = len(t.All) - 1
	}
	t.announce()
}

func (t *Tunables) Current() *Tunable {
	return t.All[t.selected]
}

func (t *Tunables) announce() {
	fmt.Println("Tunable", t.Current().Name, "selected, value:", t.Current().Get())
}
