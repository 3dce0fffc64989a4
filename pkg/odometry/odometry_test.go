package odometry

import (
	"sync"
	"testing"
)

func TestCountsAndDistance(t *testing.T) {
	o := New(6, 1.26)
	for i := 0; i < 12; i++ {
		o.CountLeftPulse()
	}
	for i := 0; i < 6; i++ {
		o.CountRightPulse()
	}
	if l, r := o.Counts(); l != 12 || r != 6 {
		t.Fatalf("Counts = %v, %v, want 12, 6", l, r)
	}
	// 12 pulses at 6 per rev is two wheel turns.
	if d := o.DistanceLeftM(); d != 2.52 {
		t.Errorf("DistanceLeftM = %v, want 2.52", d)
	}
	if d := o.DistanceRightM(); d != 1.26 {
		t.Errorf("DistanceRightM = %v, want 1.26", d)
	}
	o.Reset()
	if l, r := o.Counts(); l != 0 || r != 0 {
		t.Errorf("Counts after Reset = %v, %v, want 0, 0", l, r)
	}
}

func TestConcurrentPulses(t *testing.T) {
	o := New(6, 1.26)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				o.CountLeftPulse()
				o.CountRightPulse()
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Hammer the consistent read path while the writers run.
		for i := 0; i < 1000; i++ {
			o.Counts()
		}
	}()
	wg.Wait()
	<-done
	if l, r := o.Counts(); l != 4000 || r != 4000 {
		t.Fatalf("Counts = %v, %v, want 4000, 4000", l, r)
	}
}
