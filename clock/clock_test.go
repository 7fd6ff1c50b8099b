package clock

import (
	"testing"
	"time"
)

func TestRandomElectionTimeout_StaysWithinBounds(t *testing.T) {
	min, max := 150*time.Millisecond, 300*time.Millisecond
	for i := 0; i < 1000; i++ {
		d := RandomElectionTimeout(min, max)
		if d < min || d >= max {
			t.Fatalf("timeout %s out of bounds [%s, %s)", d, min, max)
		}
	}
}
