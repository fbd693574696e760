package docstore

import (
	"testing"
	"time"
)

func TestClockNext(t *testing.T) {
	fixed := time.Unix(100, 0)
	c := &clock{now: func() time.Time { return fixed }}
	first := c.Next()
	second := c.Next()
	if second <= first {
		t.Fatalf("Next failed: %d is not after %d", second, first)
	}
	fixed = fixed.Add(-time.Hour)
	if third := c.Next(); third <= second {
		t.Fatalf("Next failed: clock went back to %d", third)
	}
	if got := toUnixNano(fromUnixNano(first)); got != first {
		t.Fatalf("round trip failed: got %d want %d", got, first)
	}
	if !fromUnixNano(0).IsZero() {
		t.Fatalf("fromUnixNano(0) should be zero")
	}
}
