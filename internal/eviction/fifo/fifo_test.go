package fifo

import (
	"testing"
	"time"
)

func TestFIFO_IgnoresAccess(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	f := New()
	f.OnAdd("a", 1, base)
	f.OnAdd("b", 1, base.Add(time.Second))
	f.OnAccess("a", base.Add(2*time.Second))

	v, ok := f.Victim()
	if !ok || v.Name != "a" {
		t.Errorf("expected a to be evicted first, got %+v", v)
	}
}
