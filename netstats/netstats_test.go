package netstats_test

import (
	"runtime"
	"testing"

	"github.com/jray8/simple-server-go/netstats"
)

// TestCollect is necessarily best-effort: NETSTATS reports on whatever
// sockets the kernel happens to be holding at the moment, which a hermetic
// test environment doesn't control. It only asserts that Collect behaves
// per its documented contract on each platform.
func TestCollect(t *testing.T) {
	entries, err := netstats.Collect()
	if runtime.GOOS != "linux" {
		if err != netstats.ErrUnsupported {
			t.Fatalf("Collect() on %s: err = %v, want ErrUnsupported", runtime.GOOS, err)
		}
		if entries != nil {
			t.Fatalf("Collect() on %s: entries = %v, want nil", runtime.GOOS, entries)
		}
		return
	}
	if err != nil {
		t.Logf("Collect() returned an error in this sandbox (likely missing netlink permissions): %v", err)
	}
}
