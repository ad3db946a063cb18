package registry_test

import (
	"testing"

	"github.com/jray8/simple-server-go/registry"
)

func TestValidateName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"JEFF", true},
		{"A.B_C", true},
		{"jo3", true},
		{"A1", false}, // too short (2 chars)
		{"jo", false}, // too short
		{"thirteen_chars", false},
		{"has space", false},
		{"123", false}, // no letter
		{"a@b", false}, // illegal character
		{"", false},
		{"ABCDEFGHIJKL", true}, // exactly 12 chars
		{"ABCDEFGHIJKLM", false}, // too long (13 chars)
	}
	for _, c := range cases {
		err := registry.ValidateName(c.name)
		if (err == nil) != c.ok {
			t.Errorf("ValidateName(%q) err=%v, want ok=%v", c.name, err, c.ok)
		}
	}
}

func TestNameSnapshotRoundTrip(t *testing.T) {
	r := registry.New()
	alice := &registry.User{Name: "ALICE"}
	bob := &registry.User{Name: "BOBBY"}
	bob.SetHidden(true)

	for _, u := range []*registry.User{alice, bob} {
		if err := r.Reserve(u.Name, u); err != nil {
			t.Fatalf("Reserve(%s): %v", u.Name, err)
		}
	}

	snap := r.EncodeNameSnapshot()
	got := registry.DecodeNameSnapshot(snap)
	want := []string{"ALICE", "*****"}
	if len(got) != len(want) {
		t.Fatalf("DecodeNameSnapshot = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecodeEmptySnapshot(t *testing.T) {
	got := registry.DecodeNameSnapshot(nil)
	if len(got) != 0 {
		t.Fatalf("DecodeNameSnapshot(nil) = %v, want empty", got)
	}
}
