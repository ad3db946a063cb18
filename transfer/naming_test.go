package transfer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jray8/simple-server-go/transfer"
)

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()

	first := transfer.UniquePath(dir, "a.txt")
	if first != filepath.Join(dir, "a.txt") {
		t.Fatalf("first UniquePath = %q, want a.txt", first)
	}
	if err := os.WriteFile(first, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	second := transfer.UniquePath(dir, "a.txt")
	want := filepath.Join(dir, "a (2).txt")
	if second != want {
		t.Fatalf("second UniquePath = %q, want %q", second, want)
	}
	if err := os.WriteFile(second, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	third := transfer.UniquePath(dir, "a.txt")
	want = filepath.Join(dir, "a (3).txt")
	if third != want {
		t.Fatalf("third UniquePath = %q, want %q", third, want)
	}
}
