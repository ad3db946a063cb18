package dispatch_test

import (
	"testing"

	"github.com/go-test/deep"

	"github.com/jray8/simple-server-go/dispatch"
)

func TestParseArgs(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"a b c", []string{"a", "b", "c"}},
		{`send JEFF "C:/my docs/a.txt"`, []string{"send", "JEFF", `"C:/my docs/a.txt"`}},
		{`send JEFF "a" "b" c`, []string{"send", "JEFF", `"a"`, `"b"`, "c"}},
		{`tell JEFF "hi there`, []string{"tell", "JEFF", `"hi there`}},
	}
	for _, c := range cases {
		got := dispatch.ParseArgs(c.line)
		if diff := deep.Equal(got, c.want); diff != nil {
			t.Errorf("ParseArgs(%q) diff: %v", c.line, diff)
		}
	}
}

func TestStripQuotes(t *testing.T) {
	cases := []struct{ in, want string }{
		{`"hello"`, "hello"},
		{"hello", "hello"},
		{`"unterminated`, `"unterminated`},
		{`""`, ""},
	}
	for _, c := range cases {
		if got := dispatch.StripQuotes(c.in); got != c.want {
			t.Errorf("StripQuotes(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
