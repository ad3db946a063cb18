package framing

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/go-test/deep"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		attr    Attr
	}{
		{"empty", "", Attr{PropNormal, ColorStandard}},
		{"short", "hello", Attr{PropDynamic, ColorSuccess}},
		{"roster", "There are currently [1/10] users online:\nALICE\n", Attr{PropDynamic, ColorStandard}},
		{"max-property-color", "x", Attr{99, 99}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode([]byte(tt.payload), tt.attr)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			r := NewReader(bytes.NewReader(frame))
			payload, attr, err := r.RecvFrame()
			if err != nil {
				t.Fatalf("RecvFrame: %v", err)
			}
			if diff := deep.Equal(string(payload), tt.payload); diff != nil {
				t.Errorf("payload mismatch: %v", diff)
			}
			if diff := deep.Equal(attr, tt.attr); diff != nil {
				t.Errorf("attr mismatch: %v", diff)
			}
		})
	}
}

func TestFrameTooLarge(t *testing.T) {
	huge := make([]byte, 1e6) // header only has HeaderSize-4 = 4 digits of length
	_, err := Encode(huge, Attr{})
	if err != ErrFrameTooLarge {
		t.Fatalf("got %v, want ErrFrameTooLarge", err)
	}
}

// TestTwoFramesSurviveAnySplit fuzzes TCP packet boundaries: the
// concatenation of two encoded frames must decode back into the same two
// (payload, attr) pairs no matter where the byte stream is split across
// Read calls.
func TestTwoFramesSurviveAnySplit(t *testing.T) {
	f1, err := Encode([]byte("[ALICE]: hello"), Attr{PropDynamic, ColorStandard})
	if err != nil {
		t.Fatal(err)
	}
	f2, err := Encode([]byte("[BOB]: hi there"), Attr{PropDynamic, ColorDim})
	if err != nil {
		t.Fatal(err)
	}
	whole := append(append([]byte{}, f1...), f2...)

	for split := 0; split <= len(whole); split++ {
		conn := &splitReader{chunks: [][]byte{whole[:split], whole[split:]}}
		r := NewReader(conn)
		p1, a1, err := r.RecvFrame()
		if err != nil {
			t.Fatalf("split=%d: first RecvFrame: %v", split, err)
		}
		p2, a2, err := r.RecvFrame()
		if err != nil {
			t.Fatalf("split=%d: second RecvFrame: %v", split, err)
		}
		if string(p1) != "[ALICE]: hello" || a1 != (Attr{PropDynamic, ColorStandard}) {
			t.Fatalf("split=%d: first frame mismatch: %q %+v", split, p1, a1)
		}
		if string(p2) != "[BOB]: hi there" || a2 != (Attr{PropDynamic, ColorDim}) {
			t.Fatalf("split=%d: second frame mismatch: %q %+v", split, p2, a2)
		}
	}
}

// splitReader serves up each chunk on successive Read calls, simulating
// arbitrary TCP segmentation.
type splitReader struct {
	chunks [][]byte
}

func (s *splitReader) Read(p []byte) (int, error) {
	for len(s.chunks) > 0 && len(s.chunks[0]) == 0 {
		s.chunks = s.chunks[1:]
	}
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.chunks[0])
	s.chunks[0] = s.chunks[0][n:]
	return n, nil
}

func TestRecvFrameTruncatedHeader(t *testing.T) {
	r := NewReader(strings.NewReader("0201"))
	_, _, err := r.RecvFrame()
	if err != ErrConnectionLost {
		t.Fatalf("got %v, want ErrConnectionLost", err)
	}
}

func TestRecvFrameTruncatedPayload(t *testing.T) {
	frame, err := Encode([]byte("hello world"), Attr{})
	if err != nil {
		t.Fatal(err)
	}
	truncated := frame[:len(frame)-3]
	r := NewReader(bytes.NewReader(truncated))
	_, _, err = r.RecvFrame()
	if err != ErrConnectionLost {
		t.Fatalf("got %v, want ErrConnectionLost", err)
	}
}

func TestRecvFrameCorruptHeader(t *testing.T) {
	tests := []string{
		"0A00    ", // non-digit in property field
		"00AA    ", // non-digit in color field
		"00001A  ", // non-digit after digits in length field
		"0000 1  ", // digit after a space in length field
	}
	for _, header := range tests {
		r := NewReader(strings.NewReader(header))
		_, _, err := r.RecvFrame()
		if err != ErrCorruptHeader {
			t.Errorf("header %q: got %v, want ErrCorruptHeader", header, err)
		}
	}
}

func TestRecvLoop(t *testing.T) {
	f1, _ := Encode([]byte("one"), Attr{})
	f2, _ := Encode([]byte("two"), Attr{})
	r := NewReader(bytes.NewReader(append(append([]byte{}, f1...), f2...)))

	var got []string
	err := RecvLoop(r, func(payload []byte, attr Attr) {
		got = append(got, string(payload))
	})
	if err != ErrConnectionLost {
		t.Fatalf("got %v, want ErrConnectionLost at end of stream", err)
	}
	if diff := deep.Equal(got, []string{"one", "two"}); diff != nil {
		t.Errorf("%v", diff)
	}
}

func TestSendFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := SendFrame(&buf, []byte("payload"), Attr{PropNormal, ColorAlert}); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	payload, attr, err := r.RecvFrame()
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "payload" || attr != (Attr{PropNormal, ColorAlert}) {
		t.Fatalf("got %q %+v", payload, attr)
	}
}
