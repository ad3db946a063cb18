package framing

import (
	"io"
)

// FileHeaderSize is the width, in bytes, of the single-shot file-frame
// header used when streaming file payloads over the command socket.
const FileHeaderSize = 10

// FileBufferSize is the chunk size used to copy file payload bytes.
const FileBufferSize = 1024

// ErrSenderFailed is returned by RecvFile when the sender's header carries
// the literal value 0, which signals an unrecoverable sender-side error.
// The receiver must not attempt to read a payload in that case.
var ErrSenderFailed = ErrConnectionLost

// SendFileHeader writes the FileHeaderSize-byte ASCII-decimal length header
// for an upcoming file payload of the given length. Passing length == 0
// sends the sender-failure sentinel header.
func SendFileHeader(w io.Writer, length int64) error {
	s := itoa64(length)
	if len(s) > FileHeaderSize {
		return ErrFrameTooLarge
	}
	header := s + spaces(FileHeaderSize-len(s))
	_, err := w.Write([]byte(header))
	return err
}

// SendFile writes a file header for length bytes, then copies exactly
// length bytes from r to w using FileBufferSize chunks.
func SendFile(w io.Writer, r io.Reader, length int64) error {
	if err := SendFileHeader(w, length); err != nil {
		return err
	}
	buf := make([]byte, FileBufferSize)
	_, err := io.CopyBuffer(w, io.LimitReader(r, length), buf)
	return err
}

// RecvFileHeader reads and parses the FileHeaderSize-byte file-frame header,
// returning the declared payload length. A header of exactly "0" (the
// sender-failure sentinel) yields ErrSenderFailed and must not be followed
// by an attempt to read payload bytes.
func RecvFileHeader(r *Reader) (int64, error) {
	header, err := r.fill(FileHeaderSize)
	if err != nil {
		return 0, err
	}
	end := len(header)
	for i, b := range header {
		if b == ' ' {
			end = i
			break
		}
		if b < '0' || b > '9' {
			return 0, ErrCorruptHeader
		}
	}
	for _, b := range header[end:] {
		if b != ' ' {
			return 0, ErrCorruptHeader
		}
	}
	if end == 0 {
		return 0, ErrCorruptHeader
	}
	var n int64
	for _, b := range header[:end] {
		n = n*10 + int64(b-'0')
	}
	if n == 0 {
		return 0, ErrSenderFailed
	}
	return n, nil
}

// RecvFile reads a file-frame header from r and copies exactly that many
// bytes to w, reporting progress through progress (called after each chunk
// with cumulative bytes copied and the total). progress may be nil.
func RecvFile(r *Reader, w io.Writer, progress func(done, total int64)) (int64, error) {
	total, err := RecvFileHeader(r)
	if err != nil {
		return 0, err
	}
	var done int64
	buf := make([]byte, FileBufferSize)
	for done < total {
		chunk := int64(len(buf))
		if remaining := total - done; remaining < chunk {
			chunk = remaining
		}
		data, err := r.fill(int(chunk))
		if err != nil {
			return done, err
		}
		n, err := w.Write(data)
		done += int64(n)
		if err != nil {
			return done, err
		}
		if progress != nil {
			progress(done, total)
		}
	}
	return done, nil
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
