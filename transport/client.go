package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/sockid"
)

// ErrShutdown marks a connect failure as caused by an explicit, intentional
// shutdown rather than network loss. Callers that close a connection on
// purpose (e.g. a user-issued DC) should pass this to Dial's caller so the
// reconnect loop does not retry a shutdown it asked for.
var ErrShutdown = errors.New("transport: explicit shutdown, not retrying")

// Dial opens a TCP connection to addr with a bounded connect timeout,
// retrying up to ConnectRetries additional times with ConnectRetryGap
// between attempts. Retries happen only when the previous attempt's error
// is not ErrShutdown; ctx cancellation also aborts retrying immediately.
func Dial(ctx context.Context, addr string) (*net.TCPConn, error) {
	var lastErr error
	dialer := net.Dialer{Timeout: ConnectTimeout}
	for attempt := 0; attempt <= ConnectRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(ConnectRetryGap)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.(*net.TCPConn), nil
		}
		if errors.Is(err, ErrShutdown) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("transport: could not connect to %s after %d attempts: %w", addr, ConnectRetries+1, lastErr)
}

// ClientAuthenticate runs the client half of the four-stage handshake
// described in server.go's AuthenticateData. dataAddr and cmdAddr are the
// server's data-port and command-port listen addresses. promptName is
// called once per stage-2 attempt with the currently reserved names (as
// decoded by registry.DecodeNameSnapshot) and must return the candidate
// username the user typed; ClientAuthenticate uppercases it before
// sending.
//
// On success it returns the Session (with a nil User, since the client has
// no Registry) plus the two live connections; the caller owns closing them.
func ClientAuthenticate(ctx context.Context, dataAddr, cmdAddr string, promptName func(taken []string) string) (*Session, *net.TCPConn, *net.TCPConn, error) {
	dataConn, err := Dial(ctx, dataAddr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transport: dial data port: %w", err)
	}
	r := framing.NewReader(dataConn)

	// Stage 1 -- welcome.
	if _, _, err := r.RecvFrame(); err != nil {
		dataConn.Close()
		return nil, nil, nil, fmt.Errorf("transport: stage 1 welcome recv: %w", err)
	}
	if err := framing.SendFrame(dataConn, []byte(tokenPass), framing.Attr{}); err != nil {
		dataConn.Close()
		return nil, nil, nil, fmt.Errorf("transport: stage 1 ack send: %w", err)
	}

	// Stage 2 -- username loop.
	var name string
	for {
		snapshot, _, err := r.RecvFrame()
		if err != nil {
			dataConn.Close()
			return nil, nil, nil, fmt.Errorf("transport: stage 2 snapshot recv: %w", err)
		}
		taken := decodeNames(snapshot)
		name = strings.ToUpper(promptName(taken))
		if err := framing.SendFrame(dataConn, []byte(name), framing.Attr{}); err != nil {
			dataConn.Close()
			return nil, nil, nil, fmt.Errorf("transport: stage 2 candidate send: %w", err)
		}
		reply, _, err := r.RecvFrame()
		if err != nil {
			dataConn.Close()
			return nil, nil, nil, fmt.Errorf("transport: stage 2 reply recv: %w", err)
		}
		if string(reply) == tokenPass {
			break
		}
	}

	// Stage 3 -- bind command socket.
	cmdConn, err := Dial(ctx, cmdAddr)
	if err != nil {
		dataConn.Close()
		return nil, nil, nil, fmt.Errorf("transport: dial command port: %w", err)
	}
	cr := framing.NewReader(cmdConn)
	if err := framing.SendFrame(cmdConn, []byte(name), framing.Attr{}); err != nil {
		dataConn.Close()
		cmdConn.Close()
		return nil, nil, nil, fmt.Errorf("transport: stage 3 name send: %w", err)
	}
	if err := expectToken(cr, tokenPass); err != nil {
		dataConn.Close()
		cmdConn.Close()
		return nil, nil, nil, fmt.Errorf("transport: stage 3 cmd ack: %w", err)
	}
	if err := framing.SendFrame(dataConn, []byte(tokenPass), framing.Attr{}); err != nil {
		dataConn.Close()
		cmdConn.Close()
		return nil, nil, nil, fmt.Errorf("transport: stage 3 data ack send: %w", err)
	}

	// Stage 4 -- status.
	if _, _, err := r.RecvFrame(); err != nil {
		dataConn.Close()
		cmdConn.Close()
		return nil, nil, nil, fmt.Errorf("transport: stage 4 status recv: %w", err)
	}
	if err := framing.SendFrame(dataConn, []byte(tokenPass), framing.Attr{}); err != nil {
		dataConn.Close()
		cmdConn.Close()
		return nil, nil, nil, fmt.Errorf("transport: stage 4 ack send: %w", err)
	}

	sessionID, err := sockid.New(dataConn)
	if err != nil {
		sessionID = ""
	}
	return &Session{Name: name, SessionID: sessionID}, dataConn, cmdConn, nil
}

func decodeNames(snapshot []byte) []string {
	if len(snapshot) == 0 {
		return nil
	}
	return strings.Split(string(snapshot), "\n")
}
