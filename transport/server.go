package transport

import (
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/metrics"
	"github.com/jray8/simple-server-go/registry"
	"github.com/jray8/simple-server-go/sockid"
)

// AuthServer runs both halves of the authentication handshake against a
// shared Registry. One AuthServer should be shared between the data-port
// acceptor loop (which calls AuthenticateData) and the command-port
// acceptor loop (which calls BindCmdConn), since stage 3 requires the two
// to rendezvous by username.
type AuthServer struct {
	Registry *registry.Registry

	mu      sync.Mutex
	pending map[string]*pendingAuth // keyed by uppercased name
}

type pendingAuth struct {
	user     *registry.User
	cmdBound chan *net.TCPConn
}

// NewAuthServer returns an AuthServer backed by reg.
func NewAuthServer(reg *registry.Registry) *AuthServer {
	return &AuthServer{
		Registry: reg,
		pending:  make(map[string]*pendingAuth),
	}
}

// AuthenticateData runs stages 1, 2, and (the data-socket half of) 3-4 of
// the handshake against a just-accepted data connection. On success it
// returns a Session whose User is active in the Registry and whose CmdConn
// has already been bound. On any failure the partial registry record is
// released, both sockets this call knows about are closed, and an error
// describing the failing stage is returned.
func (s *AuthServer) AuthenticateData(conn *net.TCPConn) (*Session, error) {
	r := framing.NewReader(conn)
	var cmdConn *net.TCPConn
	authenticated := false
	defer func() {
		if !authenticated {
			conn.Close()
			if cmdConn != nil {
				cmdConn.Close()
			}
		}
	}()

	// Stage 1 -- welcome.
	if err := framing.SendFrame(conn, []byte("welcome"), framing.Attr{Property: framing.PropNormal, Color: framing.ColorSuccess}); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("transport: stage 1 welcome send: %w", err)
	}
	if err := expectToken(r, tokenPass); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("transport: stage 1 ack: %w", err)
	}

	// Stage 2 -- username loop.
	sessionID, err := sockid.New(conn)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("transport: minting session id: %w", err)
	}
	var user *registry.User
	var name string
	for {
		if err := framing.SendFrame(conn, s.Registry.EncodeNameSnapshot(), framing.Attr{Property: framing.PropNormal}); err != nil {
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			return nil, fmt.Errorf("transport: stage 2 snapshot send: %w", err)
		}
		candidate, _, err := r.RecvFrame()
		if err != nil {
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			return nil, fmt.Errorf("transport: stage 2 candidate recv: %w", err)
		}
		name = strings.ToUpper(string(candidate))
		if verr := registry.ValidateName(name); verr != nil {
			if sendErr := framing.SendFrame(conn, []byte(tokenFail), framing.Attr{}); sendErr != nil {
				return nil, fmt.Errorf("transport: stage 2 fail send: %w", sendErr)
			}
			continue
		}
		user = registry.NewUser(name, conn, sessionID)
		if rerr := s.Registry.Reserve(name, user); rerr != nil {
			if sendErr := framing.SendFrame(conn, []byte(tokenFail), framing.Attr{}); sendErr != nil {
				return nil, fmt.Errorf("transport: stage 2 fail send: %w", sendErr)
			}
			continue
		}
		if err := framing.SendFrame(conn, []byte(tokenPass), framing.Attr{}); err != nil {
			s.Registry.Release(name)
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			return nil, fmt.Errorf("transport: stage 2 pass send: %w", err)
		}
		break
	}

	// Stage 3 -- bind command socket. Register a rendezvous point for the
	// command-port acceptor to find, then wait for it.
	pa := &pendingAuth{user: user, cmdBound: make(chan *net.TCPConn, 1)}
	s.mu.Lock()
	s.pending[name] = pa
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, name)
		s.mu.Unlock()
	}()

	select {
	case cmdConn = <-pa.cmdBound:
	case <-time.After(CmdBindTimeout):
		s.Registry.Release(name)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("transport: stage 3 timed out waiting for command socket")
	}
	user.BindCmdConn(cmdConn)
	if err := expectToken(r, tokenPass); err != nil {
		s.Registry.Release(name)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("transport: stage 3 ack: %w", err)
	}

	// Stage 4 -- status.
	hint := fmt.Sprintf("%d user(s) online. Type HELP for a list of commands.", s.Registry.Count()+1)
	if err := framing.SendFrame(conn, []byte(hint), framing.Attr{Property: framing.PropNormal, Color: framing.ColorHighlight}); err != nil {
		s.Registry.Release(name)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("transport: stage 4 status send: %w", err)
	}
	if err := expectToken(r, tokenPass); err != nil {
		s.Registry.Release(name)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("transport: stage 4 ack: %w", err)
	}

	authenticated = true
	user.Activate()
	metrics.ActiveSessions.Inc()
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	s.Registry.Broadcast([]byte(name+" has joined the server!"), framing.Attr{Property: framing.PropNormal, Color: framing.ColorSuccess}, user)
	log.Printf("transport: %s authenticated (session %s)", name, sessionID)

	return &Session{User: user, Name: name, SessionID: sessionID}, nil
}

// BindCmdConn runs the command-port acceptor's half of stage 3: it reads
// the just-approved username as the first frame on conn, finds the
// matching in-progress handshake, hands conn off to it, and replies PASS.
// It should be called once per connection accepted on the command port.
func (s *AuthServer) BindCmdConn(conn *net.TCPConn) error {
	r := framing.NewReader(conn)
	payload, _, err := r.RecvFrame()
	if err != nil {
		return fmt.Errorf("transport: stage 3 name recv: %w", err)
	}
	name := strings.ToUpper(string(payload))

	s.mu.Lock()
	pa, ok := s.pending[name]
	s.mu.Unlock()
	if !ok {
		framing.SendFrame(conn, []byte(tokenFail), framing.Attr{})
		return fmt.Errorf("transport: stage 3 no pending handshake for %q", name)
	}

	select {
	case pa.cmdBound <- conn:
	default:
		return fmt.Errorf("transport: stage 3 command socket already bound for %q", name)
	}
	if err := framing.SendFrame(conn, []byte(tokenPass), framing.Attr{}); err != nil {
		return fmt.Errorf("transport: stage 3 ack send: %w", err)
	}
	return nil
}

func expectToken(r *framing.Reader, want string) error {
	payload, _, err := r.RecvFrame()
	if err != nil {
		return err
	}
	if string(payload) != want {
		return fmt.Errorf("expected %q, got %q", want, payload)
	}
	return nil
}
