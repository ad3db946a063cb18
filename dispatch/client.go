package dispatch

import (
	"net"
	"strings"
	"time"

	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/term"
)

// ClientSendHandler is implemented by the transfer package's client side;
// injected the same way ServerDispatcher.HandleSend is, to avoid a
// dependency cycle.
type ClientSendHandler func(d *ClientDispatcher, args []string) error

type frameMsg struct {
	payload []byte
	attr    framing.Attr
	err     error
}

// ClientDispatcher runs the client-side half of the command protocol: it
// both sends commands a local user types and reacts to passive commands
// the server pushes unsolicited (BECOME_ADMIN, GET_DEMOTED, GET_KICKED,
// RECEIVE).
type ClientDispatcher struct {
	CmdConn  *net.TCPConn
	DataConn *net.TCPConn
	Name     string

	Collab     term.Collaborator
	HandleSend ClientSendHandler

	admin         bool
	autoReconnect bool
	replies       chan frameMsg
	stopped       chan struct{}
}

// NewClientDispatcher wires a dispatcher around an already-authenticated
// session's two connections.
func NewClientDispatcher(cmdConn, dataConn *net.TCPConn, name string, collab term.Collaborator) *ClientDispatcher {
	return &ClientDispatcher{
		CmdConn:       cmdConn,
		DataConn:      dataConn,
		Name:          name,
		Collab:        collab,
		autoReconnect: true,
		replies:       make(chan frameMsg),
		stopped:       make(chan struct{}),
	}
}

// Admin reports whether the server has granted this session admin rights.
func (d *ClientDispatcher) Admin() bool { return d.admin }

// AutoReconnect reports whether a dropped connection should trigger a
// reconnect attempt; GET_KICKED and a locally issued DC clear this
// permanently for the session.
func (d *ClientDispatcher) AutoReconnect() bool { return d.autoReconnect }

// Run starts the background frame reader. It returns once the command
// socket is no longer readable; callers should treat that as session loss.
func (d *ClientDispatcher) Run() error {
	r := framing.NewReader(d.CmdConn)
	for {
		payload, attr, err := r.RecvFrame()
		if err != nil {
			close(d.stopped)
			return err
		}
		args := ParseArgs(string(payload))
		if len(args) == 0 {
			continue
		}
		name := strings.ToUpper(args[0])
		cmd, known := Lookup(name)
		if known && cmd.Passive {
			d.handlePassive(name, args)
			continue
		}
		select {
		case d.replies <- frameMsg{payload: payload, attr: attr}:
		case <-d.stopped:
			return nil
		}
	}
}

func (d *ClientDispatcher) handlePassive(name string, args []string) {
	switch name {
	case "BECOME_ADMIN":
		d.admin = true
		d.Collab.Add("You have been granted admin rights.", 0, 2)
	case "GET_DEMOTED":
		d.admin = false
		d.Collab.Add("Your admin rights have been revoked.", 0, 4)
	case "GET_KICKED":
		reason := "no reason given"
		if len(args) > 1 {
			reason = strings.Join(args[1:], " ")
		}
		d.autoReconnect = false
		d.Collab.Add("You have been disconnected by an admin: "+reason, 0, 3)
		d.DataConn.Close()
		d.CmdConn.Close()
	case "RECEIVE":
		if d.HandleSend != nil {
			// The transfer package's client side expects the RECEIVE
			// choreography entry point, not HandleSend's SEND entry point;
			// it checks args[0] to tell them apart.
			d.HandleSend(d, args)
		}
	}
}

// recvReply blocks for the next non-passive frame, or returns an error if
// the connection has failed meanwhile.
func (d *ClientDispatcher) recvReply(timeout time.Duration) (string, framing.Attr, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-d.replies:
		return string(m.payload), m.attr, m.err
	case <-d.stopped:
		return "", framing.Attr{}, framing.ErrConnectionLost
	case <-timer.C:
		return "", framing.Attr{}, nil
	}
}

// Issue sends a locally-typed command line to the server and displays its
// reply. Internal commands (HELP, CLS) are handled without contacting the
// server.
func (d *ClientDispatcher) Issue(line string) error {
	args := ParseArgs(line)
	if len(args) == 0 {
		return nil
	}
	name := strings.ToUpper(args[0])
	cmd, ok := Lookup(name)
	if !ok {
		d.Collab.Add("Unknown command: "+name, 0, 3)
		return nil
	}
	if cmd.Passive {
		d.Collab.Add(name+" cannot be typed directly.", 0, 3)
		return nil
	}
	if cmd.Restricted && !d.admin {
		d.Collab.Add("You are not authorized to use "+name, 0, 3)
		return nil
	}
	if cmd.Internal {
		return d.handleInternal(name)
	}
	if name == "DC" {
		d.autoReconnect = false
	}

	if err := framing.SendFrame(d.CmdConn, []byte(line), framing.Attr{}); err != nil {
		return err
	}
	ack, _, err := d.recvReply(10 * time.Second)
	if err != nil {
		return err
	}
	if ack != "PASS" {
		d.Collab.Add("Server rejected "+name+": "+ack, 0, 3)
		return nil
	}

	if name == "SEND" {
		if d.HandleSend != nil {
			return d.HandleSend(d, args)
		}
		return nil
	}

	reply, attr, err := d.recvReply(30 * time.Second)
	if err != nil {
		return err
	}
	d.Collab.Add(reply, attr.Property, attr.Color)
	return nil
}

func (d *ClientDispatcher) handleInternal(name string) error {
	switch name {
	case "HELP":
		for _, c := range Catalogue {
			if c.Internal || c.Passive || c.Usage == "" {
				continue
			}
			d.Collab.Add(c.Usage+" -- "+c.Description, 0, 0)
		}
	case "CLS":
		d.Collab.Clear()
	}
	return nil
}
