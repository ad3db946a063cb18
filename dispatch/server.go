package dispatch

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/metrics"
	"github.com/jray8/simple-server-go/netstats"
	"github.com/jray8/simple-server-go/poem"
	"github.com/jray8/simple-server-go/registry"
)

// SendHandler is implemented by the transfer package; it is injected here
// rather than imported directly to avoid a dependency cycle (transfer
// needs the registry and framing types dispatch already depends on, and
// pulling dispatch's command table into transfer for no reason is not
// worth the coupling).
type SendHandler func(caller *registry.User, args []string, reg *registry.Registry) error

// ServerDispatcher runs the server-side read loop for one user's command
// socket, modeled on the teacher's collector.Run: block for the next unit
// of work, dispatch it, and let any read error unwind the loop.
type ServerDispatcher struct {
	Registry      *registry.Registry
	HandleSend    SendHandler
	AdminKicked   func(user *registry.User, reason string)               // hook for cmd/server bookkeeping
	AdminElevated func(user *registry.User, reason string, elevate bool) // hook for cmd/server bookkeeping
}

// Run reads and dispatches commands from user's command socket until the
// connection fails. It returns the error that ended the loop (nil only if
// the caller-supplied context/shutdown path closed the socket cleanly,
// which in this protocol still surfaces as a read error -- there is no
// explicit cancellation token, per spec).
func (d *ServerDispatcher) Run(user *registry.User) error {
	r := framing.NewReader(user.CmdConn)
	for {
		payload, _, err := r.RecvFrame()
		if err != nil {
			return err
		}
		if fn := user.TakeTakeover(); fn != nil {
			if err := fn(payload, r); err != nil {
				return err
			}
			continue
		}
		args := ParseArgs(string(payload))
		if len(args) == 0 {
			continue
		}
		name := strings.ToUpper(args[0])
		cmd, ok := Lookup(name)
		if !ok || cmd.Internal || cmd.Passive {
			// Unknown, purely-local, or passive-only commands should never
			// arrive as a server-bound frame; treat as a no-op protocol
			// error local to this exchange rather than tearing down the
			// session.
			framing.SendFrame(user.CmdConn, []byte(tokenFail), framing.Attr{})
			continue
		}

		user.LockCommand()
		start := time.Now()
		outcome := "ok"
		if err := d.dispatchExternal(user, cmd, args); err != nil {
			outcome = "error"
			log.Printf("dispatch: %s %s: %v", user.Name, name, err)
		}
		metrics.CommandsTotal.WithLabelValues(name, outcome).Inc()
		metrics.CommandLatencyHistogram.WithLabelValues(name).Observe(time.Since(start).Seconds())
		user.UnlockCommand()
	}
}

const (
	tokenPass = "PASS"
	tokenFail = "FAIL"
)

func (d *ServerDispatcher) dispatchExternal(user *registry.User, cmd Command, args []string) error {
	if cmd.Restricted && !user.Admin() {
		return framing.SendFrame(user.CmdConn, []byte("FAIL not authorized"), framing.Attr{Color: framing.ColorAlert})
	}
	// Acknowledge receipt: the side that did not originate the command
	// sends PASS first, then proceeds with the per-command exchange. SEND
	// is the exception -- its first PASS/FAIL already carries the target
	// validation result, so it is left for the transfer handler to send.
	if cmd.Name != "SEND" {
		if err := framing.SendFrame(user.CmdConn, []byte(tokenPass), framing.Attr{}); err != nil {
			return err
		}
	}

	switch cmd.Name {
	case "DC":
		return d.handleDC(user)
	case "LIST":
		return d.handleList(user, args)
	case "FIND":
		return d.handleFind(user, args)
	case "TELL":
		return d.handleTell(user, args)
	case "CHECK":
		return d.handleCheck(user, args)
	case "VISIBILITY":
		return d.handleVisibility(user, args)
	case "ADMIN":
		return d.handleElevate(user, args, true)
	case "DEMOTE":
		return d.handleElevate(user, args, false)
	case "KICK":
		return d.handleKick(user, args)
	case "SEND":
		if d.HandleSend == nil {
			return framing.SendFrame(user.CmdConn, []byte("FAIL transfers not available"), framing.Attr{})
		}
		return d.HandleSend(user, args, d.Registry)
	case "QUOTE":
		return framing.SendFrame(user.CmdConn, []byte(poem.Random()), framing.Attr{Color: framing.ColorDim})
	case "NETSTATS":
		return d.handleNetstats(user)
	default:
		return framing.SendFrame(user.CmdConn, []byte(tokenFail), framing.Attr{})
	}
}

func (d *ServerDispatcher) handleDC(user *registry.User) error {
	d.Registry.Release(user.Name)
	d.Registry.Broadcast([]byte(user.Name+" has left the server."), framing.Attr{Color: framing.ColorDim}, nil)
	return user.CmdConn.Close()
}

func (d *ServerDispatcher) handleList(user *registry.User, args []string) error {
	showHidden := user.Admin()
	names := d.Registry.ListUsers(showHidden)
	msg := fmt.Sprintf("There are currently [%d/%d] users online:\n%s\n", len(names), registry.MaxUsers, strings.Join(names, ", "))
	if hidden := d.Registry.HiddenCount(); hidden > 0 && !showHidden {
		verb := "is"
		if hidden != 1 {
			verb = "are"
		}
		msg += fmt.Sprintf("\n(%d) %s hidden.", hidden, verb)
	}
	return framing.SendFrame(user.CmdConn, []byte(msg), framing.Attr{Property: framing.PropDynamic})
}

func (d *ServerDispatcher) handleFind(user *registry.User, args []string) error {
	if len(args) < 2 {
		return framing.SendFrame(user.CmdConn, []byte("FAIL usage: FIND <name>"), framing.Attr{})
	}
	target := d.Registry.FindUser(args[1])
	if target == nil {
		return framing.SendFrame(user.CmdConn, []byte("FAIL no such user"), framing.Attr{})
	}
	return framing.SendFrame(user.CmdConn, []byte(target.DataAddr.String()), framing.Attr{})
}

func (d *ServerDispatcher) handleTell(user *registry.User, args []string) error {
	if len(args) < 3 {
		return framing.SendFrame(user.CmdConn, []byte("FAIL usage: TELL <name> <message>"), framing.Attr{})
	}
	target := d.Registry.FindUser(args[1])
	if target == nil {
		return framing.SendFrame(user.CmdConn, []byte("FAIL no such user"), framing.Attr{})
	}
	msg := strings.Join(args[2:], " ")
	if err := framing.SendFrame(target.DataConn, []byte(fmt.Sprintf("[%s tells you] %s", user.Name, msg)), framing.Attr{Color: framing.ColorDim}); err != nil {
		return framing.SendFrame(user.CmdConn, []byte("FAIL delivery failed"), framing.Attr{})
	}
	return framing.SendFrame(user.CmdConn, []byte(tokenPass), framing.Attr{})
}

func (d *ServerDispatcher) handleCheck(user *registry.User, args []string) error {
	if len(args) < 2 {
		return framing.SendFrame(user.CmdConn, []byte("FAIL usage: CHECK <name>"), framing.Attr{})
	}
	target := d.Registry.FindUser(args[1])
	if target == nil {
		return framing.SendFrame(user.CmdConn, []byte("FAIL no such user"), framing.Attr{})
	}
	free := registry.PollActivity(target, registry.DefaultPollPeriod, 0)
	if free {
		return framing.SendFrame(user.CmdConn, []byte(target.Name+" is free"), framing.Attr{})
	}
	return framing.SendFrame(user.CmdConn, []byte(target.Name+" is busy"), framing.Attr{})
}

func (d *ServerDispatcher) handleVisibility(user *registry.User, args []string) error {
	if len(args) < 2 {
		return framing.SendFrame(user.CmdConn, []byte("FAIL usage: VISIBILITY <0|1>"), framing.Attr{})
	}
	on, err := strconv.Atoi(args[1])
	if err != nil || (on != 0 && on != 1) {
		return framing.SendFrame(user.CmdConn, []byte("FAIL usage: VISIBILITY <0|1>"), framing.Attr{})
	}
	wasHidden := user.Hidden()
	user.SetHidden(on == 1)
	if on == 1 && wasHidden {
		return framing.SendFrame(user.CmdConn, []byte(poem.Random()), framing.Attr{Color: framing.ColorDim})
	}
	return framing.SendFrame(user.CmdConn, []byte(tokenPass), framing.Attr{})
}

func (d *ServerDispatcher) handleElevate(user *registry.User, args []string, elevate bool) error {
	if len(args) < 2 {
		return framing.SendFrame(user.CmdConn, []byte("FAIL usage: "+args[0]+" <name>"), framing.Attr{})
	}
	target := d.Registry.FindUser(args[1])
	if target == nil {
		return framing.SendFrame(user.CmdConn, []byte("FAIL no such user"), framing.Attr{})
	}
	if !registry.PollActivity(target, registry.DefaultPollPeriod, 5*time.Second) {
		return framing.SendFrame(user.CmdConn, []byte("FAIL "+target.Name+" is busy"), framing.Attr{})
	}
	passive := "BECOME_ADMIN"
	if !elevate {
		passive = "GET_DEMOTED"
	}
	if err := framing.SendFrame(target.CmdConn, []byte(passive), framing.Attr{}); err != nil {
		return framing.SendFrame(user.CmdConn, []byte("FAIL delivery failed"), framing.Attr{})
	}
	target.SetAdmin(elevate)
	if d.AdminElevated != nil {
		d.AdminElevated(target, "by "+user.Name, elevate)
	}
	return framing.SendFrame(user.CmdConn, []byte(tokenPass), framing.Attr{})
}

func (d *ServerDispatcher) handleNetstats(user *registry.User) error {
	entries, err := netstats.Collect()
	if err != nil {
		return framing.SendFrame(user.CmdConn, []byte("FAIL "+err.Error()), framing.Attr{Color: framing.ColorAlert})
	}
	if len(entries) == 0 {
		return framing.SendFrame(user.CmdConn, []byte("no sockets reported"), framing.Attr{Color: framing.ColorDim})
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s -> %s [%s] rtt=%dus retransmits=%d\n", e.LocalAddr, e.RemoteAddr, e.State, e.RTT, e.Retransmits)
	}
	return framing.SendFrame(user.CmdConn, []byte(b.String()), framing.Attr{Color: framing.ColorDim})
}

func (d *ServerDispatcher) handleKick(user *registry.User, args []string) error {
	if len(args) < 2 {
		return framing.SendFrame(user.CmdConn, []byte("FAIL usage: KICK <name> [reason]"), framing.Attr{})
	}
	target := d.Registry.FindUser(args[1])
	if target == nil {
		return framing.SendFrame(user.CmdConn, []byte("FAIL no such user"), framing.Attr{})
	}
	reason := "no reason given"
	if len(args) > 2 {
		reason = strings.Join(args[2:], " ")
	}
	go func() {
		target.LockCommand() // blocks until target's current exchange ends
		defer target.UnlockCommand()
		framing.SendFrame(target.CmdConn, []byte("GET_KICKED "+reason), framing.Attr{})
		if d.AdminKicked != nil {
			d.AdminKicked(target, reason)
		}
	}()
	return framing.SendFrame(user.CmdConn, []byte(tokenPass), framing.Attr{})
}
