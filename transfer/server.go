package transfer

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/jray8/simple-server-go/auditlog"
	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/metrics"
	"github.com/jray8/simple-server-go/registry"
)

const (
	tokenPass = "PASS"
	tokenFail = "FAIL"
)

// Server runs the server side of the SEND choreography: validating the
// target, staging the uploaded bytes under StagingDir, and, once the
// target is free, handing the staged file off via a RECEIVE push.
type Server struct {
	StagingDir string
	cleanup    CleanupChan
	wg         sync.WaitGroup

	// Ledger, if set, receives a KindTransfer entry for every SEND outcome.
	// Left nil, transfers simply go unaudited.
	Ledger *auditlog.Log
}

// NewServer returns a Server that stages uploads under stagingDir, which
// must already exist. n is the number of background cleanup workers.
func NewServer(stagingDir string, n int) *Server {
	s := &Server{StagingDir: stagingDir}
	s.cleanup = NewJanitor(n, &s.wg)
	return s
}

// remove hands a staged file off to the janitor pool instead of unlinking
// it on the calling goroutine, so a slow disk on one transfer never blocks
// another SEND.
func (s *Server) remove(path string) {
	s.cleanup <- Task{Path: path}
}

func (s *Server) audit(user, detail string) {
	if s.Ledger != nil {
		s.Ledger.Record(user, auditlog.KindTransfer, detail)
	}
}

// HandleSend implements dispatch.SendHandler's signature: it is the server
// dispatcher's entry point for a SEND command, already past the
// restricted-command and command_mutex bookkeeping the dispatcher itself
// owns.
func (s *Server) HandleSend(caller *registry.User, args []string, reg *registry.Registry) error {
	if len(args) < 3 {
		return framing.SendFrame(caller.CmdConn, []byte(tokenFail+" usage: SEND <name> <path>"), framing.Attr{})
	}
	targetName := args[1]
	target := reg.FindUser(targetName)
	if target == nil || target == caller {
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		s.audit(caller.Name, "SEND "+targetName+": no such user")
		return framing.SendFrame(caller.CmdConn, []byte(tokenFail+" no such user"), framing.Attr{})
	}
	if err := framing.SendFrame(caller.CmdConn, []byte(tokenPass), framing.Attr{}); err != nil {
		return err
	}

	r := framing.NewReader(caller.CmdConn)

	// Filename frame: the name the sender's local file (or zip archive, if
	// it bundled multiple paths -- archive creation itself is out of scope
	// here, see spec.md §1) will be staged under.
	nameFrame, _, err := r.RecvFrame()
	if err != nil {
		return err
	}
	stagedPath := UniquePath(s.StagingDir, string(nameFrame))
	out, err := os.Create(stagedPath)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		s.audit(caller.Name, "SEND "+target.Name+": could not stage file")
		return framing.SendFrame(caller.CmdConn, []byte(tokenFail+" could not stage file"), framing.Attr{})
	}
	if err := framing.SendFrame(caller.CmdConn, []byte(tokenPass), framing.Attr{}); err != nil {
		out.Close()
		s.remove(stagedPath)
		return err
	}

	// File bytes. RecvFile reads the file header itself; a failure before
	// any payload byte arrived (including the sender-failure header) is
	// reported as the sender aborting.
	n, err := framing.RecvFile(r, out, nil)
	out.Close()
	if err != nil {
		s.remove(stagedPath)
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		reason := "transfer incomplete"
		if n == 0 {
			reason = "sender aborted"
		}
		s.audit(caller.Name, "SEND "+target.Name+": "+reason)
		return framing.SendFrame(caller.CmdConn, []byte(tokenFail+" "+reason), framing.Attr{})
	}
	if err := framing.SendFrame(caller.CmdConn, []byte(tokenPass), framing.Attr{}); err != nil {
		s.remove(stagedPath)
		return err
	}
	metrics.TransferBytesTotal.Add(float64(n))

	// Final ack-ack from the sender.
	if _, _, err := r.RecvFrame(); err != nil {
		s.remove(stagedPath)
		return err
	}

	// Deliver to the target once it is free, escalating the poll budget.
	free := registry.PollActivity(target, registry.DefaultPollPeriod, 15*time.Second)
	if !free {
		if err := framing.SendFrame(caller.CmdConn, []byte(tokenFail+" "+target.Name+" is busy"), framing.Attr{}); err != nil {
			s.remove(stagedPath)
			return err
		}
		keepWaiting, _, err := r.RecvFrame()
		if err != nil {
			s.remove(stagedPath)
			return err
		}
		if string(keepWaiting) != tokenPass {
			s.remove(stagedPath)
			metrics.TransfersTotal.WithLabelValues("declined").Inc()
			s.audit(caller.Name, "SEND "+target.Name+": sender gave up waiting")
			return nil
		}
		free = registry.PollActivity(target, registry.DefaultPollPeriod, 30*time.Second)
		if !free {
			s.remove(stagedPath)
			metrics.TransfersTotal.WithLabelValues("target-busy").Inc()
			s.audit(caller.Name, "SEND "+target.Name+": never freed up")
			return framing.SendFrame(caller.CmdConn, []byte(tokenFail+" "+target.Name+" never freed up"), framing.Attr{})
		}
	}

	// Register a takeover on the target's own command dispatcher loop
	// before sending the push, so the accept/decline reply the target's
	// client sends back is routed to deliverTo instead of being
	// misinterpreted as a freshly typed command.
	target.SetTakeover(s.deliverTo(target.CmdConn, stagedPath, caller.Name, target.Name))

	receiveMsg := fmt.Sprintf(`RECEIVE %s "%s" "%s"`, caller.Name, string(nameFrame), stagedPath)
	if err := framing.SendFrame(target.CmdConn, []byte(receiveMsg), framing.Attr{}); err != nil {
		s.remove(stagedPath)
		return err
	}
	if err := framing.SendFrame(caller.CmdConn, []byte(tokenPass), framing.Attr{}); err != nil {
		return err
	}
	s.audit(caller.Name, "SEND "+target.Name+": handed off for delivery")
	return nil
}

// deliverTo returns the takeover handler that finishes the RECEIVE side of
// a transfer on the target's command dispatcher loop: reading the
// accept/decline reply and, if accepted, streaming the staged file's bytes
// and waiting for the target's integrity ack. Whatever the outcome, the
// staged file has been queued for removal by the cleanup workers by the
// time this returns; the unlink itself happens on a worker goroutine.
func (s *Server) deliverTo(conn *net.TCPConn, stagedPath, senderName, targetName string) func([]byte, *framing.Reader) error {
	return func(firstPayload []byte, r *framing.Reader) error {
		defer s.remove(stagedPath)

		if string(firstPayload) != tokenPass {
			metrics.TransfersTotal.WithLabelValues("declined").Inc()
			s.audit(senderName, "SEND "+targetName+": declined by recipient")
			return nil
		}

		in, err := os.Open(stagedPath)
		if err != nil {
			return nil
		}
		defer in.Close()
		info, err := in.Stat()
		if err != nil {
			return nil
		}

		if err := framing.SendFile(conn, in, info.Size()); err != nil {
			metrics.TransfersTotal.WithLabelValues("failed").Inc()
			s.audit(senderName, "SEND "+targetName+": send failed")
			return nil
		}

		ack, _, err := r.RecvFrame()
		if err != nil {
			return err
		}
		if string(ack) == tokenPass {
			metrics.TransfersTotal.WithLabelValues("completed").Inc()
			metrics.TransferBytesTotal.Add(float64(info.Size()))
			s.audit(senderName, "SEND "+targetName+": completed")
		} else {
			metrics.TransfersTotal.WithLabelValues("failed").Inc()
			s.audit(senderName, "SEND "+targetName+": integrity check failed")
		}
		return nil
	}
}
