package transfer_test

import (
	"bytes"
	"net"
	"os"
	"testing"
	"time"

	"github.com/jray8/simple-server-go/dispatch"
	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/registry"
	"github.com/jray8/simple-server-go/transfer"
)

func loopbackPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	acceptCh := make(chan *net.TCPConn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			acceptCh <- nil
			return
		}
		acceptCh <- conn.(*net.TCPConn)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	server := <-acceptCh
	if server == nil {
		t.Fatal("Accept failed")
	}
	return server, client.(*net.TCPConn)
}

// TestHandleSendDeliversToFreeTarget exercises the full three-party
// choreography: a caller upload through Server.HandleSend, staged to disk,
// then handed off through the takeover mechanism to a target whose own
// ServerDispatcher.Run loop is reading its command socket concurrently, the
// way it would be in the running server.
func TestHandleSendDeliversToFreeTarget(t *testing.T) {
	reg := registry.New()

	callerData, _ := loopbackPair(t)
	defer callerData.Close()
	callerCmdSrv, callerCmdCli := loopbackPair(t)
	defer callerCmdSrv.Close()
	defer callerCmdCli.Close()

	targetData, _ := loopbackPair(t)
	defer targetData.Close()
	targetCmdSrv, targetCmdCli := loopbackPair(t)
	defer targetCmdSrv.Close()
	defer targetCmdCli.Close()

	caller := registry.NewUser("SENDER", callerData, "sender-session")
	caller.BindCmdConn(callerCmdSrv)
	caller.Activate()
	if err := reg.Reserve(caller.Name, caller); err != nil {
		t.Fatalf("Reserve(caller): %v", err)
	}

	target := registry.NewUser("RECEIVER", targetData, "receiver-session")
	target.BindCmdConn(targetCmdSrv)
	target.Activate()
	if err := reg.Reserve(target.Name, target); err != nil {
		t.Fatalf("Reserve(target): %v", err)
	}

	stagingDir := t.TempDir()
	srv := transfer.NewServer(stagingDir, 1)

	// Run the target's own dispatcher loop, exactly as cmd/server would,
	// so the takeover mechanism has a real reader to intercept.
	targetDispatcher := &dispatch.ServerDispatcher{Registry: reg}
	targetRunErr := make(chan error, 1)
	go func() { targetRunErr <- targetDispatcher.Run(target) }()

	handleSendErr := make(chan error, 1)
	go func() { handleSendErr <- srv.HandleSend(caller, []string{"SEND", "RECEIVER", "ignored"}, reg) }()

	content := []byte("the quick brown fox jumps over the lazy dog")

	// --- fake sender client, driving callerCmdCli ---
	callerReader := framing.NewReader(callerCmdCli)
	mustRecvToken(t, callerReader, "PASS") // target validated

	if err := framing.SendFrame(callerCmdCli, []byte("report.txt"), framing.Attr{}); err != nil {
		t.Fatalf("send filename: %v", err)
	}
	mustRecvToken(t, callerReader, "PASS") // staged ok

	if err := framing.SendFile(callerCmdCli, bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	mustRecvToken(t, callerReader, "PASS") // transfer complete

	if err := framing.SendFrame(callerCmdCli, []byte("PASS"), framing.Attr{}); err != nil {
		t.Fatalf("send ack-ack: %v", err)
	}
	mustRecvToken(t, callerReader, "PASS") // delivered

	// --- fake receiver client, driving targetCmdCli ---
	targetReader := framing.NewReader(targetCmdCli)
	push, _, err := targetReader.RecvFrame()
	if err != nil {
		t.Fatalf("RecvFrame(push): %v", err)
	}
	if string(push[:len("RECEIVE SENDER")]) != "RECEIVE SENDER" {
		t.Fatalf("push = %q, want RECEIVE SENDER ...", push)
	}

	if err := framing.SendFrame(targetCmdCli, []byte("PASS"), framing.Attr{}); err != nil {
		t.Fatalf("send accept: %v", err)
	}

	var got bytes.Buffer
	if _, err := framing.RecvFile(targetReader, &got, nil); err != nil {
		t.Fatalf("RecvFile: %v", err)
	}
	if got.String() != string(content) {
		t.Fatalf("received %q, want %q", got.String(), content)
	}

	if err := framing.SendFrame(targetCmdCli, []byte("PASS"), framing.Attr{}); err != nil {
		t.Fatalf("send integrity ack: %v", err)
	}

	select {
	case err := <-handleSendErr:
		if err != nil {
			t.Fatalf("HandleSend: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("HandleSend did not return")
	}

	callerCmdSrv.Close()
	targetCmdSrv.Close()
	<-targetRunErr

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		t.Fatalf("ReadDir(stagingDir): %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("staging dir not cleaned up, found %v", entries)
	}
}

func mustRecvToken(t *testing.T, r *framing.Reader, want string) {
	t.Helper()
	payload, _, err := r.RecvFrame()
	if err != nil {
		t.Fatalf("RecvFrame: %v", err)
	}
	if string(payload) != want {
		t.Fatalf("got %q, want %q", payload, want)
	}
}
