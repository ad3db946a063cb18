package registry_test

import (
	"net"
	"testing"

	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/registry"
)

func TestReserveRejectsReservedName(t *testing.T) {
	r := registry.New()
	u := &registry.User{Name: "SYSTEM"}
	if err := r.Reserve("SYSTEM", u); err == nil {
		t.Fatal("expected Reserve(\"SYSTEM\", ...) to fail")
	}
	if err := r.Reserve("system", u); err == nil {
		t.Fatal("expected Reserve(\"system\", ...) to fail case-insensitively")
	}
}

func TestReserveRejectsDuplicate(t *testing.T) {
	r := registry.New()
	a := &registry.User{Name: "Alice"}
	b := &registry.User{Name: "ALICE"}

	if err := r.Reserve("Alice", a); err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	if err := r.Reserve("ALICE", b); err == nil {
		t.Fatal("expected duplicate-name Reserve to fail")
	}
}

func TestReleaseThenReserveSucceeds(t *testing.T) {
	r := registry.New()
	a := &registry.User{Name: "Bob"}
	if err := r.Reserve("Bob", a); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	r.Release("bob")

	b := &registry.User{Name: "Bob"}
	if err := r.Reserve("Bob", b); err != nil {
		t.Fatalf("Reserve after Release should succeed: %v", err)
	}
}

func TestFindUserOnlyReturnsActive(t *testing.T) {
	r := registry.New()
	u := &registry.User{Name: "Carol"}
	if err := r.Reserve("Carol", u); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got := r.FindUser("Carol"); got != nil {
		t.Fatal("FindUser should not return a reserved-but-inactive user")
	}
	u.Activate()
	if got := r.FindUser("carol"); got != u {
		t.Fatal("FindUser should return the active user, case-insensitively")
	}
}

func TestListUsersMasksHiddenUnlessRequested(t *testing.T) {
	r := registry.New()
	visible := &registry.User{Name: "Dan"}
	hidden := &registry.User{Name: "Eve"}
	hidden.SetHidden(true)

	for _, u := range []*registry.User{visible, hidden} {
		if err := r.Reserve(u.Name, u); err != nil {
			t.Fatalf("Reserve(%s): %v", u.Name, err)
		}
		u.Activate()
	}

	got := r.ListUsers(false)
	if len(got) != 2 || got[0] != "Dan" || got[1] != "***" {
		t.Fatalf("ListUsers(false) = %v, want [Dan ***]", got)
	}
	if n := r.HiddenCount(); n != 1 {
		t.Fatalf("HiddenCount() = %d, want 1", n)
	}

	got = r.ListUsers(true)
	if len(got) != 2 || got[0] != "Dan" || got[1] != "Eve" {
		t.Fatalf("ListUsers(true) = %v, want [Dan Eve]", got)
	}
}

func TestBroadcastSkipsSender(t *testing.T) {
	tcpA, tcpB := loopbackPair(t)
	defer tcpA.Close()
	defer tcpB.Close()

	sender := &registry.User{Name: "Frank"}
	receiver := registry.NewUser("Gina", tcpA, "gina-session")
	receiver.Activate()

	r := registry.New()
	if err := r.Reserve(sender.Name, sender); err != nil {
		t.Fatal(err)
	}
	sender.Activate()
	if err := r.Reserve(receiver.Name, receiver); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var payload []byte
	var attr framing.Attr
	var recvErr error
	go func() {
		payload, attr, recvErr = framing.NewReader(tcpB).RecvFrame()
		close(done)
	}()

	r.Broadcast([]byte("hi"), framing.Attr{Property: framing.PropNormal}, sender)

	<-done
	if recvErr != nil {
		t.Fatalf("RecvFrame: %v", recvErr)
	}
	if string(payload) != "hi" {
		t.Fatalf("payload = %q, want hi", payload)
	}
	if attr.Property != framing.PropNormal {
		t.Fatalf("attr.Property = %v, want PropNormal", attr.Property)
	}
}

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
