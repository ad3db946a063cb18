// Command server runs the chat/file-transfer server: two TCP listeners (a
// data port for chat broadcast, a command port for the request/reply
// protocol), a shared user registry, and the dispatcher loops that serve
// them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"

	"github.com/jray8/simple-server-go/auditlog"
	"github.com/jray8/simple-server-go/dispatch"
	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/registry"
	"github.com/jray8/simple-server-go/transfer"
	"github.com/jray8/simple-server-go/transport"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	port           = flag.Int("port", 50150, "data-port listen port")
	cport          = flag.Int("cport", 50151, "command-port listen port")
	promPort       = flag.String("prom", ":9090", "Prometheus metrics export address and port")
	downloadsDir   = flag.String("downloads-dir", "downloads", "directory used to stage and land file transfers")
	janitorWorkers = flag.Int("janitor-workers", 4, "number of background staging-file cleanup workers")

	ctx, cancel = context.WithCancel(context.Background())
)

// Exit codes, per spec.md §6.
const (
	exitDataPortBind = 1
	exitCmdPortBind  = 2
	exitDownloadsDir = 3
)

func fatalExit(code int, format string, args ...interface{}) {
	log.Printf(format, args...)
	os.Exit(code)
}

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	if err := os.MkdirAll(*downloadsDir, 0o755); err != nil {
		fatalExit(exitDownloadsDir, "could not create downloads directory %q: %v", *downloadsDir, err)
	}

	dataLn, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		fatalExit(exitDataPortBind, "could not bind data port %d: %v", *port, err)
	}
	cmdLn, err := net.Listen("tcp", fmt.Sprintf(":%d", *cport))
	if err != nil {
		fatalExit(exitCmdPortBind, "could not bind command port %d: %v", *cport, err)
	}

	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)
	defer cancel()

	reg := registry.New()
	authServer := transport.NewAuthServer(reg)
	ledger := auditlog.New()
	transferSrv := transfer.NewServer(*downloadsDir, *janitorWorkers)
	transferSrv.Ledger = ledger

	dispatcher := &dispatch.ServerDispatcher{
		Registry:   reg,
		HandleSend: transferSrv.HandleSend,
		AdminKicked: func(user *registry.User, reason string) {
			ledger.Record(user.Name, auditlog.KindKick, reason)
		},
		AdminElevated: func(user *registry.User, reason string, elevate bool) {
			kind := auditlog.KindAdminGrant
			if !elevate {
				kind = auditlog.KindAdminRevoke
			}
			ledger.Record(user.Name, kind, reason)
		},
	}

	go acceptLoop(cmdLn, func(conn *net.TCPConn) {
		if err := authServer.BindCmdConn(conn); err != nil {
			log.Printf("server: command-port bind failed: %v", err)
			conn.Close()
		}
	})

	go acceptLoop(dataLn, func(conn *net.TCPConn) {
		session, err := authServer.AuthenticateData(conn)
		if err != nil {
			log.Printf("server: authentication failed: %v", err)
			conn.Close()
			return
		}
		ledger.Record(session.Name, auditlog.KindConnect, conn.RemoteAddr().String())

		go func() {
			if err := dispatcher.Run(session.User); err != nil {
				log.Printf("server: %s command loop ended: %v", session.Name, err)
			}
		}()

		chatLoop(reg, session.User, ledger)
	})

	log.Printf("server: listening for data on %s, commands on %s", dataLn.Addr(), cmdLn.Addr())
	waitForShutdown(*downloadsDir, ledger)
}

// acceptLoop accepts connections from ln forever, handing each off to
// handle in its own goroutine so one slow or malicious peer cannot stall
// the others.
func acceptLoop(ln net.Listener, handle func(*net.TCPConn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("server: accept on %s failed: %v", ln.Addr(), err)
			return
		}
		go handle(conn.(*net.TCPConn))
	}
}

// chatLoop reads plain (non-command) frames off user's data socket and
// broadcasts them to every other active user, tagged with the sender's
// name. It returns once the data socket is no longer readable, which also
// means the session has ended.
func chatLoop(reg *registry.Registry, user *registry.User, ledger *auditlog.Log) {
	r := framing.NewReader(user.DataConn)
	for {
		payload, _, err := r.RecvFrame()
		if err != nil {
			reg.Release(user.Name)
			reg.Broadcast([]byte(user.Name+" has left the server."), framing.Attr{Color: framing.ColorDim}, nil)
			ledger.Record(user.Name, auditlog.KindDisconnect, err.Error())
			return
		}
		msg := fmt.Sprintf("[%s]: %s", user.Name, payload)
		reg.Broadcast([]byte(msg), framing.Attr{Property: framing.PropDynamic}, user)
	}
}

// waitForShutdown blocks until SIGINT/SIGTERM, then flushes the audit
// ledger to disk and purges downloadsDir (every file it contains, per
// spec.md's "purged on clean shutdown" rule) before returning control to
// main, which exits 0.
func waitForShutdown(downloadsDir string, ledger *auditlog.Log) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("server: shutting down, flushing audit ledger")
	flushLedger(ledger, filepath.Join(downloadsDir, "audit.csv"))
	log.Println("server: purging downloads directory")
	purgeDir(downloadsDir)
}

func flushLedger(ledger *auditlog.Log, path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Printf("server: could not create audit ledger file %s: %v", path, err)
		return
	}
	defer f.Close()
	if err := ledger.Flush(f); err != nil {
		log.Printf("server: could not flush audit ledger: %v", err)
	}
}

func purgeDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("server: could not read downloads directory for cleanup: %v", err)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("server: could not remove %s: %v", path, err)
		}
	}
}
