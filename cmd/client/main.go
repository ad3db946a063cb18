// Command client connects to a server, authenticates, and drives an
// interactive chat/file-transfer session over a console terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/m-lab/go/flagx"

	"github.com/jray8/simple-server-go/dispatch"
	"github.com/jray8/simple-server-go/framing"
	"github.com/jray8/simple-server-go/term"
	"github.com/jray8/simple-server-go/transfer"
	"github.com/jray8/simple-server-go/transport"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	host         = flag.String("host", "localhost", "server hostname")
	port         = flag.Int("port", 50150, "server data port")
	cport        = flag.Int("cport", 50151, "server command port")
	downloadsDir = flag.String("downloads-dir", "downloads", "directory accepted transfers are written to")
)

// Exit codes, per spec.md §6.
const (
	exitConnectFailure      = 1
	exitAuthenticateFailure = 2
	exitReconnectExhausted  = 3
)

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	transfer.DownloadsDir = *downloadsDir

	console := term.NewConsole()
	defer console.Quit()

	// A single goroutine owns console's underlying stdin scanner for the
	// life of the process; every other reader of typed input, including
	// the username prompt on every (re)connect attempt, pulls from this
	// channel instead of calling console.ReadLine directly, so a reconnect
	// never leaves two goroutines racing to read the same line.
	lines := inputLines(console)

	dataAddr := fmt.Sprintf("%s:%d", *host, *port)
	cmdAddr := fmt.Sprintf("%s:%d", *host, *cport)

	d, err := connect(console, lines, dataAddr, cmdAddr)
	if err != nil {
		log.Printf("client: %v", err)
		os.Exit(classifyConnectErr(err))
	}

	runSession(console, d, dataAddr, cmdAddr, lines)
}

// inputLines starts the single, process-lifetime goroutine that pulls
// typed lines off console and returns the channel it feeds. The channel is
// closed once stdin is exhausted, so a receive then reports ok == false;
// callers that see it should stop reading from the channel.
func inputLines(console *term.Console) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			line, ok := console.ReadLine()
			if !ok {
				return
			}
			out <- line
		}
	}()
	return out
}

// classifyConnectErr maps a connect's failure to the exit code spec.md §6
// reserves for it: 1 if the TCP dial itself never completed (the "initial
// connect failure" case), 2 if the dial succeeded but the handshake that
// followed it failed. transport.ClientAuthenticate wraps Dial's errors
// with a "dial ... port" prefix, which is the only signal available to
// tell the two apart without transport exporting a dedicated error type.
func classifyConnectErr(err error) int {
	msg := err.Error()
	if strings.Contains(msg, "dial data port") || strings.Contains(msg, "dial command port") {
		return exitConnectFailure
	}
	return exitAuthenticateFailure
}

// connect runs one authentication attempt and wires up a ClientDispatcher
// on success. promptName reads from lines rather than console directly,
// so it shares the one input reader with the rest of the session.
func connect(console *term.Console, lines <-chan string, dataAddr, cmdAddr string) (*dispatch.ClientDispatcher, error) {
	promptName := func(taken []string) string {
		console.Add(fmt.Sprintf("Names in use: %v", taken), 0, 5)
		console.SetPrompt("choose a name: ")
		name, ok := <-lines
		if !ok {
			return ""
		}
		return name
	}

	session, dataConn, cmdConn, err := transport.ClientAuthenticate(context.Background(), dataAddr, cmdAddr, promptName)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	d := dispatch.NewClientDispatcher(cmdConn, dataConn, session.Name, console)
	d.HandleSend = transfer.ClientHandleSend
	return d, nil
}

// runSession drives one authenticated session to completion: a background
// reader goroutine (ClientDispatcher.Run) delivering passive pushes and
// command replies, a chat-broadcast reader on the data socket, and a
// foreground select turning typed lines into either a command dispatch or
// a plain chat send. When the session drops and AutoReconnect still
// allows it, it reconnects in place rather than returning, exiting the
// process only once reconnection itself is exhausted.
func runSession(console *term.Console, d *dispatch.ClientDispatcher, dataAddr, cmdAddr string, lines <-chan string) {
	for {
		runErr := make(chan error, 1)
		go func() { runErr <- d.Run() }()
		chatDone := make(chan struct{})
		go func() { chatReader(console, d); close(chatDone) }()

		console.SetPrompt(fmt.Sprintf("[%s]: ", d.Name))

	sessionLoop:
		for {
			select {
			case <-runErr:
				break sessionLoop
			case <-chatDone:
				break sessionLoop
			case line, ok := <-lines:
				if !ok {
					return
				}
				if err := handleInputLine(d, line); err != nil {
					break sessionLoop
				}
			}
		}

		if !d.AutoReconnect() {
			return
		}

		console.Add("connection lost, reconnecting...", 0, 4)
		next, err := connect(console, lines, dataAddr, cmdAddr)
		if err != nil {
			log.Printf("client: reconnect failed: %v", err)
			os.Exit(exitReconnectExhausted)
		}
		d = next
	}
}

// handleInputLine routes one line of local input: a leading "/" marks it
// as a command (the slash itself is stripped before handing the rest to
// Issue), anything else is literal chat text sent straight over the data
// socket for the server to broadcast, per spec.md §8 example 2.
func handleInputLine(d *dispatch.ClientDispatcher, line string) error {
	if strings.HasPrefix(line, "/") {
		return d.Issue(strings.TrimPrefix(line, "/"))
	}
	if strings.TrimSpace(line) == "" {
		return nil
	}
	return framing.SendFrame(d.DataConn, []byte(line), framing.Attr{})
}

// chatReader relays plain chat frames arriving on the data socket straight
// to the console; it returns once the data socket fails, which happens at
// the same moment the command socket does since both belong to one
// session. Chat messages are plain broadcast text, not part of the command
// protocol's request/reply exchange, so they are read independently of
// ClientDispatcher.Run rather than threaded through its reply channel.
func chatReader(console *term.Console, d *dispatch.ClientDispatcher) {
	r := framing.NewReader(d.DataConn)
	for {
		payload, attr, err := r.RecvFrame()
		if err != nil {
			return
		}
		console.Add(string(payload), attr.Property, attr.Color)
	}
}
