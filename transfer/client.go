package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jray8/simple-server-go/dispatch"
	"github.com/jray8/simple-server-go/framing"
)

// AcceptTimeout is how long a RECEIVE prompt waits for the local user to
// answer before defaulting to decline, per spec.md §4.6.
const AcceptTimeout = 30 * time.Second

// DownloadsDir is where accepted transfers land by default.
var DownloadsDir = "downloads"

// ClientHandleSend implements dispatch.ClientSendHandler: it drives both
// halves of the client-side choreography, the locally typed SEND and the
// server-pushed RECEIVE, distinguished by args[0].
func ClientHandleSend(d *dispatch.ClientDispatcher, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if strings.ToUpper(args[0]) == "RECEIVE" {
		return clientReceive(d, args)
	}
	return clientSend(d, args)
}

// clientSend uploads a local file to the server for the SEND command the
// user just issued. d.Issue has already gotten the server's PASS ack that
// the target exists before calling this.
func clientSend(d *dispatch.ClientDispatcher, args []string) error {
	if len(args) < 3 {
		d.Collab.Add("usage: SEND <name> <path>", framing.PropNormal, framing.ColorAlert)
		return nil
	}
	path := dispatch.StripQuotes(strings.Join(args[2:], " "))

	in, err := os.Open(path)
	if err != nil {
		d.Collab.Add(fmt.Sprintf("cannot open %s: %v", path, err), framing.PropNormal, framing.ColorAlert)
		return framing.SendFrame(d.CmdConn, []byte(tokenFail+" cannot open file"), framing.Attr{})
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return framing.SendFrame(d.CmdConn, []byte(tokenFail+" cannot stat file"), framing.Attr{})
	}

	r := framing.NewReader(d.CmdConn)

	if err := framing.SendFrame(d.CmdConn, []byte(filepath.Base(path)), framing.Attr{}); err != nil {
		return err
	}
	staged, _, err := r.RecvFrame()
	if err != nil {
		return err
	}
	if string(staged) != tokenPass {
		d.Collab.Add("server could not stage the file", framing.PropNormal, framing.ColorAlert)
		return nil
	}

	d.Collab.SetPrompt(fmt.Sprintf("sending %s...", filepath.Base(path)))
	if err := framing.SendFile(d.CmdConn, in, info.Size()); err != nil {
		return err
	}
	complete, _, err := r.RecvFrame()
	if err != nil {
		return err
	}
	if string(complete) != tokenPass {
		d.Collab.Add("transfer failed: "+string(complete), framing.PropNormal, framing.ColorAlert)
		return nil
	}

	if err := framing.SendFrame(d.CmdConn, []byte(tokenPass), framing.Attr{}); err != nil {
		return err
	}
	delivered, _, err := r.RecvFrame()
	if err != nil {
		return err
	}
	if string(delivered) == tokenPass {
		d.Collab.Add(fmt.Sprintf("%s delivered to %s", filepath.Base(path), args[1]), framing.PropNormal, framing.ColorSuccess)
	} else {
		d.Collab.Add(string(delivered), framing.PropNormal, framing.ColorAlert)
	}
	return nil
}

// clientReceive handles a server-pushed RECEIVE: prompt the user to accept
// or decline, and if accepted, download the file into DownloadsDir under a
// name that will not collide with anything already there.
func clientReceive(d *dispatch.ClientDispatcher, args []string) error {
	if len(args) < 2 {
		return nil
	}
	sender := args[1]
	displayName := "a file"
	if len(args) >= 3 {
		displayName = dispatch.StripQuotes(args[2])
	}

	prompt := fmt.Sprintf("%s wants to send you %s. Accept? (y/N)", sender, displayName)
	accept := d.Collab.GetBinaryResponse(prompt, time.Second, AcceptTimeout, 10*time.Second, framing.ColorHighlight)

	if !accept {
		return framing.SendFrame(d.CmdConn, []byte(tokenFail), framing.Attr{})
	}

	if err := os.MkdirAll(DownloadsDir, 0o755); err != nil {
		d.Collab.Add("could not prepare downloads folder: "+err.Error(), framing.PropNormal, framing.ColorAlert)
		return framing.SendFrame(d.CmdConn, []byte(tokenFail), framing.Attr{})
	}
	destPath := UniquePath(DownloadsDir, displayName)
	out, err := os.Create(destPath)
	if err != nil {
		d.Collab.Add("could not create "+destPath+": "+err.Error(), framing.PropNormal, framing.ColorAlert)
		return framing.SendFrame(d.CmdConn, []byte(tokenFail), framing.Attr{})
	}
	defer out.Close()

	if err := framing.SendFrame(d.CmdConn, []byte(tokenPass), framing.Attr{}); err != nil {
		os.Remove(destPath)
		return err
	}

	r := framing.NewReader(d.CmdConn)
	d.Collab.SetPrompt("receiving " + displayName + "...")
	progress := func(done, total int64) {
		d.Collab.SetPrompt(fmt.Sprintf("receiving %s... %d/%d bytes", displayName, done, total))
	}
	n, err := framing.RecvFile(r, out, progress)
	if err != nil {
		out.Close()
		os.Remove(destPath)
		framing.SendFrame(d.CmdConn, []byte(tokenFail), framing.Attr{})
		d.Collab.Add("transfer from "+sender+" failed: "+err.Error(), framing.PropNormal, framing.ColorAlert)
		return nil
	}
	d.Collab.SetPrompt("")

	if err := framing.SendFrame(d.CmdConn, []byte(tokenPass), framing.Attr{}); err != nil {
		return err
	}
	d.Collab.Add(fmt.Sprintf("received %s from %s (%d bytes) -> %s", displayName, sender, n, destPath), framing.PropNormal, framing.ColorSuccess)
	return nil
}
