// Command client is an interactive terminal client. It renders the map
// and every entity the server reports, moving the player with vi keys
// (h/j/k/l to walk, space to stop, q to log out and quit).
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Ko-stant/grid-depths-engine/internal/client"
	"github.com/Ko-stant/grid-depths-engine/internal/logging"
	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
)

const frameInterval = 20 * time.Millisecond

var keyDirections = map[byte]protocol.Direction{
	'h': protocol.West,
	'j': protocol.South,
	'k': protocol.North,
	'l': protocol.East,
	' ': protocol.Stop,
}

func main() {
	addr := flag.String("addr", "localhost:5001", "server address")
	user := flag.String("user", "", "user name (required)")
	timeout := flag.Duration("timeout", client.DefaultTimeout, "request timeout")
	logFile := flag.String("log", "", "log file path (empty discards logs)")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: client -user NAME [-addr HOST:PORT]")
		os.Exit(2)
	}

	if err := run(*addr, *user, *timeout, *logFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, user string, timeout time.Duration, logFile string) error {
	// The screen owns the terminal, so logs go to a file or nowhere.
	logger := zap.NewNop().Sugar()
	if logFile != "" {
		var err error
		logger, err = logging.New(logFile)
		if err != nil {
			return fmt.Errorf("logger init: %w", err)
		}
		defer logger.Sync()
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}

	sess := client.NewSession(conn, user, timeout, logger)
	world := newView("User:" + user)
	sess.OnUpdate(func(action string, data map[string]any) {
		if action == "position" {
			world.ApplyPosition(data)
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sess.Run(); err != nil {
			logger.Errorf("session: %v", err)
		}
	}()

	// Logging in is implicit: the first request creates the player.
	sess.Send("get_map", nil).Then(func(v any) (any, error) {
		world.ApplyFloor(v.(*protocol.Response).Data)
		return v, nil
	}, func(v any) (any, error) {
		logger.Errorf("get_map failed: %v", v)
		return v, nil
	})

	screen, err := newANSIScreen(os.Stdout)
	if err != nil {
		sess.Close()
		return err
	}
	defer screen.Close()

	keys := readKeys(os.Stdin)
	frames := time.NewTicker(frameInterval)
	defer frames.Stop()

	for {
		select {
		case <-done:
			return fmt.Errorf("connection to %s lost", addr)
		case <-frames.C:
			world.Render(screen)
		case key, ok := <-keys:
			if !ok {
				sess.Close()
				return nil
			}
			if dir, found := keyDirections[key]; found {
				sess.Send("move", map[string]any{"direction": string(dir)})
				continue
			}
			if key == 'q' || key == 3 { // q or ctrl-c
				quit(sess)
				return nil
			}
		}
	}
}

// quit logs the player out, waiting briefly so the request makes it onto
// the wire before the socket closes.
func quit(sess *client.Session) {
	settled := make(chan struct{})
	sess.Send("logout", nil).Then(func(v any) (any, error) {
		close(settled)
		return v, nil
	}, func(v any) (any, error) {
		close(settled)
		return v, nil
	})
	select {
	case <-settled:
	case <-time.After(time.Second):
	}
	sess.Close()
}
