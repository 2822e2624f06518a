package main

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"
)

// Screen is the drawing surface the render loop writes to. Rows and
// columns are zero-based.
type Screen interface {
	Putstr(row, col int, text string)
	Refresh()
}

// ansiScreen renders with raw ANSI escape sequences, double-buffered so
// each frame is one write. It puts the terminal into raw mode for the
// lifetime of the program.
type ansiScreen struct {
	out   *os.File
	buf   bytes.Buffer
	prior *term.State
}

func newANSIScreen(out *os.File) (*ansiScreen, error) {
	prior, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	s := &ansiScreen{out: out, prior: prior}
	fmt.Fprint(out, "\x1b[?25l\x1b[2J") // hide cursor, clear
	return s, nil
}

func (s *ansiScreen) Putstr(row, col int, text string) {
	fmt.Fprintf(&s.buf, "\x1b[%d;%dH%s", row+1, col+1, text)
}

func (s *ansiScreen) Refresh() {
	s.out.Write(s.buf.Bytes())
	s.buf.Reset()
}

// Close restores the terminal. Must run before the process exits or the
// shell is left in raw mode.
func (s *ansiScreen) Close() {
	fmt.Fprint(s.out, "\x1b[?25h\x1b[2J\x1b[H")
	if s.prior != nil {
		_ = term.Restore(int(os.Stdin.Fd()), s.prior)
	}
}

// readKeys pumps single bytes from stdin into a channel. The goroutine
// leaks on shutdown because a blocking Read on stdin cannot be
// interrupted portably; the process exits right after anyway.
func readKeys(in *os.File) <-chan byte {
	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if err != nil {
				close(keys)
				return
			}
			if n == 1 {
				keys <- buf[0]
			}
		}
	}()
	return keys
}
