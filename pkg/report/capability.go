package report

import (
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const defaultWidth = 80

// Capability describes the output stream. Only Interactive decides between
// region and flat rendering; Width bounds the region lines.
type Capability interface {
	Interactive() bool
	Width() int
}

// Fixed is a Capability with constant answers, for tests and for forcing a
// mode from the command line.
type Fixed struct {
	IsInteractive bool
	Cols          int
}

func (f Fixed) Interactive() bool { return f.IsInteractive }

func (f Fixed) Width() int {
	if f.Cols <= 0 {
		return defaultWidth
	}
	return f.Cols
}

type fileCapability struct {
	f           *os.File
	interactive bool
}

// DetectCapability inspects f. A terminal counts as interactive unless
// TERM is "dumb" or NO_COLOR is set.
func DetectCapability(f *os.File) Capability {
	fd := f.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	if os.Getenv("TERM") == "dumb" {
		tty = false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		tty = false
	}
	return &fileCapability{f: f, interactive: tty}
}

func (c *fileCapability) Interactive() bool { return c.interactive }

// Width is asked again on every call so a resized window is picked up.
func (c *fileCapability) Width() int {
	w, _, err := term.GetSize(int(c.f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}
