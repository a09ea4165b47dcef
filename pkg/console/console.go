// Package console provides the line surface an interactive session reads
// commands from and writes results to.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Surface reads one line at a time and displays output. Display may be called
// from any goroutine while ReadLine is blocked; implementations clear any
// partially typed input before writing and restore it afterwards.
type Surface interface {
	// ReadLine returns io.EOF when input ends.
	ReadLine() (string, error)
	Display(text string)
	Clear()
	SetTitle(title string)
	Close() error
}

// Open returns a Terminal when in is a terminal and a Pipe otherwise.
func Open(in *os.File, out io.Writer, prompt string) (Surface, error) {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		return NewTerminal(in, out, prompt)
	}
	return NewPipe(in, out), nil
}

// Terminal is a raw mode line editor backed by x/term.
type Terminal struct {
	fd    int
	state *term.State
	t     *term.Terminal
}

var _ Surface = (*Terminal)(nil)

// NewTerminal puts in into raw mode. Close restores it.
func NewTerminal(in *os.File, out io.Writer, prompt string) (*Terminal, error) {
	fd := int(in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("console: raw mode: %w", err)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	return &Terminal{
		fd:    fd,
		state: state,
		t:     term.NewTerminal(rw, prompt),
	}, nil
}

func (c *Terminal) ReadLine() (string, error) {
	return c.t.ReadLine()
}

// Display writes text above the prompt. x/term erases the pending input line,
// writes, and redraws the prompt with the buffered input.
func (c *Terminal) Display(text string) {
	if text == "" {
		return
	}
	_, _ = c.t.Write([]byte(strings.TrimRight(text, "\n") + "\n"))
}

func (c *Terminal) Clear() {
	_, _ = c.t.Write([]byte("\033[H\033[2J"))
}

// SetTitle goes through the line editor like Display so the escape sequence
// cannot land in the middle of a prompt redraw.
func (c *Terminal) SetTitle(title string) {
	_, _ = c.t.Write([]byte(fmt.Sprintf("\033]0;%s\007", title)))
}

func (c *Terminal) Close() error {
	return term.Restore(c.fd, c.state)
}

// MaxLineLength bounds a single piped line. Longer lines are skipped and
// reported with ErrLineTooLong; reading continues with the next line.
const MaxLineLength = 1 << 20

// ErrLineTooLong is returned by Pipe.ReadLine for a line over MaxLineLength.
var ErrLineTooLong = fmt.Errorf("console: line longer than %d bytes", MaxLineLength)

// Pipe reads newline separated commands from a non-terminal input.
type Pipe struct {
	mu  sync.Mutex
	r   *bufio.Reader
	out io.Writer
}

var _ Surface = (*Pipe)(nil)

func NewPipe(in io.Reader, out io.Writer) *Pipe {
	return &Pipe{r: bufio.NewReader(in), out: out}
}

func (p *Pipe) ReadLine() (string, error) {
	var line []byte
	tooLong := false
	for {
		chunk, isPrefix, err := p.r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && (len(line) > 0 || tooLong) {
				break
			}
			return "", err
		}
		if !tooLong {
			if len(line)+len(chunk) > MaxLineLength {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return "", ErrLineTooLong
	}
	return string(line), nil
}

func (p *Pipe) Display(text string) {
	if text == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, strings.TrimRight(text, "\n"))
}

// Clear is a no-op; there is no screen to clear.
func (p *Pipe) Clear() {}

// SetTitle is a no-op.
func (p *Pipe) SetTitle(string) {}

func (p *Pipe) Close() error { return nil }
