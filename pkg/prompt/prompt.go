// Package prompt asks the user for login credentials.
package prompt

import (
	"errors"
	"io"
	"io/ioutil"
	"strings"

	"github.com/manifoldco/promptui"

	"tableflip.dev/messer/pkg/messen"
)

// ErrCancelled is returned when the user aborts a prompt with ^C or ^D.
var ErrCancelled = errors.New("login cancelled")

// Credentials prompts on a terminal. The zero value uses the process stdio.
type Credentials struct {
	Stdin  io.Reader
	Stdout io.Writer

	// run is swapped out in tests.
	run func(p promptui.Prompt) (string, error)
}

var _ messen.Prompter = (*Credentials)(nil)

func (c *Credentials) Credentials() (messen.Credentials, error) {
	name, err := c.ask("Name", 0)
	if err != nil {
		return messen.Credentials{}, err
	}
	password, err := c.ask("Password", '*')
	if err != nil {
		return messen.Credentials{}, err
	}
	return messen.Credentials{Name: strings.TrimSpace(name), Password: password}, nil
}

func (c *Credentials) ask(label string, mask rune) (string, error) {
	templates := &promptui.PromptTemplates{
		Prompt:  "{{ . }}: ",
		Valid:   "{{ . | green }}: ",
		Invalid: "{{ . | red }}: ",
		Success: "{{ . | bold }}: ",
	}

	p := promptui.Prompt{
		Label:     label,
		Templates: templates,
		Validate:  required,
		Mask:      mask,
	}
	if c.Stdin != nil {
		p.Stdin = ioutil.NopCloser(c.Stdin)
	}
	if c.Stdout != nil {
		p.Stdout = NopCloser(c.Stdout)
	}

	run := c.run
	if run == nil {
		run = func(p promptui.Prompt) (string, error) { return p.Run() }
	}
	result, err := run(p)
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", ErrCancelled
	}
	return result, err
}

func required(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("required")
	}
	return nil
}

// NopCloser returns a WriteCloser with a no-op Close method wrapping w.
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
