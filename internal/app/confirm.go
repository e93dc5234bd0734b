package app

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// StdinConfirmer asks for confirmation on the terminal. Only an exact
// "yes" (case-insensitive) proceeds. When stdin is not a terminal the
// answer is always no, so an unattended run can never destroy state by
// accident.
type StdinConfirmer struct {
	in  io.Reader
	out io.Writer

	// isTerminal is injectable for tests.
	isTerminal func() bool
}

// NewStdinConfirmer creates a confirmer reading from os.Stdin.
func NewStdinConfirmer() *StdinConfirmer {
	return &StdinConfirmer{
		in:  os.Stdin,
		out: os.Stdout,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

func (c *StdinConfirmer) Confirm(prompt string) (bool, error) {
	if !c.isTerminal() {
		fmt.Fprintln(c.out, "stdin is not a terminal; refusing to proceed (use --yes to skip confirmation)")
		return false, nil
	}

	fmt.Fprintf(c.out, "%s [yes/no]: ", prompt)
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes"), nil
}

// AutoConfirmer answers yes without prompting. Used for --yes and for
// scheduled runs that have no operator.
type AutoConfirmer struct{}

func (AutoConfirmer) Confirm(string) (bool, error) { return true, nil }
