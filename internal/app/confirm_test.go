package app

import (
	"bytes"
	"strings"
	"testing"
)

func newTerminalConfirmer(input string, out *bytes.Buffer) *StdinConfirmer {
	return &StdinConfirmer{
		in:         strings.NewReader(input),
		out:        out,
		isTerminal: func() bool { return true },
	}
}

func TestStdinConfirmer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact yes", "yes\n", true},
		{"uppercase yes", "YES\n", true},
		{"mixed case", "Yes\n", true},
		{"padded yes", "  yes  \n", true},
		{"bare y is not enough", "y\n", false},
		{"no", "no\n", false},
		{"empty line", "\n", false},
		{"anything else", "sure\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := newTerminalConfirmer(tt.input, &out)

			got, err := c.Confirm("Restore backup?")
			if err != nil {
				t.Fatalf("Confirm() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Restore backup?") {
				t.Errorf("prompt not written: %q", out.String())
			}
		})
	}
}

func TestStdinConfirmer_NonTerminalRefuses(t *testing.T) {
	var out bytes.Buffer
	c := &StdinConfirmer{
		in:         strings.NewReader("yes\n"),
		out:        &out,
		isTerminal: func() bool { return false },
	}

	got, err := c.Confirm("Restore backup?")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if got {
		t.Error("Confirm() = true with non-terminal stdin, unattended runs must not destroy state")
	}
}

func TestAutoConfirmer(t *testing.T) {
	got, err := AutoConfirmer{}.Confirm("anything")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if !got {
		t.Error("AutoConfirmer answered no")
	}
}
