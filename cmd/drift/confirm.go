package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// stdinPrompter asks questions on the terminal. It implements
// drift.Prompter.
type stdinPrompter struct {
	in  io.Reader
	out io.Writer
}

func newPrompter() *stdinPrompter {
	return &stdinPrompter{
		in:  os.Stdin,
		out: os.Stdout,
	}
}

// Confirm asks a yes/no question. Empty input selects the default.
func (p *stdinPrompter) Confirm(prompt string, def bool) (bool, error) {
	choices := "[Y/n]"

	if !def {
		choices = "[y/N]"
	}

	fmt.Fprintf(p.out, "%s %s ", prompt, choices)

	answer, err := p.readLine()

	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Ask reads a free-form answer, possibly empty.
func (p *stdinPrompter) Ask(prompt string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", prompt)

	return p.readLine()
}

func (p *stdinPrompter) readLine() (string, error) {
	line, err := bufio.NewReader(p.in).ReadString('\n')

	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}
