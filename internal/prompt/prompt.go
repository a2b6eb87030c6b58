// Package prompt asks the user for a commit message interactively when a
// CLI command (describe) omits -m and stdout is a terminal; in
// scripts (no TTY) it falls back to a plain stdin read so piped input
// keeps working.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Message returns a commit message, sourced interactively via huh when
// out is a terminal, otherwise read as a single line from in.
func Message(in io.Reader, out *os.File, title string) (string, error) {
	if term.IsTerminal(int(out.Fd())) {
		return messageInteractive(title)
	}
	return messageFromReader(in)
}

func messageInteractive(title string) (string, error) {
	var msg string
	field := huh.NewInput().
		Title(title).
		Validate(func(s string) error {
			if s == "" {
				return fmt.Errorf("message must not be empty")
			}
			return nil
		}).
		Value(&msg)

	form := huh.NewForm(huh.NewGroup(field))
	if err := form.Run(); err != nil {
		return "", err
	}
	return msg, nil
}

func messageFromReader(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no message provided on stdin")
	}
	return scanner.Text(), nil
}
