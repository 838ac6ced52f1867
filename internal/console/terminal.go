// Package console is the interactive terminal front end of the scheduling engine.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/techdesk/internal/scheduling"
)

// Terminal reads operator answers line by line and prints styled notices.
type Terminal struct {
	in     *bufio.Reader
	out    io.Writer
	styles styles
}

var _ scheduling.Prompter = (*Terminal)(nil)

// NewTerminal builds a prompter over in and out. Colors are chosen for out, so
// a redirected output gets plain text.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:     bufio.NewReader(in),
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

// Ask prints prompt and returns the trimmed answer. End of input is io.EOF.
func (t *Terminal) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, t.styles.prompt.Render(prompt)+" ")
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question until it gets an answer.
func (t *Terminal) Confirm(ctx context.Context, prompt string) (bool, error) {
	for {
		answer, err := t.Ask(ctx, prompt+" [y/n]")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(t.out, t.styles.faint.Render("please answer y or n"))
	}
}

// Choose lists options and returns the zero-based index picked. A blank answer
// returns -1.
func (t *Terminal) Choose(ctx context.Context, prompt string, options []string) (int, error) {
	fmt.Fprintln(t.out, t.styles.heading.Render(prompt))
	for i, option := range options {
		fmt.Fprintf(t.out, "  %s %s\n", t.styles.faint.Render(fmt.Sprintf("%2d)", i+1)), option)
	}
	for {
		answer, err := t.Ask(ctx, fmt.Sprintf("choice (1-%d, blank to cancel):", len(options)))
		if err != nil {
			return -1, err
		}
		if answer == "" {
			return -1, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintln(t.out, t.styles.faint.Render("not a valid choice"))
	}
}

// Notify prints a message styled by its severity.
func (t *Terminal) Notify(level scheduling.NoticeLevel, message string) {
	switch level {
	case scheduling.NoticeCritical:
		fmt.Fprintln(t.out, t.styles.critical.Render("CRITICAL\n"+message))
	case scheduling.NoticeWarning:
		fmt.Fprintln(t.out, t.styles.warningTag.Render("WARNING")+" "+t.styles.warning.Render(message))
	default:
		fmt.Fprintln(t.out, message)
	}
}
