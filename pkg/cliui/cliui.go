// Package cliui provides reusable terminal UI helpers (spinners, step
// indicators, key/value styles) for insights CLI commands.
package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	WarnMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("!")

	StepStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	NameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	DimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	WarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Warnings renders one warning line per message, or "" when there are none.
func Warnings(messages []string) string {
	if len(messages) == 0 {
		return ""
	}

	var b strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&b, "  %s %s\n", WarnMark, WarnStyle.Render(msg))
	}
	return b.String()
}
