// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides rich terminal output styling for the Kodiak CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Kodiak color palette - forest greens and warm earth tones
var (
	// Primary palette (brightest to darkest)
	ColorMossBright  = lipgloss.Color("#6FCF6A") // Bright moss - highlights, success
	ColorMossPrimary = lipgloss.Color("#4CAF50") // Primary green - main brand color
	ColorPine        = lipgloss.Color("#2E7D32") // Pine - interactive elements
	ColorForestDeep  = lipgloss.Color("#1B5E20") // Deep forest - borders, accents

	// Earth palette (backgrounds, muted elements)
	ColorBark   = lipgloss.Color("#6D4C41") // Bark brown
	ColorSlate  = lipgloss.Color("#4E5A52") // Slate - muted text, borders
	ColorNight  = lipgloss.Color("#12201A") // Night - deep backgrounds

	// Semantic colors
	ColorSuccess = lipgloss.Color("#6FCF6A")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#4E5A52")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	CodeBox  lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorMossBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorMossPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorMossBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorForestDeep).
		Padding(0, 1),
	CodeBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPine).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// IsInteractive reports whether stdout is a terminal. Styled output and
// prompts are skipped when piping to a file or another program.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Title prints a styled title line.
func Title(text string) {
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a styled success line.
func Success(text string) {
	fmt.Println(Styles.Success.Render("✓ " + text))
}

// Warning prints a styled warning line.
func Warning(text string) {
	fmt.Println(Styles.Warning.Render("! " + text))
}

// Error prints a styled error line to stderr.
func Error(text string) {
	fmt.Fprintln(os.Stderr, Styles.Error.Render("✗ "+text))
}

// Muted prints a de-emphasized line.
func Muted(text string) {
	fmt.Println(Styles.Muted.Render(text))
}

// Code prints source text in a bordered box.
func Code(source string) {
	fmt.Println(Styles.CodeBox.Render(source))
}
