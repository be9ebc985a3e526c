package render

import (
	"fmt"
	"strings"

	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

// ColorMode is the output.color setting
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode accepts auto, always and never; empty means auto
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return "", fmt.Errorf("unknown color mode %q (want auto, always or never)", s)
	}
}

// UseColor resolves a mode against a file descriptor. Auto colours only terminals.
func UseColor(mode ColorMode, fd uintptr) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return term.IsTerminal(int(fd))
	}
}

// Band returns the ANSI colour for a percent: green from 80, yellow from 50, red below
func Band(percent float64) string {
	switch {
	case percent >= 80:
		return ansiGreen
	case percent >= 50:
		return ansiYellow
	default:
		return ansiRed
	}
}

func (r *Renderer) colorize(percent float64, text string) string {
	if !r.opts.Color {
		return text
	}
	return Band(percent) + text + ansiReset
}
