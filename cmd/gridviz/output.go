package main

import (
	"fmt"
	"os"
)

// ANSI styles for stderr messages. Disabled wholesale by --no-color.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func styled(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

func printMarked(code, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, styled(code, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMarked(ansiGreen, "✓", format, args...) }
func printError(format string, args ...any)   { printMarked(ansiRed, "✗", format, args...) }
func printWarning(format string, args ...any) { printMarked(ansiYellow, "⚠", format, args...) }

// printStatus renders one "Label: value" line of the status report.
func printStatus(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", styled(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
