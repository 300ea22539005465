package main

import (
	"strings"
	"testing"
)

func TestStyled(t *testing.T) {
	orig := noColor
	t.Cleanup(func() { noColor = orig })

	noColor = false
	got := styled(ansiCyan, "abc12345")
	if !strings.HasPrefix(got, ansiCyan) || !strings.HasSuffix(got, ansiReset) {
		t.Errorf("styled = %q, want cyan-wrapped text", got)
	}

	noColor = true
	if got := styled(ansiCyan, "abc12345"); got != "abc12345" {
		t.Errorf("styled with color disabled = %q, want bare text", got)
	}
}
