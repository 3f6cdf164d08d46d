package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLinesInOrder checks that every expected line occurs in output, each
// after the previous one. Other lines may appear in between.
func AssertLinesInOrder(t *testing.T, output string, expected ...string) {
	t.Helper()

	lines := strings.Split(output, "\n")
	pos := 0
	for _, want := range expected {
		found := false
		for pos < len(lines) {
			line := lines[pos]
			pos++
			if line == want {
				found = true
				break
			}
		}
		require.True(t, found, "expected line %q in order, output was:\n%s", want, output)
	}
}

// ScopeBlocks splits output into the lines printed between each ">>> scope"
// and "<<< scope" pair. Log records written to the same stream are dropped.
func ScopeBlocks(output string) [][]string {
	var blocks [][]string
	var cur []string
	in := false
	for _, line := range strings.Split(output, "\n") {
		switch {
		case line == ">>> scope":
			in = true
			cur = []string{}
		case line == "<<< scope":
			if in {
				blocks = append(blocks, cur)
			}
			in = false
		case in && !isLogLine(line):
			cur = append(cur, line)
		}
	}
	return blocks
}

func isLogLine(line string) bool {
	return strings.HasPrefix(line, "time=") || strings.HasPrefix(line, "{\"time\"")
}
