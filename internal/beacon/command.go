package beacon

import (
	"os/exec"
	"strings"
)

// runCommand executes an external command for the commentcmd and infocmd
// options and returns its output flattened to a single trimmed line.
// Failures are never fatal; callers log and carry on.
func runCommand(cmdline string) (string, error) {
	var out, err = exec.Command("/bin/sh", "-c", cmdline).Output()
	if err != nil {
		return "", err
	}

	var s = string(out)
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s), nil
}
