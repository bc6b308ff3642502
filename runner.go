package main

import (
	"bytes"
	"os/exec"
)

// commandRunner abstracts the external processes this tool shells out to
// (wp-cli for the WordPress probe, git for the changes section). Tests
// substitute a stub so probe fallback tiers can be exercised without the
// tools installed.
type commandRunner interface {
	// Run executes name with args in dir and returns stdout. A non-zero
	// exit status is returned as an error.
	Run(dir, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(dir, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		logger.Debug("external command failed",
			"command", name, "err", err, "stderr", stderr.String())
		return nil, err
	}
	return stdout.Bytes(), nil
}
