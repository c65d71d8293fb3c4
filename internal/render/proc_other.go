//go:build !unix

package render

import "os/exec"

// configureProcess keeps the default exec.CommandContext behavior, which
// kills only the worker process.
func configureProcess(cmd *exec.Cmd) {}
