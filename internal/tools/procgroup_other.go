//go:build !unix

package tools

import "os/exec"

func configureProcessGroup(cmd *exec.Cmd) {}
