//go:build !linux

package chrome

import "os/exec"

func killWithParent(*exec.Cmd) {}
