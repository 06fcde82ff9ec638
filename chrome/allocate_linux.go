//go:build linux

package chrome

import (
	"os"
	"os/exec"
	"syscall"
)

// envLambda is set on AWS Lambda, where the parent death signal is refused.
const envLambda = "LAMBDA_TASK_ROOT"

// killWithParent has the kernel kill the browser process when the process
// that started it dies.
func killWithParent(cmd *exec.Cmd) {
	if _, ok := os.LookupEnv(envLambda); ok {
		return
	}
	attr := cmd.SysProcAttr
	if attr == nil {
		attr = new(syscall.SysProcAttr)
		cmd.SysProcAttr = attr
	}
	attr.Pdeathsig = syscall.SIGKILL
}
