//go:build linux

package chrome

import (
	"os"
	"os/exec"
	"syscall"
	"testing"
)

func TestKillWithParent(t *testing.T) {
	// Restored when the test ends.
	t.Setenv(envLambda, "")
	os.Unsetenv(envLambda)

	cmd := exec.Command("true")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	killWithParent(cmd)
	if cmd.SysProcAttr.Pdeathsig != syscall.SIGKILL {
		t.Errorf("Pdeathsig = %v, want %v", cmd.SysProcAttr.Pdeathsig, syscall.SIGKILL)
	}
	if !cmd.SysProcAttr.Setpgid {
		t.Error("existing SysProcAttr fields were dropped")
	}

	cmd = exec.Command("true")
	killWithParent(cmd)
	if cmd.SysProcAttr == nil || cmd.SysProcAttr.Pdeathsig != syscall.SIGKILL {
		t.Errorf("SysProcAttr = %+v, want Pdeathsig set", cmd.SysProcAttr)
	}

	t.Setenv(envLambda, "/var/task")
	cmd = exec.Command("true")
	killWithParent(cmd)
	if cmd.SysProcAttr != nil {
		t.Errorf("SysProcAttr = %+v on AWS Lambda, want none", cmd.SysProcAttr)
	}
}
