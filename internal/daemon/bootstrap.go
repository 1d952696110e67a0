package daemon

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

// StartDaemon spawns a detached `daemon` process for the control directory
// at root and returns its PID.
func StartDaemon(root string, interval time.Duration, logFile string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartDaemonWithPath(executable, root, interval, logFile)
}

// StartDaemonWithPath spawns binaryPath as a detached daemon.
func StartDaemonWithPath(binaryPath, root string, interval time.Duration, logFile string) (int, error) {
	cmd := exec.Command(binaryPath, DaemonArgs(root, interval, logFile)...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// The child outlives us; do not wait for it.
	_ = cmd.Process.Release()
	return pid, nil
}

// DaemonArgs builds the command line of a foreground daemon.
func DaemonArgs(root string, interval time.Duration, logFile string) []string {
	args := []string{"daemon", "--root", root}
	if interval > 0 {
		args = append(args, "--interval", interval.String())
	}
	if logFile != "" {
		args = append(args, "--log-file", logFile)
	}
	return args
}
