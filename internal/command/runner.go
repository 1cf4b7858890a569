package command

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"
)

// Result is the outcome of one command execution, shaped for the wire.
type Result struct {
	Success         bool   `json:"success"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	ExitCode        int    `json:"exit_code"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// Runner executes an authorized command and reports its outcome. The default
// implementation shells out to the OS; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args []string) *Result
}

// ShellRunner executes commands as OS processes. Built-in names are mapped
// to platform equivalents; anything else runs verbatim.
type ShellRunner struct{}

// builtinArgv maps a built-in name to the process argv for this platform.
// Returns ok=false when the name has no native mapping and should run as-is.
func builtinArgv(name string) ([]string, bool) {
	switch runtime.GOOS {
	case "windows":
		switch name {
		case "shutdown":
			return []string{"shutdown", "/s", "/t", "0"}, true
		case "restart":
			return []string{"shutdown", "/r", "/t", "0"}, true
		case "sleep":
			return []string{"rundll32.exe", "powrprof.dll,SetSuspendState", "0,1,0"}, true
		case "lock":
			return []string{"rundll32.exe", "user32.dll,LockWorkStation"}, true
		case "systeminfo":
			return []string{"systeminfo"}, true
		case "tasklist":
			return []string{"tasklist"}, true
		}
	case "darwin":
		switch name {
		case "shutdown":
			return []string{"osascript", "-e", `tell app "System Events" to shut down`}, true
		case "restart":
			return []string{"osascript", "-e", `tell app "System Events" to restart`}, true
		case "sleep":
			return []string{"pmset", "sleepnow"}, true
		case "lock":
			return []string{"pmset", "displaysleepnow"}, true
		case "systeminfo":
			return []string{"system_profiler", "SPSoftwareDataType"}, true
		case "tasklist":
			return []string{"ps", "aux"}, true
		}
	default: // linux and friends
		switch name {
		case "shutdown":
			return []string{"systemctl", "poweroff"}, true
		case "restart":
			return []string{"systemctl", "reboot"}, true
		case "sleep":
			return []string{"systemctl", "suspend"}, true
		case "lock":
			return []string{"loginctl", "lock-session"}, true
		case "systeminfo":
			return []string{"uname", "-a"}, true
		case "tasklist":
			return []string{"ps", "aux"}, true
		}
	}
	return nil, false
}

// Run executes the command and captures stdout, stderr, exit code, and wall
// time. A non-zero exit or a start failure yields Success=false; start
// failures report exit code -1 with the error text in Stderr.
func (ShellRunner) Run(ctx context.Context, name string, args []string) *Result {
	argv := append([]string{name}, args...)
	if mapped, ok := builtinArgv(name); ok {
		argv = append(mapped, args...)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	res := &Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExecutionTimeMS: elapsed,
	}

	switch {
	case err == nil:
		res.Success = true
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
	}
	return res
}
