package command

import (
	"context"
	"log"
	"strings"
	"time"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

// DefaultTimeout bounds a single command execution.
const DefaultTimeout = 30 * time.Second

// AuditFunc records one authorization decision and its outcome. denied is
// non-nil when the gate rejected the command; result is nil in that case.
type AuditFunc func(name string, args []string, result *Result, denied error)

// Executor ties the gate to a runner. The policy is re-read on every call so
// whitelist edits take effect without restarting anything.
type Executor struct {
	policy  func() Policy
	runner  Runner
	timeout time.Duration
	audit   AuditFunc
}

// NewExecutor builds an executor. policy must not be nil; runner defaults to
// ShellRunner and audit may be nil.
func NewExecutor(policy func() Policy, runner Runner, audit AuditFunc) *Executor {
	if runner == nil {
		runner = ShellRunner{}
	}
	return &Executor{
		policy:  policy,
		runner:  runner,
		timeout: DefaultTimeout,
		audit:   audit,
	}
}

// Execute resolves, authorizes, and runs one command. On rejection it
// returns the typed gate error and no result; callers surface the error
// message to the requester. On execution the result carries the outcome
// even when the process failed.
func (e *Executor) Execute(ctx context.Context, command string, args []string) (*Result, error) {
	name, resolved := Resolve(command, args)

	if err := Authorize(name, e.policy()); err != nil {
		log.Printf("command: rejected %q: %s", name, apperrors.GetMessage(err))
		e.record(name, resolved, nil, err)
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	log.Printf("command: executing %q args=%q", name, strings.Join(resolved, " "))
	res := e.runner.Run(runCtx, name, resolved)
	e.record(name, resolved, res, nil)
	return res, nil
}

func (e *Executor) record(name string, args []string, res *Result, denied error) {
	if e.audit == nil {
		return
	}
	e.audit(name, args, res, denied)
}
