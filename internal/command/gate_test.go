package command

import (
	"context"
	"reflect"
	"testing"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

func TestResolveSplitsCustomInvocation(t *testing.T) {
	name, args := Resolve("custom", []string{"ping 127.0.0.1"})
	if name != "ping" {
		t.Fatalf("name = %q, want %q", name, "ping")
	}
	if !reflect.DeepEqual(args, []string{"127.0.0.1"}) {
		t.Fatalf("args = %v, want [127.0.0.1]", args)
	}
}

func TestResolveCustomTailPrependedToExplicitArgs(t *testing.T) {
	name, args := Resolve("custom", []string{"ping -c 1", "127.0.0.1"})
	if name != "ping" {
		t.Fatalf("name = %q, want %q", name, "ping")
	}
	want := []string{"-c", "1", "127.0.0.1"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
}

func TestResolveEmbeddedWhitespaceInCommand(t *testing.T) {
	name, args := Resolve("ping -c 1", []string{"127.0.0.1"})
	if name != "ping" {
		t.Fatalf("name = %q, want %q", name, "ping")
	}
	want := []string{"-c", "1", "127.0.0.1"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
}

func TestResolvePlainCommandUnchanged(t *testing.T) {
	name, args := Resolve("shutdown", nil)
	if name != "shutdown" || len(args) != 0 {
		t.Fatalf("got %q %v, want shutdown with no args", name, args)
	}
}

func TestResolveCustomWithoutArgs(t *testing.T) {
	name, _ := Resolve("custom", nil)
	if name != "custom" {
		t.Fatalf("name = %q, want custom passthrough", name)
	}
}

func TestAuthorizeBuiltinWhitelisted(t *testing.T) {
	p := PolicyFromLists([]string{"shutdown", "lock"}, nil)
	if err := Authorize("shutdown", p); err != nil {
		t.Fatalf("shutdown should be allowed: %v", err)
	}
	if err := Authorize("restart", p); !apperrors.IsCode(err, apperrors.CodeCommandNotWhitelisted) {
		t.Fatalf("restart should be not_whitelisted, got %v", err)
	}
}

func TestAuthorizeCustomRequiresMasterSwitchAndName(t *testing.T) {
	// Master switch on, custom name whitelisted: allowed.
	p := PolicyFromLists([]string{"custom", "ping"}, []string{"ping"})
	if err := Authorize("ping", p); err != nil {
		t.Fatalf("ping should be allowed: %v", err)
	}

	// Master switch off.
	p = PolicyFromLists([]string{"ping"}, []string{"ping"})
	if err := Authorize("ping", p); !apperrors.IsCode(err, apperrors.CodeCommandCustomDisabled) {
		t.Fatalf("want custom_disabled, got %v", err)
	}

	// Master switch on but the name itself not whitelisted.
	p = PolicyFromLists([]string{"custom"}, []string{"ping"})
	if err := Authorize("ping", p); !apperrors.IsCode(err, apperrors.CodeCommandNotWhitelisted) {
		t.Fatalf("want not_whitelisted, got %v", err)
	}
}

func TestAuthorizeUnknownCommand(t *testing.T) {
	p := PolicyFromLists([]string{"shutdown", "custom"}, []string{"ping"})
	if err := Authorize("format-disk", p); !apperrors.IsCode(err, apperrors.CodeCommandUnknown) {
		t.Fatalf("want unknown, got %v", err)
	}
}

type fakeRunner struct {
	lastName string
	lastArgs []string
	result   *Result
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string) *Result {
	f.lastName = name
	f.lastArgs = args
	return f.result
}

func TestExecutorRunsResolvedCustomCommand(t *testing.T) {
	policy := PolicyFromLists([]string{"custom", "ping"}, []string{"ping"})
	runner := &fakeRunner{result: &Result{Success: true, Stdout: "pong"}}

	var auditedName string
	exec := NewExecutor(func() Policy { return policy }, runner,
		func(name string, _ []string, _ *Result, _ error) { auditedName = name })

	res, err := exec.Execute(context.Background(), "custom", []string{"ping 127.0.0.1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || res.Stdout != "pong" {
		t.Fatalf("unexpected result %+v", res)
	}
	if runner.lastName != "ping" || !reflect.DeepEqual(runner.lastArgs, []string{"127.0.0.1"}) {
		t.Fatalf("runner saw %q %v", runner.lastName, runner.lastArgs)
	}
	if auditedName != "ping" {
		t.Fatalf("audit saw %q, want ping", auditedName)
	}
}

func TestExecutorRejectionSkipsRunner(t *testing.T) {
	policy := PolicyFromLists([]string{"shutdown"}, nil)
	runner := &fakeRunner{result: &Result{Success: true}}

	var deniedErr error
	exec := NewExecutor(func() Policy { return policy }, runner,
		func(_ string, _ []string, _ *Result, denied error) { deniedErr = denied })

	res, err := exec.Execute(context.Background(), "restart", nil)
	if res != nil {
		t.Fatalf("result should be nil on rejection, got %+v", res)
	}
	if !apperrors.IsCode(err, apperrors.CodeCommandNotWhitelisted) {
		t.Fatalf("want not_whitelisted, got %v", err)
	}
	if runner.lastName != "" {
		t.Fatal("runner should not have been invoked")
	}
	if !apperrors.IsCode(deniedErr, apperrors.CodeCommandNotWhitelisted) {
		t.Fatalf("audit denied = %v", deniedErr)
	}
}

func TestExecutorPolicyReReadPerCall(t *testing.T) {
	policy := PolicyFromLists(nil, nil)
	exec := NewExecutor(func() Policy { return policy }, &fakeRunner{result: &Result{Success: true}}, nil)

	if _, err := exec.Execute(context.Background(), "lock", nil); err == nil {
		t.Fatal("lock should be rejected before whitelist edit")
	}

	policy = PolicyFromLists([]string{"lock"}, nil)
	if _, err := exec.Execute(context.Background(), "lock", nil); err != nil {
		t.Fatalf("lock should be allowed after whitelist edit: %v", err)
	}
}
