// Package command implements the authorization gate between authenticated
// callers and the OS action backend. The gate is a pure function over a
// policy snapshot: it resolves a requested command into a canonical
// (name, args) form, then decides whether the backend may be invoked.
// Execution itself lives behind the Runner interface.
package command

import (
	"fmt"
	"strings"

	apperrors "github.com/landevice/lanmanager/internal/errors"
)

// KnownBuiltins are the command names the executor can dispatch natively.
// Anything else must be registered as a custom command to be recognized.
var KnownBuiltins = map[string]bool{
	"shutdown":   true,
	"restart":    true,
	"sleep":      true,
	"lock":       true,
	"systeminfo": true,
	"tasklist":   true,
}

// CustomSwitch is the whitelist entry acting as the master switch for all
// custom commands.
const CustomSwitch = "custom"

// Policy is an immutable authorization snapshot. Gate functions only read
// it; no locking is required.
type Policy struct {
	// BuiltinAllow holds the enabled built-in command names, plus the
	// "custom" master switch when custom commands are permitted at all.
	BuiltinAllow map[string]bool

	// CustomAllow holds the custom command names the caller may trigger.
	CustomAllow map[string]bool

	// CustomNames holds every registered custom command name, allowed or
	// not. Membership here routes a name down the custom rules.
	CustomNames map[string]bool
}

// PolicyFromLists builds a Policy from the config representation, where one
// whitelist carries both built-in names and allowed custom names.
func PolicyFromLists(whitelist, customCommands []string) Policy {
	p := Policy{
		BuiltinAllow: make(map[string]bool, len(whitelist)),
		CustomAllow:  make(map[string]bool, len(whitelist)),
		CustomNames:  make(map[string]bool, len(customCommands)),
	}
	for _, name := range whitelist {
		p.BuiltinAllow[name] = true
		p.CustomAllow[name] = true
	}
	for _, name := range customCommands {
		p.CustomNames[name] = true
	}
	return p
}

// Resolve normalizes a requested command into the canonical name and
// argument list used for authorization and dispatch.
//
// Splitting rule: a "custom" invocation carries the real command in its
// first argument, possibly as a single token like "ping 127.0.0.1"; the
// token is split on whitespace into a head (the effective name) and a tail
// prepended to the remaining explicit arguments. A command string that
// itself contains whitespace is split the same way. This lets a UI send
// either {command:"ping", args:["127.0.0.1"]} or
// {command:"custom", args:["ping 127.0.0.1"]} and reach the same decision.
func Resolve(command string, args []string) (string, []string) {
	if command == CustomSwitch {
		if len(args) == 0 {
			return command, nil
		}
		head, tail := splitToken(args[0])
		return head, append(tail, args[1:]...)
	}

	if strings.ContainsAny(command, " \t") {
		head, tail := splitToken(command)
		return head, append(tail, args...)
	}

	return command, args
}

// splitToken splits one whitespace-separated token into its head and tail.
func splitToken(token string) (string, []string) {
	fields := strings.Fields(token)
	if len(fields) == 0 {
		return token, nil
	}
	return fields[0], fields[1:]
}

// Authorize decides whether the resolved command name may be executed under
// the policy. Returns nil when allowed, or a typed error:
//
//   - custom name with the master switch off -> command.custom_disabled
//   - custom name not whitelisted -> command.not_whitelisted
//   - builtin name not whitelisted -> command.not_whitelisted
//   - anything else -> command.unknown
func Authorize(name string, policy Policy) error {
	if policy.CustomNames[name] {
		if !policy.BuiltinAllow[CustomSwitch] {
			return apperrors.New(apperrors.CodeCommandCustomDisabled,
				"Custom commands are disabled. Please enable 'Custom Commands' in the whitelist.")
		}
		if !policy.CustomAllow[name] {
			return apperrors.New(apperrors.CodeCommandNotWhitelisted,
				fmt.Sprintf("Command '%s' is not in whitelist", name))
		}
		return nil
	}

	if KnownBuiltins[name] {
		if !policy.BuiltinAllow[name] {
			return apperrors.New(apperrors.CodeCommandNotWhitelisted,
				fmt.Sprintf("Command '%s' is not in whitelist", name))
		}
		return nil
	}

	return apperrors.New(apperrors.CodeCommandUnknown,
		fmt.Sprintf("Unknown command '%s'", name))
}
