package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunNoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"lanmanager"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "Usage:") {
		t.Fatal("usage not printed")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"lanmanager", "frobnicate"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "Unknown command: frobnicate") {
		t.Fatalf("output: %s", stdout.String())
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"lanmanager", "--version"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "lanmanager") {
		t.Fatalf("output: %s", stdout.String())
	}
}

func TestPasswordSubcommandRequired(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"lanmanager", "password"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "password <set|change|clear>") {
		t.Fatalf("output: %s", stdout.String())
	}
}

func TestControlRequiresHostAndCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"lanmanager", "control"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "lanmanager control") {
		t.Fatalf("output: %s", stdout.String())
	}
}
