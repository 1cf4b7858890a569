package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/landevice/lanmanager/internal/client"
	apperrors "github.com/landevice/lanmanager/internal/errors"
)

const controlUsage = `Usage: lanmanager control [options] <host> <command> [args...]

Runs a command on a remote device. The command must be on the remote
device's whitelist.

Options:
  --port <n>         Remote API port (default: 8080)
  --password <pw>    Password for devices that require login
  --timeout <dur>    Request timeout (default: 30s)

Examples:
  lanmanager control 192.168.1.50 lock
  lanmanager control --password secret 192.168.1.50 ping 192.168.1.1
`

func runControl(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("control", flag.ContinueOnError)
	port := fs.Int("port", 8080, "Remote API port")
	password := fs.String("password", "", "Password for devices that require login")
	timeout := fs.Duration("timeout", 30*time.Second, "Request timeout")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	rest := fs.Args()
	if len(rest) < 2 {
		fmt.Fprint(stdout, controlUsage)
		return 1
	}
	host, cmd, cmdArgs := rest[0], rest[1], rest[2:]

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(host, *port)

	health, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: cannot reach %s: %v\n", host, err)
		return 1
	}
	fmt.Fprintf(stdout, "Connected to %s (%s)\n", health.Device, health.Version)

	if health.AuthRequired {
		if *password == "" {
			fmt.Fprintln(stderr, "Error: device requires a password (use --password)")
			return 1
		}
		if err := c.Login(ctx, *password); err != nil {
			fmt.Fprintf(stderr, "Error: login failed: %v\n", err)
			return 1
		}
	}

	res, err := c.Execute(ctx, cmd, cmdArgs)
	if err != nil {
		if apperrors.IsAuthExpired(err) {
			fmt.Fprintln(stderr, "Error: session expired, try again")
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}

	if res.Stdout != "" {
		fmt.Fprint(stdout, res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprint(stderr, res.Stderr)
	}
	if !res.Success {
		fmt.Fprintf(stderr, "Command failed (exit code %d)\n", res.ExitCode)
		return 1
	}
	return 0
}
