package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.3.0" ./cmd/lanmanager
var Version = "dev"

const usage = `lanmanager - password-gated remote control for devices on your LAN

Usage:
  lanmanager <command> [options]

Commands:
  serve            Start the device host (HTTP API, WebSocket, mDNS)
  discover         Browse the LAN for other devices
  control          Run a command on a remote device
  password set     Set the access password
  password change  Change the access password
  password clear   Remove the access password (disables auth)
  devices list     List devices seen before

Run 'lanmanager <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "serve":
		return runServe(args[2:], stdout, stderr)
	case "discover":
		return runDiscover(args[2:], stdout, stderr)
	case "control":
		return runControl(args[2:], stdout, stderr)
	case "password":
		if len(args) < 3 {
			fmt.Fprintln(stdout, "Usage: lanmanager password <set|change|clear>")
			return 1
		}
		switch args[2] {
		case "set":
			return runPasswordSet(args[3:], stdout, stderr)
		case "change":
			return runPasswordChange(args[3:], stdout, stderr)
		case "clear":
			return runPasswordClear(args[3:], stdout, stderr)
		default:
			fmt.Fprintf(stdout, "Unknown password command: %s\n", args[2])
			return 1
		}
	case "devices":
		if len(args) < 3 || args[2] != "list" {
			fmt.Fprintln(stdout, "Usage: lanmanager devices list")
			return 1
		}
		return runDevicesList(args[3:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "lanmanager %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
