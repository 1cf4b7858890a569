package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/landevice/lanmanager/internal/discovery"
)

func runDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 3*time.Second, "How long to browse")
	jsonOutput := fs.Bool("json", false, "Output in JSON format")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	registry := discovery.NewRegistry()
	browser := discovery.NewBrowser(registry)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := browser.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	<-ctx.Done()
	browser.Stop()

	devices := registry.List()

	if *jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(devices)
		return 0
	}

	if len(devices) == 0 {
		fmt.Fprintln(stdout, "No devices found.")
		return 0
	}

	fmt.Fprintf(stdout, "%-24s %-18s %-6s %-10s %s\n", "NAME", "ADDRESS", "PORT", "VERSION", "AUTH")
	for _, d := range devices {
		auth := "open"
		if d.AuthRequired {
			auth = "password"
		}
		fmt.Fprintf(stdout, "%-24s %-18s %-6d %-10s %s\n", d.Name, d.Address, d.Port, d.Version, auth)
	}
	return 0
}
