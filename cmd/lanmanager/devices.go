package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/landevice/lanmanager/internal/config"
	"github.com/landevice/lanmanager/internal/storage"
)

func runDevicesList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("devices list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	jsonOutput := fs.Bool("json", false, "Output in JSON format")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	known, err := storage.OpenKnownDevices(cfg.KnownDevices)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	devices := known.List()

	if *jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(devices)
		return 0
	}

	if len(devices) == 0 {
		fmt.Fprintln(stdout, "No known devices. Run 'lanmanager serve' or 'lanmanager discover' first.")
		return 0
	}

	fmt.Fprintf(stdout, "%-24s %-18s %-6s %-10s %s\n", "NAME", "ADDRESS", "PORT", "VERSION", "LAST SEEN")
	for _, d := range devices {
		fmt.Fprintf(stdout, "%-24s %-18s %-6d %-10s %s\n",
			d.Name, d.Address, d.Port, d.Version, d.LastSeen.Format("2006-01-02 15:04"))
	}
	return 0
}
