package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/landevice/lanmanager/internal/auth"
	"github.com/landevice/lanmanager/internal/config"
)

// loadConfigForPassword loads the config for password commands, creating the
// default file location if no config exists yet.
func loadConfigForPassword(path string, stderr io.Writer) (*config.Config, int) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}
	return cfg, 0
}

// readPassword prompts for a password without echo when stdin is a
// terminal; otherwise it reads one line, which keeps the command scriptable.
func readPassword(prompt string, stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		defer fmt.Fprintln(stdout)
		data, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return line, nil
}

// credentialStore builds a store bound to the config file so every mutation
// persists immediately.
func credentialStore(cfg *config.Config) *auth.CredentialStore {
	return auth.NewCredentialStore(cfg.PasswordHash, func(hash string) error {
		cfg.PasswordHash = hash
		return cfg.Save()
	})
}

func runPasswordSet(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("password set", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, code := loadConfigForPassword(*configPath, stderr)
	if cfg == nil {
		return code
	}
	creds := credentialStore(cfg)

	password, err := readPassword("New password: ", stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	confirm, err := readPassword("Confirm password: ", stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if password != confirm {
		fmt.Fprintln(stderr, "Error: passwords do not match")
		return 1
	}

	if err := creds.Set(password); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Password set. Restart a running host to apply it.")
	return 0
}

func runPasswordChange(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("password change", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, code := loadConfigForPassword(*configPath, stderr)
	if cfg == nil {
		return code
	}
	creds := credentialStore(cfg)

	if !creds.IsSet() {
		fmt.Fprintln(stderr, "Error: no password is set (use 'password set')")
		return 1
	}

	current, err := readPassword("Current password: ", stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !creds.Verify(current) {
		fmt.Fprintln(stderr, "Error: invalid password")
		return 1
	}

	password, err := readPassword("New password: ", stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := creds.Set(password); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Password changed. Restart a running host to apply it.")
	return 0
}

func runPasswordClear(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("password clear", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, code := loadConfigForPassword(*configPath, stderr)
	if cfg == nil {
		return code
	}
	creds := credentialStore(cfg)

	if err := creds.Clear(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Password cleared. The device no longer requires login.")
	return 0
}
