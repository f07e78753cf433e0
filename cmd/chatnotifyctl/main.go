package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/chatnotify/internal/client"
	"github.com/matheus3301/chatnotify/internal/config"
	"github.com/matheus3301/chatnotify/internal/paths"
	"github.com/spf13/cobra"
)

const callTimeout = 10 * time.Second

var (
	profileFlag string
	jsonFlag    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatnotifyctl",
		Short:         "Control a running chatnotify worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")

	root.AddCommand(
		newSetUserCmd(),
		newCommandCmd("sign-out", "Sign out and stop delivery", "SIGN_OUT"),
		newCommandCmd("enable", "Resume delivery for the current user", "ENABLE"),
		newCommandCmd("disable", "Stop delivery without signing out", "DISABLE"),
		newPushCmd(),
		newClickCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newWindowCmd(),
		newWatchCmd(),
		newConfigCmd(),
	)
	return root
}

// resolveProfile mirrors the worker: flag, then configured default.
func resolveProfile() (string, error) {
	configured := ""
	if cfg, err := config.Load(paths.ConfigPath()); err == nil {
		configured = cfg.DefaultProfile
	}
	profile := paths.ResolveProfile(profileFlag, configured)
	if err := paths.ValidateProfile(profile); err != nil {
		return "", err
	}
	return profile, nil
}

func connect() (*client.Client, string, error) {
	profile, err := resolveProfile()
	if err != nil {
		return nil, "", err
	}
	c, err := client.New(paths.SocketPath(profile))
	if err != nil {
		return nil, "", fmt.Errorf("cannot connect to worker for profile %q: %w", profile, err)
	}
	return c, profile, nil
}

func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
