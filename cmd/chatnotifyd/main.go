package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/chatnotify/internal/config"
	"github.com/matheus3301/chatnotify/internal/daemon"
	"github.com/matheus3301/chatnotify/internal/paths"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	configFlag := flag.String("config", "", "config file path (default "+paths.ConfigPath()+")")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = paths.ConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	profile := paths.ResolveProfile(*profileFlag, cfg.DefaultProfile)
	if err := paths.ValidateProfile(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Profile: profile, Config: cfg}),
	)

	app.Run()
}
