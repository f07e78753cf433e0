package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/chatnotify/internal/config"
	"github.com/matheus3301/chatnotify/internal/paths"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func sendCommand(fields map[string]any) error {
	c, _, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	in, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	ctx, cancel := callContext()
	defer cancel()
	_, err = c.Worker.Command(ctx, in)
	return err
}

func newSetUserCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "set-user <user-id>",
		Short: "Sign in a user and start delivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			fields := map[string]any{"type": "SET_USER", "userId": args[0]}
			if token != "" {
				fields["token"] = token
			}
			if err := sendCommand(fields); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "access token for the backend")
	return cmd
}

func newCommandCmd(use, short, typ string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := sendCommand(map[string]any{"type": typ}); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push [payload|-]",
		Short: "Deliver a push payload (reads stdin with - or no argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var payload []byte
			if len(args) == 1 && args[0] != "-" {
				payload = []byte(args[0])
			} else {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				payload = data
			}

			c, _, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := callContext()
			defer cancel()
			if _, err := c.Worker.Push(ctx, wrapperspb.Bytes(payload)); err != nil {
				return err
			}
			fmt.Println("Delivered")
			return nil
		},
	}
}

func newClickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "click <tag>",
		Short: "Act as if the notification with tag was clicked",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := callContext()
			defer cancel()
			_, err = c.Worker.Click(ctx, wrapperspb.String(args[0]))
			return err
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worker status",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, _, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := callContext()
			defer cancel()
			resp, err := c.Worker.Status(ctx, &emptypb.Empty{})
			if err != nil {
				return err
			}
			st := resp.AsMap()
			if jsonFlag {
				return outputJSON(st)
			}

			user := "(signed out)"
			if signedIn, _ := st["signed_in"].(bool); signedIn {
				user, _ = st["user"].(string)
			}
			uptimeMs, _ := st["uptime_ms"].(float64)

			fmt.Printf("Profile:    %s\n", st["profile"])
			fmt.Printf("State:      %s\n", st["state"])
			fmt.Printf("Strategy:   %s\n", st["strategy"])
			fmt.Printf("Enabled:    %v\n", st["enabled"])
			fmt.Printf("User:       %s\n", user)
			fmt.Printf("Uptime:     %s\n", (time.Duration(uptimeMs) * time.Millisecond).Round(time.Second))
			fmt.Printf("Windows:    %s\n", count(st["windows"]))
			fmt.Printf("Shown:      %s\n", count(st["shown"]))
			fmt.Printf("Suppressed: %s\n", count(st["suppressed"]))
			fmt.Printf("Duplicates: %s\n", count(st["duplicates"]))
			if n, ok := st["journaled"]; ok {
				fmt.Printf("Journaled:  %s\n", count(n))
			}
			if last, ok := st["last_poll"].(float64); ok {
				fmt.Printf("Last poll:  %s (%s failures)\n", humanize.Time(time.Unix(int64(last), 0)), count(st["poll_failures"]))
			}
			return nil
		},
	}
}

func count(v any) string {
	f, _ := v.(float64)
	return humanize.Comma(int64(f))
}

func newHistoryCmd() *cobra.Command {
	var limit int32
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently shown notifications",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, _, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := callContext()
			defer cancel()
			resp, err := c.Worker.History(ctx, wrapperspb.Int32(limit))
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(resp.AsMap())
			}

			items := resp.GetFields()["notifications"].GetListValue().GetValues()
			if len(items) == 0 {
				fmt.Println("No notifications shown yet.")
				return nil
			}
			for _, item := range items {
				f := item.GetStructValue().GetFields()
				when := f["shown_at"].GetStringValue()
				if t, err := time.Parse(time.RFC3339, when); err == nil {
					when = humanize.Time(t)
				}
				fmt.Printf("%-16s %-8s %s: %s\n", when, f["strategy"].GetStringValue(), f["title"].GetStringValue(), f["body"].GetStringValue())
			}
			return nil
		},
	}
	cmd.Flags().Int32Var(&limit, "limit", 20, "maximum entries to show")
	return cmd
}

func newWindowCmd() *cobra.Command {
	window := &cobra.Command{
		Use:   "window",
		Short: "Manage application windows known to the worker",
	}

	var url string
	var focused bool
	attach := &cobra.Command{
		Use:   "attach",
		Short: "Register a window and print focus requests until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, _, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			in, err := structpb.NewStruct(map[string]any{"url": url, "focused": focused, "controlled": true})
			if err != nil {
				return err
			}
			id, err := c.Worker.ReportWindow(ctx, in)
			if err != nil {
				return err
			}
			fmt.Printf("Window %s attached\n", id.GetValue())

			stream, err := c.Worker.WatchWindow(ctx, id)
			if err != nil {
				return err
			}
			for {
				msg, err := stream.Recv()
				if err != nil {
					if ctx.Err() != nil || errors.Is(err, io.EOF) {
						break
					}
					return err
				}
				fmt.Printf("focus requested: %s\n", msg.GetFields()["url"].GetStringValue())
			}

			closeCtx, cancel := callContext()
			defer cancel()
			_, _ = c.Worker.CloseWindow(closeCtx, id)
			return nil
		},
	}
	attach.Flags().StringVar(&url, "url", "", "window URL")
	attach.Flags().BoolVar(&focused, "focused", false, "report the window as focused")
	_ = attach.MarkFlagRequired("url")

	window.AddCommand(attach)
	return window
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [prefix]",
		Short: "Stream worker events (session., notification., window.) until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}

			c, _, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stream, err := c.Worker.WatchEvents(ctx, wrapperspb.String(prefix))
			if err != nil {
				return err
			}
			for {
				msg, err := stream.Recv()
				if err != nil {
					if ctx.Err() != nil || errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}
				ev := msg.AsMap()
				if jsonFlag {
					if err := outputJSON(ev); err != nil {
						return err
					}
					continue
				}
				fmt.Printf("%s %-24s %s\n", eventTime(ev["at"]), ev["kind"], eventSummary(ev))
			}
		},
	}
}

func eventTime(v any) string {
	s, _ := v.(string)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.Local().Format(time.TimeOnly)
}

func eventSummary(ev map[string]any) string {
	switch {
	case ev["to"] != nil:
		return fmt.Sprintf("%v -> %v", ev["from"], ev["to"])
	case ev["reason"] != nil:
		return fmt.Sprintf("message %v (%v)", ev["message_id"], ev["reason"])
	case ev["title"] != nil:
		return fmt.Sprintf("[%v] %v: %v", ev["tag"], ev["title"], ev["body"])
	case ev["window_id"] != nil:
		return fmt.Sprintf("window %v %v", ev["window_id"], ev["url"])
	case ev["user"] != nil:
		return fmt.Sprintf("user %v", ev["user"])
	}
	return ""
}

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := paths.ConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg, err := config.Default()
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}
