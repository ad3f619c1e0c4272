// Command crier browses the Broadcastify Calls platform from the
// terminal: archived block queries, bulk audio downloads, and a live
// tail of a talkgroup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/radiolurker/crier/internal/app"
	"github.com/radiolurker/crier/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "crier: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "crier",
		Short:         "Browse Broadcastify Calls from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "override config path (default ~/.config/crier/config.toml)")

	root.AddCommand(newLiveCmd(&configPath))
	root.AddCommand(newArchiveCmd(&configPath))
	root.AddCommand(newDownloadCmd(&configPath))
	root.AddCommand(newBrowseCmd(&configPath))
	return root
}

func newBrowseCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <system>",
		Short: "List a radio system and its talkgroups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			system, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid system id %q", args[0])
			}

			client, err := newClient(*configPath)
			if err != nil {
				return err
			}
			defer closeClient(client)

			sys, err := client.Directory.System(cmd.Context(), system)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%d)\n%s  %s\n\n", sys.Name, sys.ID, sys.Type, sys.Location)

			tgs, err := client.Directory.Talkgroups(cmd.Context(), system)
			if err != nil {
				return err
			}
			if len(tgs) == 0 {
				fmt.Println("no published talkgroups")
				return nil
			}
			for _, tg := range tgs {
				enc := " "
				if tg.Encrypted {
					enc = "E"
				}
				fmt.Printf("%7d %s  %-24s %s\n", tg.ID, enc, tg.Name, tg.Description)
			}
			return nil
		},
	}
	return cmd
}

func newLiveCmd(configPath *string) *cobra.Command {
	var prefsPath string
	var poll int

	cmd := &cobra.Command{
		Use:   "live [system talkgroup]",
		Short: "Live-tail a talkgroup's call feed",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.Options{ConfigPath: *configPath, PrefsPath: prefsPath, PollEvery: poll}
			if len(args) == 2 {
				system, talkgroup, err := parseGroup(args[0], args[1])
				if err != nil {
					return err
				}
				opts.System, opts.Talkgroup = system, talkgroup
			} else if len(args) == 1 {
				return fmt.Errorf("pass both system and talkgroup, or neither")
			}
			return app.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&prefsPath, "prefs", "", "override prefs path")
	cmd.Flags().IntVar(&poll, "poll", 0, "poll interval in seconds")
	return cmd
}

func newArchiveCmd(configPath *string) *cobra.Command {
	var at string
	var refresh bool

	cmd := &cobra.Command{
		Use:   "archive <system> <talkgroup>",
		Short: "List archived calls for a 30-minute block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			system, talkgroup, err := parseGroup(args[0], args[1])
			if err != nil {
				return err
			}
			when, err := parseWhen(at)
			if err != nil {
				return err
			}

			client, err := newClient(*configPath)
			if err != nil {
				return err
			}
			defer closeClient(client)

			fetch := client.Archive.Fetch
			if refresh {
				fetch = client.Archive.Refresh
			}
			block, err := fetch(cmd.Context(), system, talkgroup, when)
			if err != nil {
				return err
			}

			fmt.Printf("block %s - %s: %d calls\n",
				time.Unix(block.Start, 0).Format("2006-01-02 15:04"),
				time.Unix(block.End, 0).Format("15:04"),
				len(block.Calls))
			for _, c := range block.Calls {
				fmt.Printf("%s  %3ds  src %-8d  %s\n",
					time.Unix(c.StartTime, 0).Format("15:04:05"),
					c.Duration, c.SourceRadioID, c.MediaURL())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "now", "timestamp inside the block (unix, RFC3339, or 'now')")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop any cached entry and refetch")
	return cmd
}

func newDownloadCmd(configPath *string) *cobra.Command {
	var at, dir string

	cmd := &cobra.Command{
		Use:   "download <system> <talkgroup>",
		Short: "Download a block's call audio files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			system, talkgroup, err := parseGroup(args[0], args[1])
			if err != nil {
				return err
			}
			when, err := parseWhen(at)
			if err != nil {
				return err
			}

			client, err := newClient(*configPath)
			if err != nil {
				return err
			}
			defer closeClient(client)

			block, err := client.Archive.Fetch(cmd.Context(), system, talkgroup, when)
			if err != nil {
				return err
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			target := dir
			if target == "" {
				target = cfg.DownloadDir
			}

			for _, c := range block.Calls {
				path, skipped, err := client.Downloads.FetchCall(cmd.Context(), c, target)
				if err != nil {
					fmt.Fprintf(os.Stderr, "download %s: %v\n", c.Filename, err)
					continue
				}
				if skipped {
					fmt.Printf("skipped %s (already downloaded)\n", path)
					continue
				}
				fmt.Printf("saved %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "now", "timestamp inside the block (unix, RFC3339, or 'now')")
	cmd.Flags().StringVar(&dir, "dir", "", "target directory (default from config)")
	return cmd
}

func newClient(configPath string) (*app.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.NewClient(cfg)
}

func closeClient(client *app.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Close(ctx)
}

func parseGroup(systemArg, talkgroupArg string) (int, int, error) {
	system, err := strconv.Atoi(systemArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid system id %q", systemArg)
	}
	talkgroup, err := strconv.Atoi(talkgroupArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid talkgroup id %q", talkgroupArg)
	}
	return system, talkgroup, nil
}

// parseWhen accepts a unix timestamp, an RFC3339 time, a local
// "2006-01-02 15:04" time, or the literal "now".
func parseWhen(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "now" {
		return time.Now().Unix(), nil
	}
	if ts, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return ts, nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.Unix(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", trimmed, time.Local); err == nil {
		return t.Unix(), nil
	}
	return 0, fmt.Errorf("unrecognized time %q", s)
}
