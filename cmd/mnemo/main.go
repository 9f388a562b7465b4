// Package main is the entry point for the mnemo CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mnemohq/mnemo/internal/config"
	"github.com/mnemohq/mnemo/internal/core"
	"github.com/mnemohq/mnemo/internal/reminder"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mnemo",
		Short:         "Self-hosted memory and reminder engine for conversational assistants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), nextCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("mnemo %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Println("\nNo compiled modules.")
				return
			}
			fmt.Println("\nCompiled modules:")
			for _, mod := range mods {
				fmt.Printf("  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start mnemo with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := resolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))

			appCtx := core.NewAppContext(logger, defaultDataDir())
			appCtx = appCtx.WithModuleConfigs(cfg.Modules)

			app := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := app.LoadModules(ids); err != nil {
				return err
			}

			return app.Run()
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))
			appCtx := core.NewAppContext(logger, defaultDataDir())
			appCtx = appCtx.WithModuleConfigs(cfg.Modules)

			app := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := app.LoadModules(ids); err != nil {
				return err
			}
			defer app.Stop()

			fmt.Printf("Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

// nextCmd previews recurrence occurrences without touching a running
// instance. Handy for checking a rule before putting it in a reminder.
func nextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Preview upcoming occurrences of a recurrence rule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rtype, _ := cmd.Flags().GetString("type")
			interval, _ := cmd.Flags().GetInt("interval")
			fromRaw, _ := cmd.Flags().GetString("from")
			n, _ := cmd.Flags().GetInt("n")
			daysRaw, _ := cmd.Flags().GetString("days")
			dayOfMonth, _ := cmd.Flags().GetInt("day-of-month")
			endRaw, _ := cmd.Flags().GetString("until")

			rule := reminder.Recurrence{
				Type:       reminder.RecurrenceType(rtype),
				Interval:   interval,
				DayOfMonth: dayOfMonth,
			}

			if daysRaw != "" {
				days, err := parseWeekdays(daysRaw)
				if err != nil {
					return err
				}
				rule.DaysOfWeek = days
			}
			if endRaw != "" {
				end, err := time.Parse(time.RFC3339, endRaw)
				if err != nil {
					return fmt.Errorf("invalid --until: %w", err)
				}
				rule.EndDate = &end
			}
			if err := rule.Validate(); err != nil {
				return err
			}

			from := time.Now().UTC()
			if fromRaw != "" {
				parsed, err := time.Parse(time.RFC3339, fromRaw)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				from = parsed
			}

			occurrences := reminder.Preview(from, rule, n)
			if len(occurrences) == 0 {
				fmt.Println("No upcoming occurrences.")
				return nil
			}
			for _, occ := range occurrences {
				fmt.Println(occ.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().String("type", "daily", "Recurrence type: minutely, hourly, daily, weekly, monthly")
	cmd.Flags().Int("interval", 1, "Interval between occurrences")
	cmd.Flags().String("from", "", "Base date (RFC 3339, default: now)")
	cmd.Flags().Int("n", 5, "Number of occurrences to preview")
	cmd.Flags().String("days", "", "Weekly only: comma-separated weekdays (mon,tue,...)")
	cmd.Flags().Int("day-of-month", 0, "Monthly only: target day of month (1-31)")
	cmd.Flags().String("until", "", "Rule end date (RFC 3339)")
	return cmd
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

func parseWeekdays(raw string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if len(name) > 3 {
			name = name[:3]
		}
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/mnemo/mnemo.yaml → ./mnemo.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "mnemo", "mnemo.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "mnemo", "mnemo.yaml"))
	}

	candidates = append(candidates, "mnemo.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

func defaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "mnemo")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mnemo", "data")
}
