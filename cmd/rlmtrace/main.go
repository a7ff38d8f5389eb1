// Command rlmtrace inspects and browses the telemetry logs written by a
// recursive code-generation agent, and issues one-off model calls
// through the same resilient invocation path.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kehao95/rlmtrace/internal/config"
	"github.com/kehao95/rlmtrace/internal/report"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	verbose    bool
	noColor    bool
}

func (g *globals) config() (*config.Config, error) {
	return config.LoadFile(g.configPath)
}

func (g *globals) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// color reports whether w should get ANSI styling.
func (g *globals) color(w io.Writer) bool {
	if g.noColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && report.ColorEnabled(f)
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "rlmtrace",
		Short:         "Inspect recursive agent telemetry",
		Long:          "rlmtrace reads the JSONL event logs of a recursive code-generation agent and shows them as a run tree, totals, an event listing or an interactive browser.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to a YAML config file (environment overrides it)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug details to stderr")
	cmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable ANSI colour")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newTreeCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newEventsCmd(g))
	cmd.AddCommand(newViewCmd(g))
	cmd.AddCommand(newAskCmd(g))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rlmtrace %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "rlmtrace: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newRootCmd())
	stop()
	os.Exit(code)
}
