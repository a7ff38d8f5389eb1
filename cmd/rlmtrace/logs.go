package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kehao95/rlmtrace/internal/report"
	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/trace"
	"github.com/kehao95/rlmtrace/internal/tui"
)

// errNoLogs is returned when no log file was named and the log directory
// holds none.
var errNoLogs = errors.New("no log files found")

// resolveLog returns args[0], or the newest .jsonl file in the configured
// log directory when no path is given.
func resolveLog(g *globals, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := g.config()
	if err != nil {
		return "", err
	}
	return latestLog(cfg.LogDir)
}

// latestLog picks the most recently modified .jsonl file in dir.
func latestLog(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w in %s", errNoLogs, dir)
		}
		return "", err
	}
	var best string
	var bestMod int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod || (mod == bestMod && e.Name() > filepath.Base(best)) {
			best, bestMod = filepath.Join(dir, e.Name()), mod
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w in %s", errNoLogs, dir)
	}
	return best, nil
}

// loadTrace reads path into a fresh store. It returns the events in file
// order and the number of records read, skipped ones included.
func loadTrace(path string) (*trace.Store, []tape.LogEvent, int, error) {
	evs, stats, err := tape.ReadFile(path)
	if err != nil {
		return nil, nil, 0, err
	}
	store := trace.NewStore()
	store.IngestAll(evs)
	store.NoteSkipped(stats.Skipped)
	return store, evs, stats.Lines, nil
}

func newTreeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [log]",
		Short: "Print the run tree with per-run usage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveLog(g, args)
			if err != nil {
				return err
			}
			store, _, _, err := loadTrace(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return report.New(out, g.color(out)).Tree(store.Snapshot())
		},
	}
}

func newStatsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [log]",
		Short: "Print totals for a log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveLog(g, args)
			if err != nil {
				return err
			}
			store, _, lines, err := loadTrace(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return report.New(out, g.color(out)).Stats(store.Snapshot(), lines)
		},
	}
}

func newEventsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "events [log]",
		Short: "List every event in file order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveLog(g, args)
			if err != nil {
				return err
			}
			_, evs, _, err := loadTrace(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return report.New(out, g.color(out)).Linear(evs)
		},
	}
}

func newViewCmd(g *globals) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "view [log]",
		Short: "Browse a log interactively",
		Long:  "Opens the interactive browser. With --follow the log is watched and new events appear as the agent writes them.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveLog(g, args)
			if err != nil {
				return err
			}
			log := g.logger(cmd.ErrOrStderr())
			source := tui.WithSource(filepath.Base(path))

			if !follow {
				store, _, _, err := loadTrace(path)
				if err != nil {
					return err
				}
				return tui.Run(tui.New(store, source))
			}

			log.Debug("following log", "path", path)
			// The browser owns the terminal; follower warnings would tear it.
			f, err := tape.Follow(path, 0, nil)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := tui.Run(tui.New(trace.NewStore(), source, tui.WithUpdates(f.Events()))); err != nil {
				return err
			}
			st := f.Stats()
			log.Debug("stopped following", "path", path, "events", st.Events, "skipped", st.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "watch the log for new events")
	return cmd
}
