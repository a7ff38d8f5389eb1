package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kehao95/rlmtrace/internal/config"
	"github.com/kehao95/rlmtrace/internal/llm"
	"github.com/kehao95/rlmtrace/internal/llm/protocol"
	"github.com/kehao95/rlmtrace/internal/runtime"
	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/usage"
)

// errNoModel is returned by ask when no model id is configured.
var errNoModel = errors.New("RLM_MODEL_ID is not set")

func newAskCmd(g *globals) *cobra.Command {
	var (
		leaf   bool
		record bool
		steps  int
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the model once and print the extracted code",
		Long: "Sends one question through the retrying invocation path and prints the repl code of the answer with its usage. --record writes the exchange as a run log.\n\n" +
			"--steps runs the full agent loop instead, with an executor that echoes each code block back to the model. " +
			"Lines of the form \"# spawn: <query>\" start sub-agents.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if err := cfg.RequireAPIKey(); err != nil {
				return err
			}
			if cfg.ModelID == "" {
				return errNoModel
			}
			log := g.logger(cmd.ErrOrStderr())

			client, err := llm.NewFromConfig(cfg, llm.WithLogger(log))
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			if steps > 0 {
				return askLoop(cmd, cfg, client, log, question, steps, record)
			}
			res, err := client.GenerateCode(cmd.Context(),
				[]protocol.Message{{Role: protocol.RoleUser, Content: question}},
				cfg.ModelID, leaf, llm.RetryOptionsFrom(cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Success {
				fmt.Fprintln(out, res.Code)
			} else {
				fmt.Fprintln(out, "(no repl code in answer)")
				fmt.Fprintln(out, res.Content)
			}
			printUsage(cmd.ErrOrStderr(), res.Usage)

			if !record {
				return nil
			}
			w, err := tape.NewWriter(cfg.LogDir, cfg.LogPrefix)
			if err != nil {
				return err
			}
			rec := tape.NewRecorder(w, cfg.LogPrefix)
			rec.RunStart(question)
			rec.CodeGenerated(1, res.Code, res.Reasoning, res.Usage)
			rec.FinalResult(res.Content)
			fmt.Fprintf(cmd.ErrOrStderr(), "recorded run %s to %s\n", rec.RunID(), w.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&leaf, "leaf", false, "use the leaf instructions (no sub-agents)")
	cmd.Flags().BoolVar(&record, "record", false, "write the exchange to the log directory")
	cmd.Flags().IntVar(&steps, "steps", 0, "run the agent loop for this many steps with the echo executor")
	cmd.MarkFlagsMutuallyExclusive("leaf", "steps")
	return cmd
}

// askLoop runs question through a full agent tree and prints the final
// value with the usage of every model call in the tree.
func askLoop(cmd *cobra.Command, cfg *config.Config, gen runtime.Generator, log *slog.Logger, question string, steps int, record bool) error {
	var w io.Writer = io.Discard
	var path string
	if record {
		tw, err := tape.NewWriter(cfg.LogDir, cfg.LogPrefix)
		if err != nil {
			return err
		}
		w, path = tw, tw.Path()
	}

	loopCfg := *cfg
	loopCfg.MaxSteps = steps
	agent := runtime.New(&loopCfg, gen, echoExecutor{steps: steps}, runtime.WithLogger(log))
	rec := tape.NewRecorder(w, cfg.LogPrefix)

	res, err := agent.Run(cmd.Context(), question, rec)
	printUsage(cmd.ErrOrStderr(), agent.Usage())
	if path != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "recorded run %s to %s\n", rec.RunID(), path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Final)
	return nil
}

func printUsage(w io.Writer, u usage.Usage) {
	cost := "cost unknown"
	if u.CostKnown() {
		cost = fmt.Sprintf("$%.6f", *u.Cost)
	}
	fmt.Fprintf(w, "usage: %d tokens (prompt %d, completion %d, cached %d, reasoning %d), %s\n",
		u.TotalTokens, u.PromptTokens, u.CompletionTokens, u.CachedTokens, u.ReasoningTokens, cost)
}
