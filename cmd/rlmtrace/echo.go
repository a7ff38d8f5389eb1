package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/kehao95/rlmtrace/internal/runtime"
)

// spawnPrefix marks a code line that asks for a sub-agent.
const spawnPrefix = "# spawn:"

// echoExecutor stands in for a sandbox. It runs nothing: each code block
// is reported back as its own output, "# spawn: <query>" lines start
// sub-agents, and a run ends at its step budget with its last block as
// the final value.
type echoExecutor struct {
	steps int
}

func (e echoExecutor) Execute(ctx context.Context, code string, env *runtime.Env) (runtime.Execution, error) {
	out := runtime.Execution{
		Output: code,
		Done:   env.Step() >= e.steps,
		Final:  code,
	}

	queries := spawnQueries(code)
	if len(queries) == 0 {
		return out, nil
	}
	results, err := env.SpawnAll(ctx, queries)
	for i, r := range results {
		out.Output += fmt.Sprintf("\n[%s] %v", queries[i], r.Final)
	}
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		out.Output += "\n" + err.Error()
		out.HasError = true
	}
	return out, nil
}

func spawnQueries(code string) []string {
	var qs []string
	for _, line := range strings.Split(code, "\n") {
		q, ok := strings.CutPrefix(strings.TrimSpace(line), spawnPrefix)
		if q = strings.TrimSpace(q); ok && q != "" {
			qs = append(qs, q)
		}
	}
	return qs
}
