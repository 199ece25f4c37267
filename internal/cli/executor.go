package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"exposeq/internal/history"
	"exposeq/internal/journal"
	"exposeq/internal/plan"
	"exposeq/internal/sequence"
)

// Result is the semantic outcome of one CLI execution.
type Result struct {
	ExitCode int
	Report   *sequence.RunReport
}

// Execute maps a canonical Invocation to a sequence run.
//
// Responsibilities:
//   - Load and validate the plan; plan problems map to ExitPlanError.
//   - Run the sequence to completion, stopping it if ctx is canceled.
//   - Write the report and journal files when requested, and persist the
//     report into the workdir history store with --history.
//   - Translate the run outcome to a semantic exit code. A failed target
//     is exit 1, not an error: fail-soft semantics mean the run itself
//     finished.
func Execute(ctx context.Context, inv Invocation) (Result, error) {
	p, err := plan.Load(inv.PlanPath)
	if err != nil {
		return Result{ExitCode: ExitPlanError}, err
	}

	rec := journal.NewRecorder()
	seq, _, err := p.Build(ShellFactory(inv.WorkDir), sequence.WithSink(rec))
	if err != nil {
		return Result{ExitCode: ExitPlanError}, err
	}

	seq.ExecuteAll()

	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			seq.Stop()
		case <-finished:
		}
	}()
	rep := seq.Wait()
	close(finished)

	if rep == nil {
		return Result{ExitCode: ExitInternalError}, fmt.Errorf("run produced no report")
	}
	res := Result{Report: rep}

	if inv.JournalPath != "" {
		if err := writeJSON(inv.JournalPath, rec.Snapshot()); err != nil {
			res.ExitCode = ExitInternalError
			return res, fmt.Errorf("writing journal: %w", err)
		}
	}
	if inv.ReportPath != "" {
		if err := writeJSON(inv.ReportPath, rep); err != nil {
			res.ExitCode = ExitInternalError
			return res, fmt.Errorf("writing report: %w", err)
		}
	}
	if inv.History {
		st, err := history.NewStore(inv.WorkDir)
		if err == nil {
			err = st.Save(rep)
		}
		if err != nil {
			res.ExitCode = ExitInternalError
			return res, fmt.Errorf("persisting report: %w", err)
		}
	}

	if !rep.Succeeded() {
		res.ExitCode = ExitTargetFailure
		return res, nil
	}
	res.ExitCode = ExitSuccess
	return res, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
