// Package plan defines the declarative run-plan format.
//
// A plan is a TOML document describing targets and their tasks. Parsing
// and validation are separate steps: Parse only decodes, Validate checks
// the structural rules, and Build materializes a runnable sequence with
// work functions supplied by the caller.
package plan

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"exposeq/internal/param"
	"exposeq/internal/sequence"
	"exposeq/internal/task"
)

// ErrInvalidPlan wraps all validation failures.
var ErrInvalidPlan = errors.New("plan: invalid plan")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlan, fmt.Sprintf(format, args...))
}

// Plan is the root of a run plan.
type Plan struct {
	Name    string       `toml:"name"`
	Targets []TargetPlan `toml:"targets"`
}

// TargetPlan describes one target. Enabled defaults to true when omitted.
// DelayAfter and the task timeouts are duration strings ("2s", "150ms").
type TargetPlan struct {
	Name       string     `toml:"name"`
	Enabled    *bool      `toml:"enabled"`
	Priority   int        `toml:"priority"`
	DelayAfter string     `toml:"delay_after"`
	Tasks      []TaskPlan `toml:"tasks"`
}

// TaskPlan describes one task. Run is handed to the work-function factory;
// Params become the task's parameter document.
type TaskPlan struct {
	Name    string         `toml:"name"`
	Run     string         `toml:"run"`
	Timeout string         `toml:"timeout"`
	Params  map[string]any `toml:"params"`
}

// Parse decodes a TOML plan without validating it.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: decoding: %w", err)
	}
	return &p, nil
}

// Load reads and decodes a TOML plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the structural rules of the plan:
//   - the plan has a name and at least one target
//   - target names are non-empty and unique
//   - task names are non-empty and unique within their target
//   - every task has a command
//   - every duration string parses
func (p *Plan) Validate() error {
	if p == nil {
		return invalidf("nil plan")
	}
	if p.Name == "" {
		return invalidf("plan name is required")
	}
	if len(p.Targets) == 0 {
		return invalidf("at least one target is required")
	}

	targetNames := make(map[string]bool, len(p.Targets))
	for i, tp := range p.Targets {
		if tp.Name == "" {
			return invalidf("targets[%d]: name is required", i)
		}
		if targetNames[tp.Name] {
			return invalidf("duplicate target name %q", tp.Name)
		}
		targetNames[tp.Name] = true

		if tp.DelayAfter != "" {
			if _, err := time.ParseDuration(tp.DelayAfter); err != nil {
				return invalidf("target %q: bad delay_after %q", tp.Name, tp.DelayAfter)
			}
		}

		// Task names are scoped to their target: "capture" in two targets
		// is fine, "capture" twice in one target is not.
		taskNames := make(map[string]bool, len(tp.Tasks))
		for j, kp := range tp.Tasks {
			if kp.Name == "" {
				return invalidf("target %q: tasks[%d]: name is required", tp.Name, j)
			}
			if taskNames[kp.Name] {
				return invalidf("target %q: duplicate task name %q", tp.Name, kp.Name)
			}
			taskNames[kp.Name] = true
			if kp.Run == "" {
				return invalidf("task %q: run is required", kp.Name)
			}
			if kp.Timeout != "" {
				if _, err := time.ParseDuration(kp.Timeout); err != nil {
					return invalidf("task %q: bad timeout %q", kp.Name, kp.Timeout)
				}
			}
		}
	}
	return nil
}

// FuncFactory turns a task plan into its work function.
type FuncFactory func(TaskPlan) (task.Func, error)

// Build validates the plan and materializes it: targets and tasks are
// created in plan order, with work functions from factory. The returned
// tasks are every task in the sequence, in plan order, so callers can
// register them in a Container or inspect their statuses after a run.
func (p *Plan) Build(factory FuncFactory, opts ...sequence.Option) (*sequence.Sequence, []*task.Task, error) {
	if factory == nil {
		return nil, nil, fmt.Errorf("plan: nil work-function factory")
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	seq := sequence.New(opts...)
	var tasks []*task.Task
	for _, tp := range p.Targets {
		target := sequence.NewTarget(tp.Name)
		target.SetPriority(tp.Priority)
		if tp.DelayAfter != "" {
			d, _ := time.ParseDuration(tp.DelayAfter)
			target.SetDelayAfter(d)
		}
		if tp.Enabled != nil && !*tp.Enabled {
			target.Disable()
		}

		for _, kp := range tp.Tasks {
			fn, err := factory(kp)
			if err != nil {
				return nil, nil, fmt.Errorf("plan: task %q: %w", kp.Name, err)
			}
			params, err := param.FromMap(kp.Params)
			if err != nil {
				return nil, nil, fmt.Errorf("plan: task %q: %w", kp.Name, err)
			}
			var topts []task.Option
			if kp.Timeout != "" {
				d, _ := time.ParseDuration(kp.Timeout)
				topts = append(topts, task.WithTimeout(d))
			}
			tk := task.New(kp.Name, params, fn, topts...)
			target.AddTask(tk)
			tasks = append(tasks, tk)
		}
		seq.AddTarget(target)
	}
	return seq, tasks, nil
}
