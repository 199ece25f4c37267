package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"exposeq/internal/param"
	"exposeq/internal/task"
)

const validPlan = `
name = "andromeda-session"

[[targets]]
name = "m31"
priority = 2
delay_after = "10ms"

  [[targets.tasks]]
  name = "m31-light"
  run = "capture --frame light"
  timeout = "2s"

    [targets.tasks.params]
    exposure = 30.0
    gain = 120

[[targets]]
name = "m33"
enabled = false

  [[targets.tasks]]
  name = "m33-light"
  run = "capture --frame light"
`

func echoFactory(tp TaskPlan) (task.Func, error) {
	return func(p param.Document) (param.Document, error) {
		return p.Set("ran", tp.Run)
	}, nil
}

func TestPlan_ParseAndValidate(t *testing.T) {
	p, err := Parse([]byte(validPlan))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if p.Name != "andromeda-session" || len(p.Targets) != 2 {
		t.Fatalf("decoded plan: %+v", p)
	}
	if p.Targets[0].Priority != 2 || p.Targets[0].DelayAfter != "10ms" {
		t.Fatalf("target 0: %+v", p.Targets[0])
	}
	if p.Targets[1].Enabled == nil || *p.Targets[1].Enabled {
		t.Fatalf("target 1 should be disabled")
	}
	if got := p.Targets[0].Tasks[0].Params["gain"]; got != int64(120) {
		t.Fatalf("params.gain: %v (%T)", got, got)
	}
}

func TestPlan_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.toml")
	if err := os.WriteFile(path, []byte(validPlan), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Name != "andromeda-session" {
		t.Fatalf("loaded plan: %+v", p)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestPlan_ValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		toml string
	}{
		{"no plan name", `
[[targets]]
name = "a"
[[targets.tasks]]
name = "t"
run = "x"
`},
		{"no targets", `name = "p"`},
		{"unnamed target", `
name = "p"
[[targets]]
[[targets.tasks]]
name = "t"
run = "x"
`},
		{"duplicate target", `
name = "p"
[[targets]]
name = "a"
[[targets.tasks]]
name = "t1"
run = "x"
[[targets]]
name = "a"
[[targets.tasks]]
name = "t2"
run = "x"
`},
		{"duplicate task in one target", `
name = "p"
[[targets]]
name = "a"
[[targets.tasks]]
name = "t"
run = "x"
[[targets.tasks]]
name = "t"
run = "y"
`},
		{"task without command", `
name = "p"
[[targets]]
name = "a"
[[targets.tasks]]
name = "t"
`},
		{"bad delay", `
name = "p"
[[targets]]
name = "a"
delay_after = "soon"
[[targets.tasks]]
name = "t"
run = "x"
`},
		{"bad timeout", `
name = "p"
[[targets]]
name = "a"
[[targets.tasks]]
name = "t"
run = "x"
timeout = "whenever"
`},
	}

	for _, tc := range cases {
		p, err := Parse([]byte(tc.toml))
		if err != nil {
			t.Fatalf("%s: parse: %v", tc.name, err)
		}
		if err := p.Validate(); !errors.Is(err, ErrInvalidPlan) {
			t.Fatalf("%s: expected ErrInvalidPlan, got %v", tc.name, err)
		}
	}
}

func TestPlan_TaskNamesAreScopedToTheirTarget(t *testing.T) {
	p, err := Parse([]byte(`
name = "p"
[[targets]]
name = "a"
[[targets.tasks]]
name = "capture"
run = "x"
[[targets]]
name = "b"
[[targets.tasks]]
name = "capture"
run = "y"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("same task name in two targets must validate: %v", err)
	}
}

func TestPlan_BuildMaterializesTheSequence(t *testing.T) {
	p, err := Parse([]byte(validPlan))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	seq, tasks, err := p.Build(echoFactory)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if seq.TargetCount() != 2 {
		t.Fatalf("targets: %d", seq.TargetCount())
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks: %d", len(tasks))
	}
	if tasks[0].Name() != "m31-light" || tasks[0].Timeout() != 2*time.Second {
		t.Fatalf("task 0: %s timeout %s", tasks[0].Name(), tasks[0].Timeout())
	}
	if got := tasks[0].Params().Get("exposure").Float(); got != 30.0 {
		t.Fatalf("params: %v", got)
	}

	seq.ExecuteAll()
	rep := seq.Wait()
	if len(rep.Outcomes) != 2 {
		t.Fatalf("outcomes: %+v", rep.Outcomes)
	}
	// m31 completes; m33 is disabled in the plan.
	if rep.Outcomes[0].Kind != "completed" || rep.Outcomes[1].Kind != "skipped" {
		t.Fatalf("outcomes: %+v", rep.Outcomes)
	}
	res, ok := tasks[0].Result()
	if !ok || res.Get("ran").String() != "capture --frame light" {
		t.Fatalf("result: %v %s", ok, res.String())
	}
}

func TestPlan_BuildRejectsInvalidPlans(t *testing.T) {
	p := &Plan{Name: ""}
	if _, _, err := p.Build(echoFactory); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
	valid, _ := Parse([]byte(validPlan))
	if _, _, err := valid.Build(nil); err == nil {
		t.Fatalf("expected error for nil factory")
	}
}
