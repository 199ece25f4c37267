package cli

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"exposeq/internal/param"
	"exposeq/internal/plan"
	"exposeq/internal/task"
)

// ShellFactory returns a work-function factory that runs each plan task's
// command through `sh -c` with workDir as its working directory, so plan
// commands never depend on the process current working directory. The
// task's parameter document is written to the command's stdin as JSON;
// captured stdout becomes the result document.
//
// Process execution lives here at the CLI boundary, not in the engine: the
// engine only ever sees an opaque work function.
func ShellFactory(workDir string) plan.FuncFactory {
	return func(tp plan.TaskPlan) (task.Func, error) {
		command := tp.Run
		return func(params param.Document) (param.Document, error) {
			cmd := exec.Command("sh", "-c", command)
			cmd.Dir = workDir
			cmd.Stdin = strings.NewReader(params.String())

			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			if err := cmd.Run(); err != nil {
				msg := strings.TrimSpace(stderr.String())
				if msg == "" {
					return param.Document{}, err
				}
				return param.Document{}, fmt.Errorf("%w: %s", err, msg)
			}

			result, err := param.New().Set("stdout", stdout.String())
			if err != nil {
				return param.Document{}, err
			}
			return result.Set("command", command)
		}, nil
	}
}
