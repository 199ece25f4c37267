package cli

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const (
	ExitSuccess           = 0
	ExitTargetFailure     = 1
	ExitInvalidInvocation = 2
	ExitPlanError         = 3
	ExitInternalError     = 4
)

// Invocation is the fully canonicalized description of a CLI run.
//
// All paths are cleaned and relative paths are resolved against WorkDir,
// which is required and must be absolute so nothing depends on the process
// current working directory.
type Invocation struct {
	WorkDir     string
	PlanPath    string
	ReportPath  string
	JournalPath string
	History     bool
}

// InvocationError carries the semantic exit code for a bad invocation.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ParseInvocation parses CLI flags into a canonical Invocation.
func ParseInvocation(args []string) (Invocation, error) {
	fs := flag.NewFlagSet("exposeq", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed

	var workDir string
	var planPath string
	var reportPath string
	var journalPath string
	var keepHistory bool

	fs.StringVar(&workDir, "workdir", "", "Absolute working directory. Required.")
	fs.StringVar(&planPath, "plan", "", "Run plan (TOML). Required.")
	fs.StringVar(&reportPath, "report", "", "Write the run report to this path (optional).")
	fs.StringVar(&journalPath, "journal", "", "Write the event journal to this path (optional).")
	fs.BoolVar(&keepHistory, "history", false, "Persist the run report under the workdir.")

	if err := fs.Parse(args); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if fs.NArg() != 0 {
		return Invocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(fs.Args(), " "))
	}

	workDir = filepath.Clean(workDir)
	if workDir == "" || workDir == "." {
		return Invocation{}, invalidInvocationf("--workdir is required")
	}
	if !filepath.IsAbs(workDir) {
		return Invocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", workDir)
	}
	if planPath == "" {
		return Invocation{}, invalidInvocationf("--plan is required")
	}

	return Invocation{
		WorkDir:     workDir,
		PlanPath:    resolveAgainst(workDir, planPath),
		ReportPath:  resolveOptional(workDir, reportPath),
		JournalPath: resolveOptional(workDir, journalPath),
		History:     keepHistory,
	}, nil
}

func resolveAgainst(workDir, path string) string {
	path = filepath.Clean(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}

func resolveOptional(workDir, path string) string {
	if path == "" {
		return ""
	}
	return resolveAgainst(workDir, path)
}
