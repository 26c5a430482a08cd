// Package toolrun invokes the external sequence-processing tools (sra-tools,
// kraken2, bracken) as argument lists, never through a shell, and converts
// their non-zero exits into errors that carry the tool's exit status.
package toolrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ExitCodeNotFound is reported when the tool binary could not be started at
// all. It matches what a POSIX shell returns for a missing command.
const ExitCodeNotFound = 127

// Command is one invocation of an external tool.
type Command struct {
	// Stage names the pipeline step the tool serves, e.g. "classification".
	Stage string
	Path  string
	Args  []string
	Dir   string
}

func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Path))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n'\"\\$`") {
		return strconv.Quote(s)
	}
	return s
}

// Runner blocks until the command's process exits.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Command) error

func (f RunnerFunc) Run(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// ExitError is returned when a tool exits non-zero or cannot be started.
type ExitError struct {
	Stage string
	Tool  string
	Code  int
	Err   error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s (%s) failed with exit code %d: %v", e.Tool, e.Stage, e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands as child processes. Output from the tools is
// passed through to Stdout and Stderr, which default to the process's own.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, cmd Command) error {
	log.Println("Running", cmd)

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = r.Stdout
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	c.Stderr = r.Stderr
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	err := c.Run()
	if err == nil {
		return nil
	}

	out := &ExitError{
		Stage: cmd.Stage,
		Tool:  toolName(cmd.Path),
		Code:  1,
		Err:   err,
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		out.Code = exitErr.ExitCode()
		if out.Code < 0 {
			// Killed by a signal, usually because ctx was cancelled.
			out.Code = 1
		}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		out.Code = ExitCodeNotFound
	}

	return out
}

func toolName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
