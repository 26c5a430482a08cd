package toolrun

import (
	"context"
	"errors"
	"os/exec"
	"testing"
)

func TestExecRunnerSuccess(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh available")
	}

	if err := (ExecRunner{}).Run(context.Background(), Command{Stage: "test", Path: sh, Args: []string{"-c", "exit 0"}}); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
}

func TestExecRunnerPropagatesExitCode(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh available")
	}

	err = (ExecRunner{}).Run(context.Background(), Command{Stage: "classification", Path: sh, Args: []string{"-c", "exit 3"}})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Expected *ExitError, got %T (%v)", err, err)
	}
	if exitErr.Code != 3 {
		t.Fatalf("Expected exit code 3, got %d", exitErr.Code)
	}
	if exitErr.Stage != "classification" || exitErr.Tool != "sh" {
		t.Fatalf("Unexpected stage/tool: %+v", exitErr)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	err := (ExecRunner{}).Run(context.Background(), Command{Stage: "fetch", Path: "definitely-not-a-real-tool-xyz"})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Expected *ExitError, got %T (%v)", err, err)
	}
	if exitErr.Code != ExitCodeNotFound {
		t.Fatalf("Expected exit code %d, got %d", ExitCodeNotFound, exitErr.Code)
	}
}

func TestCommandString(t *testing.T) {
	cmd := Command{Path: "/usr/bin/kraken2", Args: []string{"--db", "my db", "--paired"}}
	if got, expected := cmd.String(), `/usr/bin/kraken2 --db "my db" --paired`; got != expected {
		t.Fatalf("Got %q, expected %q", got, expected)
	}
}

func TestOverride(t *testing.T) {
	base := Tools{Prefetch: "prefetch", FasterqDump: "fasterq-dump", Kraken2: "kraken2", Bracken: "bracken"}
	got := base.Override(Tools{Kraken2: "/opt/k2/kraken2"})
	if got.Kraken2 != "/opt/k2/kraken2" || got.Bracken != "bracken" {
		t.Fatalf("Unexpected override result: %+v", got)
	}
}
