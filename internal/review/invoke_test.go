//go:build !windows

package review

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeScript drops an executable shell script to act as the reviewer.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviewer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestInvokeParsesDocumentFromStdout(t *testing.T) {
	script := writeScript(t, `echo '{"files":[{"filePath":"a.go","comments":[{"comment":"hm","severity":"warning"}]}]}'`)
	runner := &Runner{Command: script, Timeout: 30 * time.Second}

	out, err := runner.Invoke(context.Background(), t.TempDir(), "review everything")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !out.Success || len(out.Files) != 1 || out.Files[0].FilePath != "a.go" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestInvokeWritesInstructionsFile(t *testing.T) {
	script := writeScript(t, `cat "$(pwd)/`+InstructionsFileName+`"`)
	runner := &Runner{Command: script, Timeout: 30 * time.Second}
	ws := t.TempDir()

	if _, err := runner.Invoke(context.Background(), ws, "the instructions body"); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(ws, InstructionsFileName))
	if err != nil {
		t.Fatalf("instructions file missing: %v", err)
	}
	if string(data) != "the instructions body" {
		t.Fatalf("unexpected instructions %q", data)
	}
}

func TestInvokeCleanExitUnparseableIsEmptySuccess(t *testing.T) {
	script := writeScript(t, `echo "thanks, all looks good to me"`)
	runner := &Runner{Command: script, Timeout: 30 * time.Second}

	out, err := runner.Invoke(context.Background(), t.TempDir(), "go")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !out.Success || len(out.Files) != 0 {
		t.Fatalf("expected empty success, got %+v", out)
	}
	if out.OverallSummary == "" {
		t.Fatalf("expected a summary noting the unparseable response")
	}
}

func TestInvokeNonzeroExitWithResultsSucceeds(t *testing.T) {
	script := writeScript(t, `echo '{"files":[{"filePath":"b.go","comments":[]}]}'
exit 3`)
	runner := &Runner{Command: script, Timeout: 30 * time.Second}

	out, err := runner.Invoke(context.Background(), t.TempDir(), "go")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !out.Success || len(out.Files) != 1 {
		t.Fatalf("expected soft-failure success, got %+v", out)
	}
}

func TestInvokeNonzeroExitWithoutResultsFails(t *testing.T) {
	script := writeScript(t, `echo "boom: credentials rejected" >&2
exit 2`)
	runner := &Runner{Command: script, Timeout: 30 * time.Second}

	out, err := runner.Invoke(context.Background(), t.TempDir(), "go")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Success {
		t.Fatalf("expected failure outcome")
	}
	if !strings.Contains(out.Error, "code 2") || !strings.Contains(out.Error, "credentials rejected") {
		t.Fatalf("unexpected error %q", out.Error)
	}
}

func TestInvokeTimeoutKillsProcess(t *testing.T) {
	script := writeScript(t, `sleep 30`)
	runner := &Runner{Command: script, Timeout: 100 * time.Millisecond}

	start := time.Now()
	out, err := runner.Invoke(context.Background(), t.TempDir(), "go")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout did not terminate the process promptly")
	}
	if out.Success {
		t.Fatalf("expected timeout failure")
	}
	if !strings.Contains(out.Error, "timed out") {
		t.Fatalf("unexpected error %q", out.Error)
	}
}

func TestInvokeCancellationPropagates(t *testing.T) {
	script := writeScript(t, `sleep 30`)
	runner := &Runner{Command: script, Timeout: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := runner.Invoke(ctx, t.TempDir(), "go")
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInvokePromptAppendedWithoutPlaceholder(t *testing.T) {
	script := writeScript(t, `echo "PROMPT:$1" >&2
echo '{"files":[]}'`)
	runner := &Runner{Command: script, Timeout: 30 * time.Second}

	out, err := runner.Invoke(context.Background(), t.TempDir(), "go")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !out.Success {
		t.Fatalf("unexpected outcome %+v", out)
	}
}
