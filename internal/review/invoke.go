package review

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// InstructionsFileName is the well-known file inside the workspace that
// carries the full review instructions. Passing them by file sidesteps
// command-line length limits.
const InstructionsFileName = "REVIEW_INSTRUCTIONS.md"

const stderrExcerptLimit = 2000

// Runner invokes the external reviewer process against a materialized
// workspace and extracts a structured outcome from whatever it prints.
type Runner struct {
	// Command is the reviewer command line. $PROMPT and $WORKSPACE
	// placeholders are substituted; without a $PROMPT placeholder the
	// pointer prompt is appended as the final argument.
	Command string
	Timeout time.Duration
}

// pointerPrompt is the short instruction handed on the command line;
// the real task lives in the instructions file.
func pointerPrompt() string {
	return "Read the review instructions in " + InstructionsFileName +
		" at the root of this workspace, review the staged files, and respond with JSON only."
}

// Invoke runs one reviewer attempt. The returned error is reserved for
// infrastructure problems (spawn failure, cancellation); reviewer-level
// failures come back as a failed Outcome.
//
// The timeout timer is independent of ctx: ctx cancellation abandons
// the wait and propagates without killing the child (shutdown of
// in-flight reviews is best-effort), while the timeout kills the whole
// process tree.
func (r *Runner) Invoke(ctx context.Context, workspaceDir, instructions string) (Outcome, error) {
	instrPath := filepath.Join(workspaceDir, InstructionsFileName)
	if err := os.WriteFile(instrPath, []byte(instructions), 0o644); err != nil {
		return Outcome{}, fmt.Errorf("write instructions: %w", err)
	}

	cmdPath, cmdArgs, err := splitCommand(r.Command)
	if err != nil {
		return Outcome{}, err
	}
	cmdArgs, promptUsed := applyTemplate(cmdArgs, pointerPrompt(), workspaceDir)
	if !promptUsed {
		cmdArgs = append(cmdArgs, pointerPrompt())
	}

	cmd := exec.Command(cmdPath, cmdArgs...)
	cmd.Dir = workspaceDir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{}, err
	}
	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("start reviewer: %w", err)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		captureStream(stdout, &stdoutBuf, "stdout")
	}()
	go func() {
		defer wg.Done()
		captureStream(stderr, &stderrBuf, "stderr")
	}()

	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// Abandon the wait; the child keeps running and higher-level
		// shutdown owns any process cleanup.
		return Outcome{}, ctx.Err()
	case <-timer.C:
		if killErr := killProcessTree(cmd); killErr != nil {
			slog.Warn("failed to kill timed-out reviewer", "error", killErr)
		}
		<-done
		return failure(fmt.Sprintf("reviewer timed out after %s", timeout)), nil
	case waitErr := <-done:
		return r.finish(waitErr, stdoutBuf.String(), stderrBuf.String())
	}
}

func (r *Runner) finish(waitErr error, stdout, stderr string) (Outcome, error) {
	if waitErr == nil {
		out, ok := Extract(stdout)
		if !ok {
			slog.Info("reviewer output had no extractable document, treating as empty review")
			return unparseableOutcome(), nil
		}
		return out, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return Outcome{}, fmt.Errorf("wait for reviewer: %w", waitErr)
	}

	// Some reviewers emit a usable document alongside a nonzero status
	// for soft failures; take it when it carries file results.
	if out, ok := Extract(stdout); ok && len(out.Files) > 0 {
		slog.Info("reviewer exited nonzero but produced results", "code", exitErr.ExitCode())
		return out, nil
	}
	return failure(fmt.Sprintf("reviewer exited with code %d: %s",
		exitErr.ExitCode(), excerpt(stderr, stderrExcerptLimit))), nil
}
