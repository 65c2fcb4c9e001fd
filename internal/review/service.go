package review

import (
	"context"
	"time"

	"github.com/elipriaulx/azdo-review-bot/internal/workspace"
)

// Service materializes a workspace, runs the reviewer under the retry
// coordinator, and always disposes the workspace afterwards.
type Service struct {
	runner      *Runner
	coordinator Coordinator
}

func NewService(command string, timeout time.Duration, maxAttempts int, baseDelay time.Duration) *Service {
	return &Service{
		runner:      &Runner{Command: command, Timeout: timeout},
		coordinator: Coordinator{MaxAttempts: maxAttempts, BaseDelay: baseDelay},
	}
}

// Review runs one full review of the given files. A zero-file
// workspace short-circuits to an empty success: there is nothing to
// show the reviewer.
func (s *Service) Review(ctx context.Context, pc PromptContext, files []ChangedFile) (Outcome, error) {
	staged := make([]workspace.File, 0, len(files))
	for _, file := range files {
		staged = append(staged, workspace.File{Path: file.Path, Content: file.Content})
	}
	dir, written, err := workspace.Materialize(staged)
	if dir != "" {
		defer workspace.Dispose(dir)
	}
	if err != nil {
		return Outcome{}, err
	}
	if written == 0 {
		return Outcome{Success: true}, nil
	}

	instructions := BuildInstructions(pc, files)
	return s.coordinator.Run(ctx, func(ctx context.Context) (Outcome, error) {
		return s.runner.Invoke(ctx, dir, instructions)
	})
}
