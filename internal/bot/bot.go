// Package bot drives the review cycle: polling repositories, deciding
// which pull-request revisions still need review, running the external
// reviewer, and posting results back.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elipriaulx/azdo-review-bot/internal/azdo"
	"github.com/elipriaulx/azdo-review-bot/internal/config"
	"github.com/elipriaulx/azdo-review-bot/internal/filter"
	"github.com/elipriaulx/azdo-review-bot/internal/history"
	"github.com/elipriaulx/azdo-review-bot/internal/ledger"
	"github.com/elipriaulx/azdo-review-bot/internal/review"
)

// Provider is the pull-request source the cycle consumes. azdo.Client
// implements it; tests substitute fakes.
type Provider interface {
	ListOpenPullRequests(ctx context.Context, project, repository string) ([]azdo.PullRequest, error)
	ListIterations(ctx context.Context, project, repositoryID string, pullRequestID int) ([]azdo.Iteration, error)
	ListChangedFiles(ctx context.Context, project, repositoryID string, pullRequestID, iterationID int) ([]azdo.ChangeEntry, error)
	GetFileContent(ctx context.Context, project, repositoryID, filePath, revision string) (string, error)
	PostComment(ctx context.Context, project, repositoryID string, pullRequestID int, filePath string, lineNumber int, text string) error
}

// ReviewService runs one full review of a set of changed files.
type ReviewService interface {
	Review(ctx context.Context, pc review.PromptContext, files []review.ChangedFile) (review.Outcome, error)
}

type Bot struct {
	cfg        config.Config
	provider   Provider
	reviews    ReviewService
	ledgers    *ledger.Store
	history    *history.Store // nil when history is disabled
	exclusions []filter.Exclusion
}

func New(cfg config.Config, provider Provider, reviews ReviewService, ledgers *ledger.Store, hist *history.Store) *Bot {
	return &Bot{
		cfg:        cfg,
		provider:   provider,
		reviews:    reviews,
		ledgers:    ledgers,
		history:    hist,
		exclusions: filter.CompileExclusions(cfg.Review.ExcludeGlobs),
	}
}

// Run polls on the configured interval until ctx is cancelled. Cycles
// are strictly sequential: the next delay starts only after the
// previous cycle finished.
func (b *Bot) Run(ctx context.Context) error {
	interval := b.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	slog.Info("review loop started", "interval", interval, "repositories", len(b.cfg.Repositories))
	for {
		if err := b.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("review cycle failed", "error", err)
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunCycle processes every configured repository once. Failures in one
// repository are logged and never abort the others.
func (b *Bot) RunCycle(ctx context.Context) error {
	led := b.ledgers.Load()
	active := map[string]struct{}{}

	for _, repo := range b.cfg.Repositories {
		if err := b.processRepository(ctx, led, active, repo); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("repository processing failed", "repo", repo, "error", err)
		}
	}

	led.Cleanup(active)
	if err := b.ledgers.Save(led); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

func (b *Bot) processRepository(ctx context.Context, led *ledger.Ledger, active map[string]struct{}, repo string) error {
	prs, err := b.provider.ListOpenPullRequests(ctx, b.cfg.Project, repo)
	if err != nil {
		// A failed listing says nothing about which pull requests
		// closed: keep this repository's existing ledger keys alive so
		// cleanup cannot purge them.
		prefix := b.cfg.Project + "/" + repo + "/"
		for _, key := range led.Keys() {
			if strings.HasPrefix(key, prefix) {
				active[key] = struct{}{}
			}
		}
		return err
	}

	// Accumulate every open key up front so an abort partway through
	// the repository cannot cause spurious cleanup.
	for _, pr := range prs {
		active[ledger.Key(b.cfg.Project, repo, pr.ID)] = struct{}{}
	}

	for _, pr := range prs {
		if err := b.processPullRequest(ctx, led, repo, pr); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) processPullRequest(ctx context.Context, led *ledger.Ledger, repo string, pr azdo.PullRequest) error {
	log := slog.With("repo", repo, "pr", pr.ID)
	key := ledger.Key(b.cfg.Project, repo, pr.ID)

	iterations, err := b.provider.ListIterations(ctx, b.cfg.Project, pr.Repository.ID, pr.ID)
	if err != nil {
		return err
	}
	latest, ok := latestIteration(iterations)
	if !ok {
		log.Debug("pull request has no iterations")
		return nil
	}
	revision := latest.SourceRevision()
	if revision == "" && pr.LastMerge != nil {
		revision = pr.LastMerge.CommitID
	}
	if revision == "" {
		log.Warn("could not determine latest revision, skipping")
		return nil
	}
	log = log.With("revision", revision)

	if led.HasReviewed(key, revision) {
		log.Debug("revision already reviewed")
		return nil
	}

	files, err := b.collectFiles(ctx, pr, latest, revision, log)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		// Nothing reviewable in this revision; that is a terminal
		// success for the revision, not a skip.
		log.Info("no reviewable files in revision, marking reviewed")
		led.MarkReviewed(key, revision)
		b.recordRun(ctx, repo, pr.ID, revision, history.StatusEmpty, 0, 0, "")
		return nil
	}

	pc := review.PromptContext{
		Title:        pr.Title,
		SourceBranch: pr.SourceBranch,
		TargetBranch: pr.TargetBranch,
	}
	start := time.Now()
	outcome, err := b.reviews.Review(ctx, pc, files)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}
	if !outcome.Success {
		// Leave the revision unmarked so the next cycle retries it.
		log.Error("review failed, will retry next cycle", "error", outcome.Error)
		b.recordRun(ctx, repo, pr.ID, revision, history.StatusFailed, 0, elapsed, outcome.Error)
		return nil
	}

	posted := b.postResults(ctx, pr, outcome, log)
	led.MarkReviewed(key, revision)
	b.recordRun(ctx, repo, pr.ID, revision, history.StatusReviewed, posted, elapsed, "")
	log.Info("revision reviewed", "files", len(files), "comments", posted, "duration", elapsed)
	return nil
}

// collectFiles applies the changed-file filters and fetches content for
// what survives.
func (b *Bot) collectFiles(ctx context.Context, pr azdo.PullRequest, latest azdo.Iteration, revision string, log *slog.Logger) ([]review.ChangedFile, error) {
	changes, err := b.provider.ListChangedFiles(ctx, b.cfg.Project, pr.Repository.ID, pr.ID, latest.ID)
	if err != nil {
		return nil, err
	}

	var files []review.ChangedFile
	for _, change := range changes {
		changeType := mapChangeType(change.ChangeType)
		if changeType == review.ChangeDelete {
			continue
		}
		path := change.Item.Path
		if !filter.ReviewableExtension(path) {
			continue
		}
		if filter.Excluded(path, b.exclusions) {
			log.Debug("file excluded by pattern", "path", path)
			continue
		}

		content, err := b.provider.GetFileContent(ctx, b.cfg.Project, pr.Repository.ID, path, revision)
		if err != nil {
			return nil, err
		}
		if content == "" {
			continue
		}
		if b.cfg.Review.MaxFileBytes > 0 && int64(len(content)) > b.cfg.Review.MaxFileBytes {
			log.Debug("file over size ceiling", "path", path, "bytes", len(content))
			continue
		}
		files = append(files, review.ChangedFile{
			Path:       strings.TrimPrefix(path, "/"),
			ChangeType: changeType,
			Content:    content,
		})
	}
	return files, nil
}

// postResults opens comment threads for the outcome and returns how
// many were posted. Posting is fire-and-forget: failures are logged
// and never fail the cycle.
func (b *Bot) postResults(ctx context.Context, pr azdo.PullRequest, outcome review.Outcome, log *slog.Logger) int {
	posted := 0
	post := func(filePath string, line int, text string) {
		if err := b.provider.PostComment(ctx, b.cfg.Project, pr.Repository.ID, pr.ID, filePath, line, text); err != nil {
			log.Warn("failed to post comment", "path", filePath, "error", err)
			return
		}
		posted++
	}

	maxPerFile := b.cfg.Review.MaxCommentsPerFile
	for _, file := range outcome.Files {
		if file.Summary != "" {
			post(file.FilePath, 0, file.Summary)
			continue
		}
		comments := file.Comments
		truncated := 0
		if maxPerFile > 0 && len(comments) > maxPerFile {
			truncated = len(comments) - maxPerFile
			comments = comments[:maxPerFile]
		}
		for _, comment := range comments {
			post(comment.FilePath, comment.LineNumber, formatComment(comment))
		}
		if truncated > 0 {
			post(file.FilePath, 0, fmt.Sprintf("%d additional comments on this file were omitted.", truncated))
		}
	}
	if outcome.OverallSummary != "" {
		post("", 0, outcome.OverallSummary)
	}
	return posted
}

func formatComment(c review.Comment) string {
	if c.Severity == "" {
		return c.Text
	}
	return fmt.Sprintf("[%s] %s", c.Severity, c.Text)
}

func (b *Bot) recordRun(ctx context.Context, repo string, prID int, revision, status string, comments int, duration time.Duration, errText string) {
	if b.history == nil {
		return
	}
	_, err := b.history.RecordRun(ctx, history.Run{
		Project:       b.cfg.Project,
		Repository:    repo,
		PullRequestID: prID,
		Revision:      revision,
		Status:        status,
		CommentCount:  comments,
		Duration:      duration,
		Error:         errText,
	})
	if err != nil {
		slog.Warn("failed to record review run", "error", err)
	}
}

// latestIteration picks the iteration with the greatest ID.
func latestIteration(iterations []azdo.Iteration) (azdo.Iteration, bool) {
	if len(iterations) == 0 {
		return azdo.Iteration{}, false
	}
	latest := iterations[0]
	for _, it := range iterations[1:] {
		if it.ID > latest.ID {
			latest = it
		}
	}
	return latest, true
}

// mapChangeType normalizes the provider's changeType strings, which
// can be compounds like "edit, rename".
func mapChangeType(raw string) review.ChangeType {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "delete"):
		return review.ChangeDelete
	case strings.Contains(lower, "rename"):
		return review.ChangeRename
	case strings.Contains(lower, "add"):
		return review.ChangeAdd
	case strings.Contains(lower, "edit"):
		return review.ChangeEdit
	default:
		return review.ChangeOther
	}
}
