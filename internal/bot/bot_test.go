package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/elipriaulx/azdo-review-bot/internal/azdo"
	"github.com/elipriaulx/azdo-review-bot/internal/config"
	"github.com/elipriaulx/azdo-review-bot/internal/ledger"
	"github.com/elipriaulx/azdo-review-bot/internal/review"
)

type postedComment struct {
	prID     int
	filePath string
	line     int
	text     string
}

type fakeProvider struct {
	prs        map[string][]azdo.PullRequest
	listErr    map[string]error
	iterations map[int][]azdo.Iteration
	changes    map[int][]azdo.ChangeEntry
	contents   map[string]string
	posted     []postedComment
}

func (f *fakeProvider) ListOpenPullRequests(_ context.Context, _, repository string) ([]azdo.PullRequest, error) {
	if err := f.listErr[repository]; err != nil {
		return nil, err
	}
	return f.prs[repository], nil
}

func (f *fakeProvider) ListIterations(_ context.Context, _, _ string, prID int) ([]azdo.Iteration, error) {
	return f.iterations[prID], nil
}

func (f *fakeProvider) ListChangedFiles(_ context.Context, _, _ string, prID, _ int) ([]azdo.ChangeEntry, error) {
	return f.changes[prID], nil
}

func (f *fakeProvider) GetFileContent(_ context.Context, _, _, path, _ string) (string, error) {
	return f.contents[path], nil
}

func (f *fakeProvider) PostComment(_ context.Context, _, _ string, prID int, filePath string, line int, text string) error {
	f.posted = append(f.posted, postedComment{prID: prID, filePath: filePath, line: line, text: text})
	return nil
}

type fakeReviewer struct {
	calls   [][]review.ChangedFile
	outcome review.Outcome
	err     error
}

func (f *fakeReviewer) Review(_ context.Context, _ review.PromptContext, files []review.ChangedFile) (review.Outcome, error) {
	f.calls = append(f.calls, files)
	return f.outcome, f.err
}

func testConfig(repos ...string) config.Config {
	return config.Config{
		Project:      "proj",
		Repositories: repos,
		Review: config.ReviewConfig{
			MaxFileBytes:       50 * 1024,
			MaxCommentsPerFile: 2,
			ExcludeGlobs:       []string{"*.min.js"},
		},
	}
}

func singlePR(repo string, prID int, revision string) *fakeProvider {
	return &fakeProvider{
		prs: map[string][]azdo.PullRequest{
			repo: {{
				ID:         prID,
				Title:      "Add widget",
				Repository: azdo.Repository{ID: "repo-guid", Name: repo},
			}},
		},
		iterations: map[int][]azdo.Iteration{
			prID: {
				{ID: 1, SourceCommit: &azdo.Commit{CommitID: "old"}},
				{ID: 2, SourceCommit: &azdo.Commit{CommitID: revision}},
			},
		},
		changes:  map[int][]azdo.ChangeEntry{},
		contents: map[string]string{},
		listErr:  map[string]error{},
	}
}

func newTestBot(t *testing.T, cfg config.Config, prov *fakeProvider, rev *fakeReviewer) (*Bot, *ledger.Store) {
	t.Helper()
	store := ledger.NewStore(filepath.Join(t.TempDir(), "ledger.json"))
	return New(cfg, prov, rev, store, nil), store
}

func TestCycleFiltersBySizeTypeAndPattern(t *testing.T) {
	prov := singlePR("api", 7, "rev-1")
	prov.changes[7] = []azdo.ChangeEntry{
		{Item: azdo.ChangeItem{Path: "/a.cs"}, ChangeType: "edit"},
		{Item: azdo.ChangeItem{Path: "/b.min.js"}, ChangeType: "edit"},
		{Item: azdo.ChangeItem{Path: "/c.cs"}, ChangeType: "delete"},
		{Item: azdo.ChangeItem{Path: "/d.cs"}, ChangeType: "edit"},
	}
	prov.contents["/a.cs"] = strings.Repeat("x", 10*1024)
	prov.contents["/b.min.js"] = strings.Repeat("y", 1024)
	prov.contents["/c.cs"] = "deleted content"
	prov.contents["/d.cs"] = strings.Repeat("z", 60*1024)

	rev := &fakeReviewer{outcome: review.Outcome{Success: true}}
	b, _ := newTestBot(t, testConfig("api"), prov, rev)

	if err := b.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(rev.calls) != 1 {
		t.Fatalf("expected 1 review invocation, got %d", len(rev.calls))
	}
	files := rev.calls[0]
	if len(files) != 1 || files[0].Path != "a.cs" {
		t.Fatalf("expected only a.cs to survive filtering, got %+v", files)
	}
}

func TestCycleIsIdempotentPerRevision(t *testing.T) {
	prov := singlePR("api", 7, "rev-1")
	prov.changes[7] = []azdo.ChangeEntry{{Item: azdo.ChangeItem{Path: "/a.cs"}, ChangeType: "edit"}}
	prov.contents["/a.cs"] = "class A {}"

	rev := &fakeReviewer{outcome: review.Outcome{Success: true, Files: []review.FileResult{
		{FilePath: "a.cs", Comments: []review.Comment{{FilePath: "a.cs", Text: "hm"}}},
	}}}
	b, store := newTestBot(t, testConfig("api"), prov, rev)

	if err := b.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if len(rev.calls) != 1 {
		t.Fatalf("expected 1 invocation after first cycle, got %d", len(rev.calls))
	}
	firstPosted := len(prov.posted)
	if firstPosted == 0 {
		t.Fatalf("expected comments posted on first cycle")
	}

	if err := b.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(rev.calls) != 1 {
		t.Fatalf("second cycle must not re-invoke the reviewer")
	}
	if len(prov.posted) != firstPosted {
		t.Fatalf("second cycle must not post comments")
	}

	led := store.Load()
	if !led.HasReviewed(ledger.Key("proj", "api", 7), "rev-1") {
		t.Fatalf("expected revision marked reviewed")
	}
}

func TestCycleEmptyAfterFilteringMarksReviewed(t *testing.T) {
	prov := singlePR("api", 7, "rev-1")
	prov.changes[7] = []azdo.ChangeEntry{
		{Item: azdo.ChangeItem{Path: "/gone.cs"}, ChangeType: "delete"},
		{Item: azdo.ChangeItem{Path: "/logo.png"}, ChangeType: "add"},
	}

	rev := &fakeReviewer{outcome: review.Outcome{Success: true}}
	b, store := newTestBot(t, testConfig("api"), prov, rev)

	if err := b.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(rev.calls) != 0 {
		t.Fatalf("reviewer must not run for an empty diff")
	}
	if !store.Load().HasReviewed(ledger.Key("proj", "api", 7), "rev-1") {
		t.Fatalf("empty diff is a terminal success and must be marked")
	}
}

func TestCycleFailureLeavesRevisionUnmarked(t *testing.T) {
	prov := singlePR("api", 7, "rev-1")
	prov.changes[7] = []azdo.ChangeEntry{{Item: azdo.ChangeItem{Path: "/a.cs"}, ChangeType: "edit"}}
	prov.contents["/a.cs"] = "class A {}"

	rev := &fakeReviewer{outcome: review.Outcome{Success: false, Error: "reviewer exited with code 1"}}
	b, store := newTestBot(t, testConfig("api"), prov, rev)

	if err := b.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if store.Load().HasReviewed(ledger.Key("proj", "api", 7), "rev-1") {
		t.Fatalf("failed review must leave the revision unmarked")
	}
	if len(prov.posted) != 0 {
		t.Fatalf("failed review must not post comments")
	}

	// Next cycle retries.
	if err := b.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(rev.calls) != 2 {
		t.Fatalf("expected retry on next cycle, got %d calls", len(rev.calls))
	}
}

func TestCyclePostsCommentsWithTruncationAndSummaries(t *testing.T) {
	prov := singlePR("api", 7, "rev-1")
	prov.changes[7] = []azdo.ChangeEntry{{Item: azdo.ChangeItem{Path: "/a.cs"}, ChangeType: "edit"}}
	prov.contents["/a.cs"] = "class A {}"

	rev := &fakeReviewer{outcome: review.Outcome{
		Success: true,
		Files: []review.FileResult{
			{
				FilePath: "a.cs",
				Comments: []review.Comment{
					{FilePath: "a.cs", LineNumber: 1, Text: "one", Severity: review.SeverityIssue},
					{FilePath: "a.cs", LineNumber: 2, Text: "two", Severity: review.SeverityWarning},
					{FilePath: "a.cs", LineNumber: 3, Text: "three", Severity: review.SeveritySuggestion},
				},
			},
			{FilePath: "b.cs", Summary: "summary instead of comments",
				Comments: []review.Comment{{FilePath: "b.cs", Text: "superseded"}}},
		},
		OverallSummary: "overall fine",
	}}
	b, _ := newTestBot(t, testConfig("api"), prov, rev)

	if err := b.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	// 2 comments (max per file) + truncation notice + 1 summary thread
	// + 1 overall summary thread.
	if len(prov.posted) != 5 {
		t.Fatalf("expected 5 posts, got %d: %+v", len(prov.posted), prov.posted)
	}
	if prov.posted[0].text != "[issue] one" || prov.posted[0].line != 1 {
		t.Fatalf("unexpected first post %+v", prov.posted[0])
	}
	if !strings.Contains(prov.posted[2].text, "1 additional comment") {
		t.Fatalf("expected truncation notice, got %q", prov.posted[2].text)
	}
	if prov.posted[3].text != "summary instead of comments" {
		t.Fatalf("expected summary-mode thread, got %+v", prov.posted[3])
	}
	if prov.posted[4].filePath != "" || prov.posted[4].text != "overall fine" {
		t.Fatalf("expected overall summary thread, got %+v", prov.posted[4])
	}
}

func TestCycleCleanupPreservesErroredRepoKeys(t *testing.T) {
	prov := &fakeProvider{
		prs:        map[string][]azdo.PullRequest{"alpha": {}},
		listErr:    map[string]error{"beta": errors.New("503 upstream")},
		iterations: map[int][]azdo.Iteration{},
		changes:    map[int][]azdo.ChangeEntry{},
		contents:   map[string]string{},
	}
	rev := &fakeReviewer{outcome: review.Outcome{Success: true}}
	b, store := newTestBot(t, testConfig("alpha", "beta"), prov, rev)

	seed := store.Load()
	seed.MarkReviewed(ledger.Key("proj", "alpha", 1), "closed-rev")
	seed.MarkReviewed(ledger.Key("proj", "beta", 2), "rev-b")
	if err := store.Save(seed); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	if err := b.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	led := store.Load()
	if led.HasReviewed(ledger.Key("proj", "alpha", 1), "closed-rev") {
		t.Fatalf("closed pull request key should have been cleaned up")
	}
	if !led.HasReviewed(ledger.Key("proj", "beta", 2), "rev-b") {
		t.Fatalf("keys of an errored repository must survive cleanup")
	}
}

func TestLatestIterationPicksGreatestID(t *testing.T) {
	iterations := []azdo.Iteration{
		{ID: 3, SourceCommit: &azdo.Commit{CommitID: "c"}},
		{ID: 1, SourceCommit: &azdo.Commit{CommitID: "a"}},
		{ID: 2, SourceCommit: &azdo.Commit{CommitID: "b"}},
	}
	latest, ok := latestIteration(iterations)
	if !ok || latest.SourceRevision() != "c" {
		t.Fatalf("unexpected latest %+v", latest)
	}
	if _, ok := latestIteration(nil); ok {
		t.Fatalf("expected no iteration")
	}
}

func TestMapChangeType(t *testing.T) {
	cases := map[string]review.ChangeType{
		"add":          review.ChangeAdd,
		"edit":         review.ChangeEdit,
		"delete":       review.ChangeDelete,
		"edit, rename": review.ChangeRename,
		"Delete":       review.ChangeDelete,
		"undelete":     review.ChangeDelete,
		"weird":        review.ChangeOther,
	}
	for raw, want := range cases {
		if got := mapChangeType(raw); got != want {
			t.Errorf("mapChangeType(%q) = %v, want %v", raw, got, want)
		}
	}
}
