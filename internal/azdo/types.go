package azdo

// Wire types for the Azure DevOps git REST surface this bot consumes.
// List responses arrive as {"count": n, "value": [...]} envelopes.

type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

type PullRequest struct {
	ID           int        `json:"pullRequestId"`
	Title        string     `json:"title"`
	SourceBranch string     `json:"sourceRefName"`
	TargetBranch string     `json:"targetRefName"`
	Repository   Repository `json:"repository"`
	LastMerge    *Commit    `json:"lastMergeSourceCommit"`
}

type Repository struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Commit struct {
	CommitID string `json:"commitId"`
}

// Iteration is one discrete update to a pull request; its source
// commit is the revision the bot keys reviews on.
type Iteration struct {
	ID           int     `json:"id"`
	SourceCommit *Commit `json:"sourceRefCommit"`
}

// SourceRevision returns the commit hash behind this iteration, or ""
// when the provider omitted it.
func (it Iteration) SourceRevision() string {
	if it.SourceCommit == nil {
		return ""
	}
	return it.SourceCommit.CommitID
}

// ChangeEntry is one changed file inside an iteration.
type ChangeEntry struct {
	Item       ChangeItem `json:"item"`
	ChangeType string     `json:"changeType"`
}

type ChangeItem struct {
	Path string `json:"path"`
}

// comment thread payloads

type commentThread struct {
	Comments      []threadComment `json:"comments"`
	Status        int             `json:"status"`
	ThreadContext *threadContext  `json:"threadContext,omitempty"`
}

type threadComment struct {
	Content     string `json:"content"`
	CommentType int    `json:"commentType"`
}

type threadContext struct {
	FilePath       string    `json:"filePath"`
	RightFileStart *position `json:"rightFileStart,omitempty"`
	RightFileEnd   *position `json:"rightFileEnd,omitempty"`
}

type position struct {
	Line   int `json:"line"`
	Offset int `json:"offset"`
}
