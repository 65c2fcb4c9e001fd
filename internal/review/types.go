package review

// ChangeType classifies how a file changed within a pull request
// iteration.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeEdit   ChangeType = "edit"
	ChangeDelete ChangeType = "delete"
	ChangeRename ChangeType = "rename"
	ChangeOther  ChangeType = "other"
)

// Severity grades a single review comment.
type Severity string

const (
	SeveritySuggestion Severity = "suggestion"
	SeverityWarning    Severity = "warning"
	SeverityIssue      Severity = "issue"
)

// ChangedFile is one file in the diff under review. Content is fetched
// lazily and may be empty.
type ChangedFile struct {
	Path       string
	ChangeType ChangeType
	Content    string
}

// Comment is a single finding the reviewer produced for a file.
type Comment struct {
	FilePath   string   `json:"filePath"`
	LineNumber int      `json:"lineNumber,omitempty"`
	Text       string   `json:"comment"`
	Severity   Severity `json:"severity,omitempty"`
}

// FileResult carries the reviewer's findings for one file. When Summary
// is set the file is in summary mode and the summary supersedes the
// individual comments for posting.
type FileResult struct {
	FilePath string    `json:"filePath"`
	Comments []Comment `json:"comments"`
	Summary  string    `json:"summary,omitempty"`
}

// Outcome is the terminal artifact of one reviewer invocation.
type Outcome struct {
	Files          []FileResult `json:"files"`
	Success        bool         `json:"-"`
	Error          string       `json:"-"`
	OverallSummary string       `json:"overallSummary,omitempty"`
}

// failure builds a failed Outcome with the given error text.
func failure(msg string) Outcome {
	return Outcome{Success: false, Error: msg}
}
