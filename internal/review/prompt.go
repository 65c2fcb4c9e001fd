package review

import "strings"

// PromptContext carries the pull-request metadata woven into the
// instruction payload.
type PromptContext struct {
	Title        string
	SourceBranch string
	TargetBranch string
}

// BuildInstructions renders the instruction payload written into the
// workspace for the reviewer to read.
func BuildInstructions(pc PromptContext, files []ChangedFile) string {
	var buf strings.Builder
	buf.WriteString("You are an automated pull request reviewer.\n\n")
	if pc.Title != "" {
		buf.WriteString("Pull request: " + pc.Title + "\n")
	}
	if pc.SourceBranch != "" || pc.TargetBranch != "" {
		buf.WriteString("Merging " + shortBranch(pc.SourceBranch) + " into " + shortBranch(pc.TargetBranch) + "\n")
	}
	buf.WriteString("\nReview the following changed files, which are staged in this workspace:\n")
	for _, file := range files {
		buf.WriteString("- " + file.Path + " (" + string(file.ChangeType) + ")\n")
	}
	buf.WriteString("\nFocus on correctness, security, and maintainability problems. ")
	buf.WriteString("Do not comment on style preferences or restate the diff.\n")
	buf.WriteString("\nRespond with JSON ONLY, no prose, using this schema:\n")
	buf.WriteString(`{"files":[{"filePath":"<path>","comments":[{"lineNumber":1,"comment":"...","severity":"suggestion|warning|issue"}],"summary":"optional per-file summary"}],"overallSummary":"..."}` + "\n")
	return buf.String()
}

func shortBranch(ref string) string {
	if ref == "" {
		return "?"
	}
	return strings.TrimPrefix(ref, "refs/heads/")
}
