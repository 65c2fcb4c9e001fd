// Package filter decides which changed files are worth sending to the
// reviewer: a fixed allow-list of reviewable extensions plus
// user-configured glob exclusions.
package filter

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// reviewableExtensions covers source and structured-text types the
// reviewer can say something useful about. Binaries, lockfiles, and
// generated formats stay out.
var reviewableExtensions = map[string]struct{}{
	".cs": {}, ".csx": {}, ".vb": {}, ".fs": {},
	".go": {}, ".rs": {}, ".c": {}, ".h": {}, ".cpp": {}, ".hpp": {}, ".cc": {},
	".java": {}, ".kt": {}, ".scala": {}, ".groovy": {},
	".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".vue": {}, ".svelte": {},
	".py": {}, ".rb": {}, ".php": {}, ".pl": {}, ".lua": {}, ".swift": {}, ".m": {},
	".sql": {}, ".graphql": {}, ".proto": {},
	".html": {}, ".css": {}, ".scss": {}, ".less": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".xml": {}, ".ini": {},
	".sh": {}, ".bash": {}, ".ps1": {}, ".psm1": {}, ".bat": {}, ".cmd": {},
	".md": {}, ".txt": {}, ".dockerfile": {}, ".tf": {}, ".bicep": {},
}

// ReviewableExtension reports whether the file's extension is in the
// allow-list.
func ReviewableExtension(filePath string) bool {
	ext := strings.ToLower(path.Ext(filePath))
	if ext == "" {
		// Extensionless files like Dockerfile or Makefile.
		base := strings.ToLower(path.Base(filePath))
		return base == "dockerfile" || base == "makefile"
	}
	_, ok := reviewableExtensions[ext]
	return ok
}

// Exclusion is a compiled, case-insensitive glob exclusion pattern.
type Exclusion struct {
	raw string
	re  *regexp.Regexp
}

// CompileExclusions turns glob patterns ('*' and '?' wildcards) into
// exclusion matchers. Invalid patterns cannot occur: every glob maps to
// a valid anchored regular expression.
func CompileExclusions(globs []string) []Exclusion {
	out := make([]Exclusion, 0, len(globs))
	for _, glob := range globs {
		glob = strings.TrimSpace(glob)
		if glob == "" {
			continue
		}
		out = append(out, Exclusion{raw: glob, re: globToRegexp(glob)})
	}
	return out
}

// Excluded reports whether the path matches any exclusion, testing both
// the bare file name and the full path.
func Excluded(filePath string, exclusions []Exclusion) bool {
	full := strings.TrimLeft(filepath.ToSlash(filePath), "/")
	base := path.Base(full)
	for _, ex := range exclusions {
		if ex.re.MatchString(base) || ex.re.MatchString(full) {
			return true
		}
	}
	return false
}

func globToRegexp(glob string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?i)^`)
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}
