package review

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Reviewer CLIs wrap their real answer in several layers depending on
// version and flags: a JSON envelope with a "result" field, markdown
// code fences, or free-form prose around the document. Extract peels
// the layers in order, first match wins.

// envelope is the outer wrapper some reviewer CLIs emit around their
// textual answer. Only Result matters; the bookkeeping fields are
// ignored.
type envelope struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	Result    string `json:"result"`
	DurationM int64  `json:"duration_ms"`
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
}

var filesAnchor = regexp.MustCompile(`(?is)\{\s*"files"\s*:`)

// Extract locates a review document inside raw reviewer output and
// parses it. The second return reports whether extraction succeeded;
// it is never an error the caller should retry on.
func Extract(raw string) (Outcome, bool) {
	if nested, ok := unwrapEnvelope(raw); ok {
		return extractDocument(nested)
	}
	return extractDocument(raw)
}

// unwrapEnvelope parses the span between the first '{' and the last
// '}' as a result envelope. It reports true only when the envelope
// carried a non-empty result string to recurse into.
func unwrapEnvelope(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end <= start {
		return "", false
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw[start:end+1]), &env); err != nil {
		return "", false
	}
	if strings.TrimSpace(env.Result) == "" {
		return "", false
	}
	return env.Result, true
}

// extractDocument runs the fence-stripping, anchoring, and structural
// parse steps against one candidate text.
func extractDocument(candidate string) (Outcome, bool) {
	candidate = stripFences(candidate)
	span, ok := locateFilesObject(candidate)
	if !ok {
		return Outcome{}, false
	}
	var out Outcome
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return Outcome{}, false
	}
	backfillPaths(&out)
	out.Success = true
	return out, true
}

// stripFences unwraps a markdown code fence when one is present. A
// json-tagged fence always wins; a generic fence only counts when its
// content starts with '{'.
func stripFences(text string) string {
	if inner, ok := fencedBlock(text, "```json"); ok {
		return inner
	}
	if inner, ok := fencedBlock(text, "```"); ok {
		if strings.HasPrefix(strings.TrimSpace(inner), "{") {
			return inner
		}
	}
	return text
}

func fencedBlock(text, opener string) (string, bool) {
	start := strings.Index(text, opener)
	if start == -1 {
		return "", false
	}
	rest := text[start+len(opener):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}

// locateFilesObject finds the object whose first key is "files",
// tolerating any whitespace between the brace and the key, and scans
// forward by brace depth to the matching close brace.
func locateFilesObject(text string) (string, bool) {
	loc := filesAnchor.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	start := loc[0]
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// backfillPaths copies the enclosing file path onto comments that came
// back without one.
func backfillPaths(out *Outcome) {
	for i := range out.Files {
		for j := range out.Files[i].Comments {
			if strings.TrimSpace(out.Files[i].Comments[j].FilePath) == "" {
				out.Files[i].Comments[j].FilePath = out.Files[i].FilePath
			}
		}
	}
}

// unparseableOutcome is what a clean exit with no extractable document
// degrades to. Treating it as success avoids retrying an expensive
// invocation over a formatting hiccup.
func unparseableOutcome() Outcome {
	return Outcome{
		Success:        true,
		OverallSummary: "reviewer response could not be parsed; no comments extracted",
	}
}
