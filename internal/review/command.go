package review

import (
	"fmt"
	"strings"
)

// splitCommand breaks a configured reviewer command line into the
// executable and its arguments.
func splitCommand(command string) (string, []string, error) {
	args, err := parseCommandLine(command)
	if err != nil {
		return "", nil, err
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("reviewer command required")
	}
	return args[0], args[1:], nil
}

// applyTemplate substitutes $PROMPT and $WORKSPACE placeholders in the
// configured arguments and reports whether the prompt placeholder was
// used anywhere.
func applyTemplate(args []string, prompt, workspaceDir string) ([]string, bool) {
	out := make([]string, len(args))
	promptUsed := false
	for i, arg := range args {
		next := strings.ReplaceAll(arg, "$PROMPT", prompt)
		if next != arg {
			promptUsed = true
		}
		next = strings.ReplaceAll(next, "$WORKSPACE", workspaceDir)
		out[i] = next
	}
	return out, promptUsed
}

// parseCommandLine splits a command string honoring single quotes,
// double quotes, and backslash escapes.
func parseCommandLine(command string) ([]string, error) {
	var args []string
	var buf []rune
	inSingle := false
	inDouble := false
	escaped := false

	flush := func() {
		if len(buf) == 0 {
			return
		}
		args = append(args, string(buf))
		buf = buf[:0]
	}

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if escaped {
			buf = append(buf, r)
			escaped = false
			continue
		}
		if r == '\\' && !inSingle {
			var next rune
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if inDouble {
				if next == '"' || next == '\\' || next == '$' || next == '\n' {
					escaped = true
					continue
				}
			} else {
				if next == ' ' || next == '\t' || next == '\n' || next == '"' || next == '\\' {
					escaped = true
					continue
				}
			}
			buf = append(buf, r)
			continue
		}
		if r == '"' && !inSingle {
			inDouble = !inDouble
			continue
		}
		if r == '\'' && !inDouble {
			inSingle = !inSingle
			continue
		}
		if !inSingle && !inDouble && (r == ' ' || r == '\t' || r == '\n') {
			flush()
			continue
		}
		buf = append(buf, r)
	}
	if escaped || inSingle || inDouble {
		return nil, fmt.Errorf("unterminated quote in command")
	}
	flush()
	return args, nil
}
