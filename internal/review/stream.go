package review

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"strings"
)

// captureStream reads one output pipe incrementally, line-buffered, so
// a chatty reviewer never fills a pipe and deadlocks the wait. Every
// byte lands in buf; complete lines are echoed to the debug log.
func captureStream(r io.Reader, buf *bytes.Buffer, name string) {
	reader := bufio.NewReader(r)
	var lineBuf bytes.Buffer
	flush := func() {
		if lineBuf.Len() == 0 {
			return
		}
		line := strings.TrimSpace(lineBuf.String())
		lineBuf.Reset()
		if line != "" {
			slog.Debug("reviewer output", "stream", name, "line", line)
		}
	}

	for {
		chunk, err := reader.ReadSlice('\n')
		if len(chunk) > 0 {
			buf.Write(chunk)
			lineBuf.Write(chunk)
			if chunk[len(chunk)-1] == '\n' {
				flush()
			}
		}
		if err != nil {
			if err == bufio.ErrBufferFull {
				continue
			}
			flush()
			return
		}
	}
}

// excerpt bounds captured output for inclusion in error messages.
func excerpt(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
