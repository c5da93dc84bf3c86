package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

const maxLineBytes = 4 << 20

// readPosts decodes one raw post per line. Blank lines are skipped, and so
// are unsigned drafts without an id.
func readPosts(r io.Reader, logger *slog.Logger) ([]scrutiny.RawPost, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var posts []scrutiny.RawPost
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var p scrutiny.RawPost
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if p.ID == "" {
			logger.Warn("skipping post without id", "line", line)
			continue
		}
		posts = append(posts, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return posts, nil
}
