// Package jsonl reads story documents from a newline delimited JSON export,
// one story per line, for runs without a database.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/BRO3886/story-indexer/internal/source"
	"github.com/BRO3886/story-indexer/internal/types"
)

const maxLineSize = 16 << 20

type fileSource struct {
	path   string
	logger *slog.Logger
}

func New(path string, logger *slog.Logger) source.Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileSource{path: path, logger: logger.With("component", "jsonl")}
}

func (s *fileSource) Fetch(ctx context.Context, filter source.Filter) (source.Cursor, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open stories file: %w", err)
	}
	s.logger.Info("reading stories", "path", s.path)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &cursor{file: f, scanner: scanner, filter: filter}, nil
}

func (s *fileSource) Close(ctx context.Context) error {
	return nil
}

// header holds the keys the filter matches on.
type header struct {
	ID       types.DocumentID `json:"_id"`
	AppName  string           `json:"appname"`
	PageType string           `json:"pageType"`
	Status   string           `json:"status"`
	Language string           `json:"language"`
}

func (h header) matches(f source.Filter) bool {
	return (f.AppName == "" || h.AppName == f.AppName) &&
		(f.PageType == "" || h.PageType == f.PageType) &&
		(f.Status == "" || h.Status == f.Status) &&
		(f.Language == "" || h.Language == f.Language)
}

type cursor struct {
	file    *os.File
	scanner *bufio.Scanner
	filter  source.Filter
	line    []byte
	lineNo  int
	err     error
}

func (c *cursor) Next(ctx context.Context) bool {
	for {
		if err := ctx.Err(); err != nil {
			c.err = err
			return false
		}
		if !c.scanner.Scan() {
			c.err = c.scanner.Err()
			return false
		}
		c.lineNo++

		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if !bytes.Equal(line, []byte("null")) {
			var h header
			if err := json.Unmarshal(line, &h); err == nil && !h.matches(c.filter) {
				continue
			}
		}
		c.line = append(c.line[:0], line...)
		return true
	}
}

func (c *cursor) Document() (*types.StoryDocument, error) {
	if bytes.Equal(c.line, []byte("null")) {
		return nil, nil
	}
	var doc types.StoryDocument
	if err := json.Unmarshal(c.line, &doc); err != nil {
		var h header
		_ = json.Unmarshal(c.line, &h)
		return nil, &source.DecodeError{ID: h.ID.String(), Err: fmt.Errorf("line %d: %w", c.lineNo, err)}
	}
	return &doc, nil
}

func (c *cursor) Err() error {
	return c.err
}

func (c *cursor) Close(ctx context.Context) error {
	return c.file.Close()
}
