// Package solr writes index records through Solr's JSON update handler.
package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BRO3886/story-indexer/internal/search"
	"github.com/BRO3886/story-indexer/internal/types"
)

type Config struct {
	// Endpoint is the core or collection URL, e.g.
	// http://localhost:8983/solr/storypages.
	Endpoint string
	Timeout  time.Duration
}

type solrSink struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func New(c Config, logger *slog.Logger) (search.Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := url.Parse(c.Endpoint); err != nil || c.Endpoint == "" {
		return nil, fmt.Errorf("invalid solr endpoint %q", c.Endpoint)
	}
	return &solrSink{
		endpoint: strings.TrimRight(c.Endpoint, "/"),
		client:   &http.Client{Timeout: c.Timeout},
		logger:   logger.With("component", "solr"),
	}, nil
}

func (s *solrSink) DeleteAll(ctx context.Context) error {
	if err := s.update(ctx, "", map[string]any{"delete": map[string]string{"query": "*:*"}}); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	s.logger.Info("deleted all documents")
	return nil
}

func (s *solrSink) Add(ctx context.Context, records []types.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.update(ctx, "", records); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	s.logger.Info("added documents", "count", len(records))
	return nil
}

func (s *solrSink) Commit(ctx context.Context) error {
	if err := s.update(ctx, "commit=true", map[string]any{"commit": map[string]any{}}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Debug("committed")
	return nil
}

func (s *solrSink) Count(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/select?q=*:*&rows=0&wt=json", nil)
	if err != nil {
		return 0, err
	}
	body, err := s.do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}

	var result struct {
		Response struct {
			NumFound int `json:"numFound"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to decode select response: %w", err)
	}
	return result.Response.NumFound, nil
}

func (s *solrSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *solrSink) update(ctx context.Context, query string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	target := s.endpoint + "/update"
	if query != "" {
		target += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = s.do(req)
	return err
}

func (s *solrSink) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s", resp.Status, string(body))
	}
	return body, nil
}
