package opensearch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/BRO3886/story-indexer/internal/search"
	"github.com/BRO3886/story-indexer/internal/types"
	external "github.com/opensearch-project/opensearch-go/v2"
	api "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

type Config struct {
	URLs       []string
	Username   string
	Password   string
	MaxRetries int
	Insecure   bool
	Index      string
	BuffSize   int
}

// indexBody maps the Solr style dynamic field suffixes the records use.
const indexBody = `{
    "settings": {
        "index": {
            "number_of_shards": 1,
            "number_of_replicas": 0
        }
    },
    "mappings": {
        "dynamic_templates": [
            {"text_fields": {"match": "*_t", "mapping": {"type": "text"}}},
            {"string_fields": {"match": "*_s", "mapping": {"type": "keyword"}}},
            {"string_sets": {"match": "*_ss", "mapping": {"type": "keyword"}}}
        ],
        "properties": {
            "id": {"type": "keyword"}
        }
    }
}`

type openSearchSink struct {
	client   *external.Client
	index    string
	buff     []types.IndexRecord
	buffSize int
	logger   *slog.Logger
	m        sync.Mutex
}

func New(ctx context.Context, c Config, logger *slog.Logger) (search.Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := external.NewClient(external.Config{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: c.Insecure},
		},
		Addresses:  c.URLs,
		MaxRetries: c.MaxRetries,
		Username:   c.Username,
		Password:   c.Password,
	})
	if err != nil {
		return nil, err
	}

	buffSize := c.BuffSize
	if buffSize <= 0 {
		buffSize = 500
	}

	s := &openSearchSink{
		client:   client,
		index:    c.Index,
		buff:     make([]types.IndexRecord, 0, buffSize),
		buffSize: buffSize,
		logger:   logger.With("component", "opensearch", "index", c.Index),
	}

	if err := s.checkAndCreateIndex(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *openSearchSink) checkAndCreateIndex(ctx context.Context) error {
	exists := api.IndicesExistsRequest{Index: []string{s.index}}
	if resp, err := exists.Do(ctx, s.client); err == nil {
		resp.Body.Close()
		// early return if index already exists
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}

	req := api.IndicesCreateRequest{
		Index: s.index,
		Body:  strings.NewReader(indexBody),
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	if err := checkResponse(resp, "failed to create index"); err != nil {
		return err
	}

	if resp.HasWarnings() {
		s.logger.Warn("index created with warnings", "warnings", resp.Warnings())
	}
	s.logger.Info("index created")

	return nil
}

// DeleteAll drops every document. The deletion becomes visible on Commit.
func (s *openSearchSink) DeleteAll(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.buff = s.buff[:0]

	req := api.DeleteByQueryRequest{
		Index:     []string{s.index},
		Body:      strings.NewReader(`{"query": {"match_all": {}}}`),
		Conflicts: "proceed",
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	if err := checkResponse(resp, "failed to delete documents"); err != nil {
		return err
	}

	s.logger.Info("deleted all documents")
	return nil
}

// Add buffers records and sends a bulk request each time the buffer fills.
func (s *openSearchSink) Add(ctx context.Context, records []types.IndexRecord) error {
	s.m.Lock()
	defer s.m.Unlock()

	for _, rec := range records {
		s.buff = append(s.buff, rec)
		if len(s.buff) >= s.buffSize {
			if err := s.flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Commit flushes what is left in the buffer and refreshes the index.
func (s *openSearchSink) Commit(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()

	if err := s.flush(ctx); err != nil {
		return err
	}

	req := api.IndicesRefreshRequest{Index: []string{s.index}}
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	if err := checkResponse(resp, "failed to refresh index"); err != nil {
		return err
	}

	s.logger.Debug("index refreshed")
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (s *openSearchSink) flush(ctx context.Context) error {
	if len(s.buff) == 0 {
		return nil
	}

	s.logger.Debug("flushing documents", "count", len(s.buff))

	var bulkReq strings.Builder
	for _, rec := range s.buff {
		action, err := json.Marshal(map[string]any{
			"index": map[string]string{"_index": s.index, "_id": rec.ID},
		})
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", rec.ID, err)
		}
		bulkReq.Write(action)
		bulkReq.WriteString("\n")
		bulkReq.Write(data)
		bulkReq.WriteString("\n")
	}

	req := api.BulkRequest{
		Body: strings.NewReader(bulkReq.String()),
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.IsError() {
		return fmt.Errorf("failed to flush documents: %s %s", resp.Status(), string(body))
	}

	var bulk bulkResponse
	if err := json.Unmarshal(body, &bulk); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulk.Errors {
		var failed []string
		for _, item := range bulk.Items {
			for _, result := range item {
				if result.Error != nil {
					failed = append(failed, fmt.Sprintf("%s: %s %s", result.ID, result.Error.Type, result.Error.Reason))
				}
			}
		}
		return fmt.Errorf("bulk request rejected %d documents: %s", len(failed), strings.Join(failed, "; "))
	}

	s.logger.Info("flushed documents", "count", len(s.buff))
	s.buff = make([]types.IndexRecord, 0, s.buffSize)

	return nil
}

func (s *openSearchSink) Count(ctx context.Context) (int, error) {
	req := api.CountRequest{Index: []string{s.index}}
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("failed to count documents: %s %s", resp.Status(), string(body))
	}

	var count struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &count); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return count.Count, nil
}

func (s *openSearchSink) Close() error {
	return nil
}

func checkResponse(resp *api.Response, msg string) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%s: %s %s", msg, resp.Status(), string(body))
	}
	return nil
}
