package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/DeplanckeLab/scfair/pkg/config"
	"github.com/DeplanckeLab/scfair/pkg/logging"
)

const indexTimeout = 30 * time.Second

// ElasticsearchClient sends typed requests through the official client.
// Transport-level retries are disabled; ResilientClient owns retry policy.
type ElasticsearchClient struct {
	es     *elasticsearch.Client
	logger *zap.Logger
}

var _ Client = (*ElasticsearchClient)(nil)
var _ Pinger = (*ElasticsearchClient)(nil)

// NewElasticsearchClient creates a client for the configured cluster.
func NewElasticsearchClient(cfg *config.ElasticsearchConfig, logger *zap.Logger) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:           cfg.Addresses,
		Username:            cfg.Username,
		Password:            cfg.Password,
		APIKey:              cfg.APIKey,
		CompressRequestBody: cfg.CompressRequestBody,
		DisableRetry:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	logger = logger.Named("elasticsearch")
	for _, addr := range cfg.Addresses {
		logger.Info("Configured search backend", zap.String("address", logging.SanitizeConnectionString(addr)))
	}

	return &ElasticsearchClient{es: es, logger: logger}, nil
}

// Search runs req against index.
func (c *ElasticsearchClient) Search(ctx context.Context, index string, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, decodeBackendError(index, res.StatusCode, res.Body)
	}

	resp, err := ParseResponse(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", index, err)
	}

	c.logger.Debug("Search completed",
		zap.String("index", index),
		zap.Int64("took_ms", resp.Took),
		zap.Int64("total", resp.Total),
		zap.Int("aggregations", len(resp.Aggregations)),
	)
	return resp, nil
}

// Ping checks that the cluster answers.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to ping search backend: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search backend ping returned %s", res.Status())
	}
	return nil
}

// CreateIndex creates index with the given settings/mappings body. An index
// that already exists is left untouched.
func (c *ElasticsearchClient) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s mapping: %w", index, err)
	}

	res, err := esapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(raw),
	}.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		be := decodeBackendError(index, res.StatusCode, res.Body)
		if be.Type == "resource_already_exists_exception" {
			c.logger.Info("Index already exists", zap.String("index", index))
			return nil
		}
		return be
	}
	c.logger.Info("Created index", zap.String("index", index))
	return nil
}

// Index stores doc under id. It satisfies fixtures.Indexer so a fixture can
// be loaded into a live cluster; call Refresh afterwards to make it visible.
func (c *ElasticsearchClient) Index(index, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	res, err := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(raw),
	}.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("failed to index %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeBackendError(index, res.StatusCode, res.Body)
	}
	return nil
}

// Refresh makes recent writes to indices searchable.
func (c *ElasticsearchClient) Refresh(ctx context.Context, indices ...string) error {
	res, err := esapi.IndicesRefreshRequest{Index: indices}.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("failed to refresh %v: %w", indices, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return decodeBackendError(strings.Join(indices, ","), res.StatusCode, res.Body)
	}
	return nil
}
