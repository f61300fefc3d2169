package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/threatwatch/pipeline/internal/config"
	"github.com/threatwatch/pipeline/internal/logger"
)

// NewElasticsearchClient creates and pings an Elasticsearch client.
func NewElasticsearchClient(ctx context.Context, cfg config.ElasticsearchConfig, log logger.Logger) (*es.Client, error) {
	clientConfig := es.Config{
		Addresses: []string{normalizeURL(cfg.URL)},
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned %s", res.Status())
	}

	log.Info("elasticsearch connection established", logger.String("url", cfg.URL))
	return client, nil
}

func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

// Writer upserts documents into a single index.
type Writer struct {
	client *es.Client
	index  string
}

// NewWriter creates a Writer for the given index.
func NewWriter(client *es.Client, index string) *Writer {
	return &Writer{client: client, index: index}
}

// Upsert indexes the document under its article ID, overwriting any
// previous version.
func (w *Writer) Upsert(ctx context.Context, doc *Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := w.client.Index(
		w.index,
		bytes.NewReader(body),
		w.client.Index.WithContext(ctx),
		w.client.Index.WithDocumentID(doc.ArticleID),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document: %s", res.String())
	}
	return nil
}
