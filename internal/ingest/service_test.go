//nolint:testpackage // Exercising unexported ingestion internals
package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/threatwatch/pipeline/internal/broker"
	"github.com/threatwatch/pipeline/internal/database"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
	"github.com/threatwatch/pipeline/internal/metrics"
)

var (
	testMetrics     *metrics.Metrics
	testMetricsOnce sync.Once
)

func sharedMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.New()
	})
	return testMetrics
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *redis.Client) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })
	streams := broker.NewStreamsClientFromRedis(redisClient, "articles")

	service := NewService(
		database.NewSourceRepository(sqlxDB),
		database.NewArticleRepository(sqlxDB),
		nil, // fetchers are not exercised by item-level tests
		broker.NewPublisher(streams, logger.NewNop()),
		sharedMetrics(),
		logger.NewNop(),
	)

	return service, mock, redisClient
}

func duplicateErr() error {
	return &pq.Error{Code: "23505", Constraint: "articles_fingerprint_key"}
}

func testSource() *domain.Source {
	return &domain.Source{
		ID:       uuid.New(),
		Name:     "Relief Feed",
		Kind:     domain.SourceKindRSS,
		Endpoint: "https://relief.example.com/rss",
		Active:   true,
	}
}

func testItem() *domain.RawItem {
	return &domain.RawItem{
		Title:       "Flood displaces thousands in Mozambique",
		Body:        "Heavy rain continues across the region.",
		URL:         "https://example.com/news/flood",
		Language:    "en",
		PublishedAt: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		CountryTags: []string{"MZ"},
	}
}

func TestService_IngestItem_NewArticle(t *testing.T) {
	service, mock, redisClient := newTestService(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO articles").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO article_countries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := service.ingestItem(ctx, testSource(), testItem())
	if err != nil {
		t.Fatalf("ingestItem() error = %v", err)
	}
	if !created {
		t.Error("ingestItem() = false, want true for a new article")
	}

	streamLen, _ := redisClient.XLen(ctx, "articles:ingested").Result()
	if streamLen != 1 {
		t.Errorf("ingested stream has %d entries, want 1", streamLen)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestService_IngestItem_DuplicateFingerprintSkipped(t *testing.T) {
	service, mock, redisClient := newTestService(t)
	ctx := context.Background()

	// Same fingerprint already persisted: no insert, no event.
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	created, err := service.ingestItem(ctx, testSource(), testItem())
	if err != nil {
		t.Fatalf("ingestItem() error = %v", err)
	}
	if created {
		t.Error("ingestItem() = true, want false for a duplicate")
	}

	streamLen, _ := redisClient.XLen(ctx, "articles:ingested").Result()
	if streamLen != 0 {
		t.Errorf("ingested stream has %d entries, want 0", streamLen)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestService_IngestItem_InsertRaceResolvesToDuplicate(t *testing.T) {
	service, mock, redisClient := newTestService(t)
	ctx := context.Background()

	// The existence check misses, but a concurrent replica wins the insert.
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO articles").
		WillReturnError(duplicateErr())

	created, err := service.ingestItem(ctx, testSource(), testItem())
	if err != nil {
		t.Fatalf("ingestItem() error = %v", err)
	}
	if created {
		t.Error("ingestItem() = true, want false when losing the insert race")
	}

	streamLen, _ := redisClient.XLen(ctx, "articles:ingested").Result()
	if streamLen != 0 {
		t.Errorf("ingested stream has %d entries, want 0", streamLen)
	}
}

func TestScheduler_SkipsOverlappingTick(t *testing.T) {
	service, mock, _ := newTestService(t)
	scheduler := NewScheduler(service, time.Minute, logger.NewNop())

	// If the tick ran, it would consume this expectation.
	mock.ExpectQuery("SELECT id, name, kind").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	scheduler.mu.Lock()
	scheduler.tick(context.Background())
	scheduler.mu.Unlock()

	if err := mock.ExpectationsWereMet(); err == nil {
		t.Error("tick ran while the previous cycle still held the lock")
	}

	// With the lock free the tick runs the cycle.
	scheduler.tick(context.Background())
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations after free tick: %v", err)
	}
}

func TestScheduler_RunCyclesConcurrentlyAndStops(t *testing.T) {
	service, mock, _ := newTestService(t)
	scheduler := NewScheduler(service, time.Hour, logger.NewNop())

	mock.ExpectQuery("SELECT id, name, kind").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	// The first cycle runs off the scheduler goroutine; wait for it to
	// consume the query expectation.
	deadline := time.Now().Add(2 * time.Second)
	for mock.ExpectationsWereMet() != nil {
		if time.Now().After(deadline) {
			t.Fatal("initial cycle never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q, want unchanged", got)
	}
	if got := truncate("abcdefgh", 3); got != "abc" {
		t.Errorf("truncate() = %q, want abc", got)
	}

	// Multibyte titles must be cut in characters, on rune boundaries.
	wide := strings.Repeat("文", 600)
	got := truncate(wide, maxTitleLength)
	if utf8.RuneCountInString(got) != maxTitleLength {
		t.Errorf("truncate() kept %d runes, want %d", utf8.RuneCountInString(got), maxTitleLength)
	}
	if !utf8.ValidString(got) {
		t.Error("truncate() produced invalid UTF-8")
	}
}
