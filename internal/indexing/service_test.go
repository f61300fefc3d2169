//nolint:testpackage // Exercising unexported indexing internals
package indexing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

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

type fakeWriter struct {
	docs []*Document
	err  error
}

func (w *fakeWriter) Upsert(_ context.Context, doc *Document) error {
	if w.err != nil {
		return w.err
	}
	w.docs = append(w.docs, doc)
	return nil
}

type fakePublisher struct {
	channels []string
}

func (p *fakePublisher) Publish(_ context.Context, channel string, _ domain.ArticleEvent) error {
	p.channels = append(p.channels, channel)
	return nil
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func articleColumns() []string {
	return []string{
		"id", "source_id", "title", "body", "url", "image_url", "language",
		"published_at", "ingested_at", "fingerprint", "processed", "indexed",
	}
}

func expectLoads(mock sqlmock.Sqlmock, articleID uuid.UUID, indexed bool) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, source_id, title").
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows(articleColumns()).AddRow(
			articleID, uuid.New(), "Flood displaces thousands in Mozambique",
			"Heavy rain continues.", "https://example.com/news/flood", "", "en",
			now, now, "fp", true, indexed,
		))

	if indexed {
		return
	}

	mock.ExpectQuery("SELECT id, article_id, category").
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "article_id", "category", "threat_type", "threat_level",
			"credibility_score", "summary", "classified_by", "created_at",
		}).AddRow(
			int64(1), articleID, "Environment", "flood", 2, 0.3,
			"Flood displaces thousands in Mozambique", "rule-based", now,
		))

	mock.ExpectQuery("SELECT country_code").
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows([]string{"country_code"}).AddRow("MZ"))

	mock.ExpectQuery("SELECT entity FROM article_entities").
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows([]string{"entity"}).AddRow("Mozambique Red Cross"))

	mock.ExpectQuery("SELECT category, COUNT").
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows([]string{"category", "votes"}).AddRow("helpful", 3))
}

func newService(db *sqlx.DB, writer DocumentWriter, pub Publisher) *Service {
	return NewService(
		database.NewArticleRepository(db),
		database.NewClassificationRepository(db),
		writer,
		pub,
		sharedMetrics(),
		logger.NewNop(),
	)
}

func TestService_Handle_IndexesAndMarks(t *testing.T) {
	db, mock := newMockDB(t)
	articleID := uuid.New()

	expectLoads(mock, articleID, false)
	mock.ExpectExec("UPDATE articles SET indexed = TRUE").
		WithArgs(articleID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	writer := &fakeWriter{}
	pub := &fakePublisher{}
	service := newService(db, writer, pub)

	if err := service.Handle(context.Background(), domain.NewArticleEvent(articleID)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(writer.docs) != 1 {
		t.Fatalf("indexed %d documents, want 1", len(writer.docs))
	}
	doc := writer.docs[0]
	if doc.ArticleID != articleID.String() {
		t.Errorf("ArticleID = %v, want %v", doc.ArticleID, articleID)
	}
	if doc.Category != "Environment" || doc.ThreatType != "flood" {
		t.Errorf("document classification = %v/%v, want Environment/flood", doc.Category, doc.ThreatType)
	}
	if len(doc.Countries) != 1 || doc.Countries[0] != "MZ" {
		t.Errorf("Countries = %v, want [MZ]", doc.Countries)
	}
	if len(doc.Entities) != 1 || doc.Entities[0] != "Mozambique Red Cross" {
		t.Errorf("Entities = %v, want [Mozambique Red Cross]", doc.Entities)
	}
	if doc.Votes["helpful"] != 3 {
		t.Errorf("Votes = %v, want helpful:3", doc.Votes)
	}

	if len(pub.channels) != 1 || pub.channels[0] != domain.StreamIndexed {
		t.Errorf("published to %v, want [%v]", pub.channels, domain.StreamIndexed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestService_Handle_UpsertFailureStillConsumesEvent(t *testing.T) {
	db, mock := newMockDB(t)
	articleID := uuid.New()

	// No UPDATE expectation: the indexed flag must stay false.
	expectLoads(mock, articleID, false)

	writer := &fakeWriter{err: errors.New("503 Service Unavailable")}
	pub := &fakePublisher{}
	service := newService(db, writer, pub)

	if err := service.Handle(context.Background(), domain.NewArticleEvent(articleID)); err != nil {
		t.Fatalf("Handle() error = %v, want nil so the delivery is acked", err)
	}

	if len(pub.channels) != 0 {
		t.Errorf("published %v, want nothing on failure", pub.channels)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestService_Handle_AlreadyIndexedIsNoOp(t *testing.T) {
	db, mock := newMockDB(t)
	articleID := uuid.New()

	expectLoads(mock, articleID, true)

	writer := &fakeWriter{}
	service := newService(db, writer, &fakePublisher{})

	if err := service.Handle(context.Background(), domain.NewArticleEvent(articleID)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(writer.docs) != 0 {
		t.Errorf("indexed %d documents, want 0", len(writer.docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestService_Handle_MissingArticleIsNoOp(t *testing.T) {
	db, mock := newMockDB(t)
	articleID := uuid.New()

	mock.ExpectQuery("SELECT id, source_id, title").
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows(articleColumns()))

	service := newService(db, &fakeWriter{}, &fakePublisher{})

	if err := service.Handle(context.Background(), domain.NewArticleEvent(articleID)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
