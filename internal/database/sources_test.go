//nolint:testpackage // Testing internal repositories requires same package access
package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/threatwatch/pipeline/internal/domain"
)

func TestSourceRepository_ListDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSourceRepository(db)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	columns := []string{
		"id", "name", "kind", "endpoint", "fetch_interval", "language",
		"country", "active", "last_fetched", "created_at",
	}

	neverFetched := uuid.New()
	overdue := uuid.New()
	lastFetched := now.Add(-2 * time.Hour)

	mock.ExpectQuery("SELECT id, name, kind").
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(neverFetched, "Relief Feed", "rss", "https://relief.example.com/rss",
				30, "en", "", true, nil, now.Add(-24*time.Hour)).
			AddRow(overdue, "World Query API", "newsapi", "https://api.example.com/news",
				60, "en", "MZ", true, lastFetched, now.Add(-24*time.Hour)))

	sources, err := repo.ListDue(context.Background(), now)
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}

	if len(sources) != 2 {
		t.Fatalf("ListDue() returned %d sources, want 2", len(sources))
	}
	if sources[0].ID != neverFetched {
		t.Errorf("first source = %v, want never-fetched source first", sources[0].ID)
	}
	if sources[1].Kind != domain.SourceKindNewsAPI {
		t.Errorf("second source kind = %v, want %v", sources[1].Kind, domain.SourceKindNewsAPI)
	}
	if sources[1].LastFetched == nil || !sources[1].LastFetched.Equal(lastFetched) {
		t.Errorf("LastFetched = %v, want %v", sources[1].LastFetched, lastFetched)
	}
}

func TestSourceRepository_TouchLastFetched(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSourceRepository(db)
	id := uuid.New()
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE sources SET last_fetched").
		WithArgs(id, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TouchLastFetched(context.Background(), id, at); err != nil {
		t.Errorf("TouchLastFetched() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
