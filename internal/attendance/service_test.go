package attendance

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/akada-sms/akada/internal/shared"
	_ "github.com/akada-sms/akada/testing"
)

type stubStore struct {
	saved   []Record
	records []Record
	err     error
}

func (s *stubStore) SaveRecord(ctx context.Context, rec Record) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.saved = append(s.saved, rec)
	return int64(len(s.saved)), nil
}

func (s *stubStore) ListByDate(ctx context.Context, schoolID int64, date time.Time) ([]Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

// stubRoster maps students to the school that owns them.
type stubRoster struct {
	owners map[int64]int64
}

func (r *stubRoster) SchoolOf(ctx context.Context, id int64) (int64, error) {
	owner, ok := r.owners[id]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return owner, nil
}

func newTestService(store *stubStore, roster *stubRoster) *Service {
	svc := NewService(slog.Default(), store, roster)
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	}
	return svc
}

func validRecord() Record {
	return Record{
		SchoolID:  4,
		StudentID: 31,
		Date:      time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		Status:    StatusPresent,
	}
}

func TestMarkSavesRecord(t *testing.T) {
	store := &stubStore{}
	roster := &stubRoster{owners: map[int64]int64{31: 4}}
	svc := newTestService(store, roster)

	id, err := svc.Mark(context.Background(), validRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected record id 1, got %d", id)
	}
	if len(store.saved) != 1 || store.saved[0].Status != StatusPresent {
		t.Fatalf("expected one saved record, got %v", store.saved)
	}
}

func TestMarkRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(&stubStore{}, &stubRoster{})

	rec := validRecord()
	rec.Status = "vacationing"
	_, err := svc.Mark(context.Background(), rec)
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestMarkRejectsFutureDate(t *testing.T) {
	roster := &stubRoster{owners: map[int64]int64{31: 4}}
	svc := newTestService(&stubStore{}, roster)

	rec := validRecord()
	rec.Date = time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC)
	_, err := svc.Mark(context.Background(), rec)
	if !errors.Is(err, ErrFutureDate) {
		t.Fatalf("expected ErrFutureDate, got %v", err)
	}
}

func TestMarkCrossSchoolStudentIsNotFound(t *testing.T) {
	// A student id from another tenant behaves exactly like a missing one.
	store := &stubStore{}
	roster := &stubRoster{owners: map[int64]int64{31: 99}}
	svc := newTestService(store, roster)

	_, err := svc.Mark(context.Background(), validRecord())
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("no record should reach the store")
	}
}

func TestStatusVocabulary(t *testing.T) {
	for _, s := range Statuses() {
		if !s.Valid() {
			t.Fatalf("listed status %q must be valid", s)
		}
	}
	if Status("").Valid() {
		t.Fatal("empty status must not be valid")
	}
}
