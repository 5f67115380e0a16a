package models_test

import (
	"testing"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/models"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	hourAgo := now.Add(-1 * time.Hour)
	dayAndHourAgo := now.Add(-25 * time.Hour)
	exactlyWindow := now.Add(-models.SyncFreshnessWindow)

	cases := []struct {
		name   string
		record *models.SyncRecord
		want   models.SyncStatus
	}{
		{
			name:   "no record at all",
			record: nil,
			want:   models.SyncStatusNever,
		},
		{
			name:   "record without sync time",
			record: &models.SyncRecord{},
			want:   models.SyncStatusNever,
		},
		{
			name:   "recent sync is live",
			record: &models.SyncRecord{LastSyncTime: &hourAgo},
			want:   models.SyncStatusLive,
		},
		{
			name:   "exactly at the window is still live",
			record: &models.SyncRecord{LastSyncTime: &exactlyWindow},
			want:   models.SyncStatusLive,
		},
		{
			name:   "stale sync decays to outdated",
			record: &models.SyncRecord{LastSyncTime: &dayAndHourAgo},
			want:   models.SyncStatusOutdated,
		},
		{
			name:   "pending wins over recency",
			record: &models.SyncRecord{LastSyncTime: &hourAgo, Pending: true},
			want:   models.SyncStatusPending,
		},
		{
			name:   "pending wins over error",
			record: &models.SyncRecord{Pending: true, ErrorFlag: true},
			want:   models.SyncStatusPending,
		},
		{
			name:   "error wins over recency",
			record: &models.SyncRecord{LastSyncTime: &hourAgo, ErrorFlag: true},
			want:   models.SyncStatusError,
		},
		{
			name:   "error wins over never",
			record: &models.SyncRecord{ErrorFlag: true},
			want:   models.SyncStatusError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.record.DeriveStatus(now); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAutoSyncFields(t *testing.T) {
	var nilRecord *models.SyncRecord
	fields, err := nilRecord.AutoSyncFields()
	if err != nil || fields != nil {
		t.Fatalf("nil record: got (%v, %v)", fields, err)
	}

	record := &models.SyncRecord{AutoSyncFieldsJSON: []byte(`["title","status"]`)}
	fields, err = record.AutoSyncFields()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 2 || fields[0] != "title" || fields[1] != "status" {
		t.Fatalf("got %v", fields)
	}

	record = &models.SyncRecord{AutoSyncFieldsJSON: []byte(`not json`)}
	if _, err := record.AutoSyncFields(); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}
