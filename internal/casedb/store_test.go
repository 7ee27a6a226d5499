package casedb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/deepak6009/khetsaathi-sub000/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetCase(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := types.CaseRecord{
		Phone:    "+919000000001",
		Language: "Telugu",
		Crop:     "Rice",
		Location: "Guntur",
		Summary:  "Rice blast suspected on paddy field",
		Diagnosis: types.Diagnosis{
			Disease:  "Rice Blast",
			Severity: "high",
			Symptoms: []string{"spindle lesions"},
		},
		ImageURLs: []string{"http://img/1.jpg"},
	}
	id, err := s.SaveCase(ctx, rec)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}

	got, err := s.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Crop != "Rice" || got.Diagnosis.Disease != "Rice Blast" || len(got.ImageURLs) != 1 {
		t.Fatalf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
}

func TestSaveCaseUpsertPdfURL(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveCase(ctx, types.CaseRecord{Phone: "+91900", Summary: "first"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.SaveCase(ctx, types.CaseRecord{ID: id, Phone: "+91900", Summary: "with plan", PdfURL: "/plans/x.pdf"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetCase(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Summary != "with plan" || got.PdfURL != "/plans/x.pdf" {
		t.Fatalf("got %+v", got)
	}
}

func TestListCasesByPhone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.SaveCase(ctx, types.CaseRecord{Phone: "+91911", Crop: "Cotton"}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if _, err := s.SaveCase(ctx, types.CaseRecord{Phone: "+91922", Crop: "Rice"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.ListCasesByPhone(ctx, "+91911", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(got))
	}
	for _, rec := range got {
		if rec.Phone != "+91911" {
			t.Fatalf("wrong phone in %+v", rec)
		}
	}
}
