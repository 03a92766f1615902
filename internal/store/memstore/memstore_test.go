package memstore

import (
	"context"
	"errors"
	"testing"

	"YcrudAPI/internal/crud"
)

func TestCreateGeneratesIDs(t *testing.T) {
	ctx := context.Background()
	s := New()
	n := 0
	s.NewID = func() any { n++; return n }

	out, err := s.Create(ctx, "notes", crud.Document{"text": "a"}, crud.Document{"_id": "given", "text": "b"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if out[0]["_id"] != 1 || out[1]["_id"] != "given" {
		t.Fatalf("unexpected ids: %v", out)
	}
	if c, _ := s.Count(ctx, "notes", crud.Filter{}); c != 2 {
		t.Fatalf("expected 2 documents, got %d", c)
	}
}

func TestUpdateReplaceDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("notes", crud.Document{"_id": "n1", "text": "a", "pinned": true})
	byID := crud.Filter{"_id": map[string]any{"$eq": "n1"}}

	updated, err := s.FindOneAndUpdate(ctx, "notes", byID, crud.Document{"text": "b"})
	if err != nil || updated["text"] != "b" || updated["pinned"] != true {
		t.Fatalf("FindOneAndUpdate = %v, %v", updated, err)
	}

	if err := s.ReplaceOne(ctx, "notes", byID, crud.Document{"_id": "other", "text": "c"}); err != nil {
		t.Fatalf("ReplaceOne failed: %v", err)
	}
	got, _ := s.FindByID(ctx, "notes", "n1")
	if got["text"] != "c" || got["pinned"] != nil {
		t.Fatalf("replace must keep identity and drop old fields: %v", got)
	}

	deleted, err := s.FindOneAndDelete(ctx, "notes", byID)
	if err != nil || deleted["_id"] != "n1" {
		t.Fatalf("FindOneAndDelete = %v, %v", deleted, err)
	}
	if got, _ := s.FindByID(ctx, "notes", "n1"); got != nil {
		t.Fatalf("expected no document, got %v", got)
	}
	if missing, err := s.FindOneAndDelete(ctx, "notes", byID); err != nil || missing != nil {
		t.Fatalf("delete of missing document = %v, %v", missing, err)
	}
	if err := s.ReplaceOne(ctx, "notes", byID, crud.Document{"text": "d"}); !errors.Is(err, crud.ErrNoMatch) {
		t.Fatalf("replace of missing document = %v, want ErrNoMatch", err)
	}
}

func TestFindDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("notes", crud.Document{"_id": "n1", "text": "a"})

	docs, err := s.Find(ctx, &crud.Query{Collection: "notes"})
	if err != nil || len(docs) != 1 {
		t.Fatalf("Find = %v, %v", docs, err)
	}
	docs[0]["text"] = "mutated"
	again, _ := s.FindByID(ctx, "notes", "n1")
	if again["text"] != "a" {
		t.Fatalf("stored document was mutated: %v", again)
	}
}
