package snapshot

import (
	"strings"
	"testing"
	"time"
)

const testID = "123e4567-e89b-12d3-a456-426614174000"

func TestSaveGetReadImageDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	meta := Meta{
		ID:            testID,
		TargetID:      "TAB1",
		Format:        "png",
		SizeBytes:     4,
		CreatedAt:     time.Now().UTC(),
		Symbol:        "AAPL",
		EngineVersion: "9.5.1",
	}
	img := []byte{0x89, 'P', 'N', 'G'}
	if err := store.Save(meta, img); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(testID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Symbol != "AAPL" || got.EngineVersion != "9.5.1" {
		t.Fatalf("meta = %+v; want AAPL/9.5.1", got)
	}

	data, format, err := store.ReadImage(testID)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	if format != "png" || len(data) != 4 {
		t.Fatalf("image = %d bytes %q; want 4 bytes png", len(data), format)
	}

	if err := store.Delete(testID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(testID); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("Get after Delete = %v; want not found", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	older := Meta{ID: "123e4567-e89b-12d3-a456-426614174001", Format: "png", CreatedAt: time.Now().Add(-time.Hour)}
	newer := Meta{ID: "123e4567-e89b-12d3-a456-426614174002", Format: "png", CreatedAt: time.Now()}
	for _, m := range []Meta{older, newer} {
		if err := store.Save(m, []byte("x")); err != nil {
			t.Fatalf("Save(%s): %v", m.ID, err)
		}
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len = %d; want 2", len(metas))
	}
	if metas[0].ID != newer.ID {
		t.Fatalf("first = %s; want %s", metas[0].ID, newer.ID)
	}
}

func TestRejectsInvalidID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Save(Meta{ID: "../../etc/passwd", Format: "png"}, []byte("x")); err == nil {
		t.Fatal("Save with path traversal id should fail")
	}
	if _, err := store.Get("not-a-uuid"); err == nil {
		t.Fatal("Get with invalid id should fail")
	}
}
