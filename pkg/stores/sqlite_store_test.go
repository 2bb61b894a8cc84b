package stores

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

func testCapsule(name string) *Capsule {
	now := time.Now().UTC()
	return &Capsule{
		ID:        uuid.New().String(),
		Name:      name,
		TypeName:  "map[string]interface {}",
		Mode:      "lenient",
		Payload:   []byte{0xa1, 0x61, 0x6b, 0x01},
		Size:      4,
		Warnings:  "[]",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"capsules", "audit"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestCapsuleCRUD tests capsule save, get, list, and delete
func TestCapsuleCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	c := testCapsule("session-state")

	if err := store.SaveCapsule(ctx, c); err != nil {
		t.Fatalf("failed to save capsule: %v", err)
	}

	got, err := store.GetCapsule(ctx, c.ID)
	if err != nil {
		t.Fatalf("failed to get capsule: %v", err)
	}
	if got.Name != "session-state" {
		t.Errorf("name = %q, want session-state", got.Name)
	}
	if !bytes.Equal(got.Payload, c.Payload) {
		t.Errorf("payload = %x, want %x", got.Payload, c.Payload)
	}
	if got.PushedAt != nil {
		t.Error("pushed_at should be nil for a fresh capsule")
	}

	byName, err := store.GetCapsuleByName(ctx, "session-state")
	if err != nil {
		t.Fatalf("failed to get capsule by name: %v", err)
	}
	if byName.ID != c.ID {
		t.Errorf("ID = %q, want %q", byName.ID, c.ID)
	}

	count, err := store.CountCapsules(ctx)
	if err != nil {
		t.Fatalf("failed to count capsules: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	if err := store.DeleteCapsule(ctx, c.ID); err != nil {
		t.Fatalf("failed to delete capsule: %v", err)
	}
	if _, err := store.GetCapsule(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestSaveCapsuleUpsertsByName tests that saving under an existing name
// replaces the payload
func TestSaveCapsuleUpsertsByName(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	first := testCapsule("worker-pool")
	if err := store.SaveCapsule(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := testCapsule("worker-pool")
	second.Payload = []byte{0x01, 0x02}
	second.Size = 2
	if err := store.SaveCapsule(ctx, second); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := store.GetCapsuleByName(ctx, "worker-pool")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Payload, second.Payload) {
		t.Errorf("payload = %x, want replacement bytes", got.Payload)
	}

	count, _ := store.CountCapsules(ctx)
	if count != 1 {
		t.Errorf("count = %d after upsert, want 1", count)
	}
}

// TestListCapsules tests pagination and ordering
func TestListCapsules(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		c := testCapsule("capsule-" + string(rune('a'+i)))
		c.CreatedAt = base.Add(time.Duration(i) * time.Second)
		c.UpdatedAt = c.CreatedAt
		if err := store.SaveCapsule(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	page, err := store.ListCapsules(ctx, 3, 0)
	if err != nil {
		t.Fatalf("failed to list capsules: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("len = %d, want 3", len(page))
	}
	// Newest first.
	if page[0].Name != "capsule-e" {
		t.Errorf("first = %q, want capsule-e", page[0].Name)
	}

	rest, err := store.ListCapsules(ctx, 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 {
		t.Errorf("len = %d, want 2", len(rest))
	}
}

// TestMarkPushed tests the push timestamp
func TestMarkPushed(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	c := testCapsule("shipped")
	if err := store.SaveCapsule(ctx, c); err != nil {
		t.Fatal(err)
	}

	if err := store.MarkPushed(ctx, c.ID); err != nil {
		t.Fatalf("MarkPushed failed: %v", err)
	}
	got, err := store.GetCapsule(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PushedAt == nil {
		t.Error("pushed_at not set")
	}

	if err := store.MarkPushed(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestAuditTrail tests audit entry creation and filtering
func TestAuditTrail(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	c := testCapsule("audited")
	if err := store.SaveCapsule(ctx, c); err != nil {
		t.Fatal(err)
	}

	details := `{"size":4}`
	entry := &AuditEntry{
		Action:    "save",
		CapsuleID: c.ID,
		Details:   &details,
		Timestamp: time.Now().UTC(),
	}
	if err := store.AppendAudit(ctx, entry); err != nil {
		t.Fatalf("AppendAudit failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("audit entry ID not populated")
	}

	other := &AuditEntry{Action: "delete", CapsuleID: "other-id", Timestamp: time.Now().UTC()}
	if err := store.AppendAudit(ctx, other); err != nil {
		t.Fatal(err)
	}

	filtered, err := store.ListAudit(ctx, &c.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Action != "save" {
		t.Errorf("filtered = %+v", filtered)
	}

	all, err := store.ListAudit(ctx, nil, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}
}

// TestDeleteMissingCapsule tests delete of a nonexistent ID
func TestDeleteMissingCapsule(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	if err := store.DeleteCapsule(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
