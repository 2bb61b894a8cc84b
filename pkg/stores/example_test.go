package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stasisproject/stasis/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	// Create store configuration
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Initialize the database connection
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	// Store is now ready to use
	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_SaveCapsule demonstrates persisting an encoded capsule.
func ExampleSQLiteStore_SaveCapsule() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	now := time.Now().UTC()
	capsule := &stores.Capsule{
		ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		Name:      "session-state",
		TypeName:  "map[string]interface {}",
		Mode:      "lenient",
		Payload:   []byte{0xa1, 0x61, 0x6b, 0x01}, // CBOR bytes from capsule.Engine.Encode
		Size:      4,
		Warnings:  "[]",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := store.SaveCapsule(ctx, capsule); err != nil {
		log.Fatal(err)
	}

	got, err := store.GetCapsuleByName(ctx, "session-state")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("stored %s (%d bytes)\n", got.Name, got.Size)
	// Output: stored session-state (4 bytes)
}
