package stores

import (
	"context"
	"time"
)

// Capsule is one persisted capture: the deterministic encoded bytes
// plus enough metadata to find it again. Payload bytes are opaque to
// the store; only the capsule engine interprets them.
type Capsule struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	TypeName  string     `json:"type_name"`
	Mode      string     `json:"mode"` // strict or lenient
	Payload   []byte     `json:"-"`
	Size      int64      `json:"size"`
	Warnings  string     `json:"warnings"` // JSON array of capsule.Warning
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	PushedAt  *time.Time `json:"pushed_at,omitempty"`
}

// AuditEntry records a store mutation for traceability.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"` // save, delete, push
	CapsuleID string    `json:"capsule_id"`
	Details   *string   `json:"details,omitempty"` // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Capsule operations
	SaveCapsule(ctx context.Context, c *Capsule) error
	GetCapsule(ctx context.Context, id string) (*Capsule, error)
	GetCapsuleByName(ctx context.Context, name string) (*Capsule, error)
	ListCapsules(ctx context.Context, limit, offset int) ([]*Capsule, error)
	DeleteCapsule(ctx context.Context, id string) error
	CountCapsules(ctx context.Context) (int64, error)
	MarkPushed(ctx context.Context, id string) error

	// Audit operations
	AppendAudit(ctx context.Context, entry *AuditEntry) error
	ListAudit(ctx context.Context, capsuleID *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
