package providers

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// DBHandle pairs a live *sql.DB with the driver and DSN it was opened
// from. database/sql deliberately hides the DSN, so callers that want
// their connections captured wrap them in a DBHandle at open time.
type DBHandle struct {
	DB     *sql.DB
	Driver string
	DSN    string
}

// Open opens a database and wraps it in a DBHandle.
func Open(driver, dsn string) (*DBHandle, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &DBHandle{DB: db, Driver: driver, DSN: dsn}, nil
}

// DBProvider captures database handles as driver plus redacted DSN.
// Credentials embedded in the DSN never reach the payload: userinfo and
// password-bearing query parameters are stripped at extract time.
// Rebuild returns a ReconnectionDescriptor of kind "database"; the
// caller supplies credentials when it reconnects.
type DBProvider struct{}

// NewDBProvider returns the database handle provider.
func NewDBProvider() *DBProvider {
	return &DBProvider{}
}

func (p *DBProvider) Name() string  { return "db.conn" }
func (p *DBProvider) Priority() int { return 100 }

func (p *DBProvider) Match(v any) bool {
	switch v.(type) {
	case *DBHandle, *sql.DB:
		return true
	}
	return false
}

func (p *DBProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	b := capsule.NewBundle()
	switch h := v.(type) {
	case *DBHandle:
		b.Set("driver", h.Driver)
		b.Set("dsn", RedactDSN(h.DSN))
	case *sql.DB:
		// A bare *sql.DB exposes neither driver nor DSN.
		b.Set("driver", "")
		b.Set("dsn", "")
	}
	return b, nil
}

func (p *DBProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	driver, _ := b.String("driver")
	dsn, _ := b.String("dsn")
	return &capsule.ReconnectionDescriptor{
		ResourceKind: "database",
		Params: map[string]any{
			"driver": driver,
			"dsn":    dsn,
		},
	}, nil
}

// credentialParams are DSN query parameters that carry secrets.
var credentialParams = map[string]bool{
	"password": true,
	"passwd":   true,
	"pwd":      true,
	"secret":   true,
	"token":    true,
	"sslkey":   true,
}

// RedactDSN strips credentials from a connection string. URL-style DSNs
// lose their userinfo password and secret query parameters; key=value
// DSNs lose password-like pairs. Anything unparseable is redacted
// wholesale rather than risk leaking.
func RedactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}

	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		if u.User != nil {
			u.User = url.User(u.User.Username())
		}
		q := u.Query()
		for key := range q {
			if credentialParams[strings.ToLower(key)] {
				q.Set(key, "REDACTED")
			}
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	if strings.Contains(dsn, "=") {
		parts := strings.Fields(dsn)
		for i, part := range parts {
			key, _, found := strings.Cut(part, "=")
			if found && credentialParams[strings.ToLower(key)] {
				parts[i] = key + "=REDACTED"
			}
		}
		return strings.Join(parts, " ")
	}

	// Opaque DSN formats may embed credentials anywhere.
	return "REDACTED"
}
