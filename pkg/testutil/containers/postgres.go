//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// schema bootstraps the tables the stores expect. Kept inline so integration
// tests stay runnable without a separate migration step.
const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	id                UUID PRIMARY KEY,
	email             TEXT NOT NULL,
	full_name         TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	bio               TEXT NOT NULL DEFAULT '',
	verified          BOOLEAN NOT NULL DEFAULT FALSE,
	verified_at       TIMESTAMPTZ,
	anonymized        BOOLEAN NOT NULL DEFAULT FALSE,
	followers         INTEGER NOT NULL DEFAULT 0,
	following         INTEGER NOT NULL DEFAULT 0,
	tickets_purchased INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verification_requests (
	id               UUID PRIMARY KEY,
	subject_id       UUID NOT NULL,
	kind             TEXT NOT NULL,
	document_number  TEXT NOT NULL DEFAULT '',
	front_key        TEXT NOT NULL,
	back_key         TEXT NOT NULL DEFAULT '',
	selfie_key       TEXT NOT NULL,
	status           TEXT NOT NULL,
	rejection_reason TEXT NOT NULL DEFAULT '',
	reviewer_id      TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	reviewed_at      TIMESTAMPTZ,
	warned_at        TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS verification_requests_one_pending
	ON verification_requests (subject_id) WHERE status = 'PENDING';

CREATE TABLE IF NOT EXISTS consent_records (
	id               UUID PRIMARY KEY,
	subject_id       UUID NOT NULL,
	purpose          TEXT NOT NULL,
	granted          BOOLEAN NOT NULL,
	recorded_at      TIMESTAMPTZ NOT NULL,
	origin           TEXT NOT NULL DEFAULT '',
	client_signature TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS consent_records_subject_purpose
	ON consent_records (subject_id, purpose, recorded_at DESC);

CREATE TABLE IF NOT EXISTS audit_entries (
	id          UUID PRIMARY KEY,
	actor_id    TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	details     JSONB NOT NULL DEFAULT '{}'
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// applied.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("custodia_test"),
		tcpostgres.WithUsername("custodia"),
		tcpostgres.WithPassword("custodia"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// The container is shared across suites; Ryuk terminates it when the
	// test process exits.
	return &PostgresContainer{
		Container: container,
		URL:       url,
		DB:        db,
	}
}

// TruncateTables empties the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", ")))
	return err
}
