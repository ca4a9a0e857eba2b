package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "custodia/pkg/domain"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore persists the ledger in consent_records with an index on
// (subject_id, purpose, recorded_at desc) so Current resolves with a single
// indexed lookup.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, record Record) error {
	query := `
		INSERT INTO consent_records (id, subject_id, purpose, granted, recorded_at, origin, client_signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		record.ID, uuid.UUID(record.SubjectID), record.Purpose.String(),
		record.Granted, record.RecordedAt, record.Origin, record.ClientSignature,
	)
	if err != nil {
		return fmt.Errorf("insert consent record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Current(ctx context.Context, subjectID id.SubjectID, purpose id.ConsentPurpose) (*Record, error) {
	query := `
		SELECT id, subject_id, purpose, granted, recorded_at, origin, client_signature
		FROM consent_records
		WHERE subject_id = $1 AND purpose = $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	record, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(subjectID), purpose.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find current consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) History(ctx context.Context, subjectID id.SubjectID) ([]Record, error) {
	query := `
		SELECT id, subject_id, purpose, granted, recorded_at, origin, client_signature
		FROM consent_records
		WHERE subject_id = $1
		ORDER BY recorded_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("query consent history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RedactMetadata(ctx context.Context, subjectID id.SubjectID) (int, error) {
	query := `
		UPDATE consent_records
		SET origin = '', client_signature = ''
		WHERE subject_id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(subjectID))
	if err != nil {
		return 0, fmt.Errorf("redact consent metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PostgresStore) DeleteBySubject(ctx context.Context, subjectID id.SubjectID) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM consent_records WHERE subject_id = $1`, uuid.UUID(subjectID))
	if err != nil {
		return 0, fmt.Errorf("delete consent records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var subjectID uuid.UUID
	var purpose string
	if err := row.Scan(&record.ID, &subjectID, &purpose, &record.Granted,
		&record.RecordedAt, &record.Origin, &record.ClientSignature); err != nil {
		return nil, err
	}
	record.SubjectID = id.SubjectID(subjectID)
	record.Purpose = id.ConsentPurpose(purpose)
	return &record, nil
}
