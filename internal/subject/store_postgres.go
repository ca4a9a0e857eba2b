package subject

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore persists subjects in the subjects table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, subj *Subject) error {
	query := `
		INSERT INTO subjects (
			id, email, full_name, phone, bio, verified, verified_at,
			anonymized, followers, following, tickets_purchased, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			bio = EXCLUDED.bio,
			verified = EXCLUDED.verified,
			verified_at = EXCLUDED.verified_at,
			anonymized = EXCLUDED.anonymized,
			followers = EXCLUDED.followers,
			following = EXCLUDED.following,
			tickets_purchased = EXCLUDED.tickets_purchased,
			updated_at = now()
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(subj.ID), subj.Email, subj.FullName, subj.Phone, subj.Bio,
		subj.Verified, subj.VerifiedAt, subj.Anonymized,
		subj.Followers, subj.Following, subj.TicketsPurchased,
	)
	if err != nil {
		return fmt.Errorf("save subject: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, subjectID id.SubjectID) (*Subject, error) {
	query := `
		SELECT id, email, full_name, phone, bio, verified, verified_at,
		       anonymized, followers, following, tickets_purchased, created_at, updated_at
		FROM subjects
		WHERE id = $1
	`
	var subj Subject
	var rowID uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(subjectID)).Scan(
		&rowID, &subj.Email, &subj.FullName, &subj.Phone, &subj.Bio,
		&subj.Verified, &subj.VerifiedAt, &subj.Anonymized,
		&subj.Followers, &subj.Following, &subj.TicketsPurchased,
		&subj.CreatedAt, &subj.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subject: %w", err)
	}
	subj.ID = id.SubjectID(rowID)
	return &subj, nil
}

func (s *PostgresStore) SetVerified(ctx context.Context, subjectID id.SubjectID, verifiedAt time.Time) error {
	query := `
		UPDATE subjects
		SET verified = true, verified_at = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(subjectID), verifiedAt)
	if err != nil {
		return fmt.Errorf("set subject verified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, subjectID id.SubjectID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, uuid.UUID(subjectID))
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
