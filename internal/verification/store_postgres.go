package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore persists verification requests. The single-open-request
// invariant is enforced by a partial unique index:
//
//	CREATE UNIQUE INDEX verification_requests_one_pending
//	ON verification_requests (subject_id) WHERE status = 'PENDING';
//
// so two concurrent submissions from the same subject cannot both commit.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

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

func (s *PostgresStore) Create(ctx context.Context, req *Request) error {
	query := `
		INSERT INTO verification_requests (
			id, subject_id, kind, document_number, front_key, back_key, selfie_key,
			status, rejection_reason, reviewer_id, created_at, reviewed_at, warned_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', '', now(), NULL, NULL, now())
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID), uuid.UUID(req.SubjectID), req.Kind.String(), req.DocumentNumber,
		req.FrontKey, req.BackKey, req.SelfieKey, req.Status.String(),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert verification request: %w", err)
	}
	return nil
}

const selectColumns = `
	id, subject_id, kind, document_number, front_key, back_key, selfie_key,
	status, rejection_reason, reviewer_id, created_at, reviewed_at, warned_at, updated_at
`

func (s *PostgresStore) FindByID(ctx context.Context, verificationID id.VerificationID) (*Request, error) {
	query := `SELECT ` + selectColumns + ` FROM verification_requests WHERE id = $1`
	req, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(verificationID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find verification request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) FindPendingBySubject(ctx context.Context, subjectID id.SubjectID) (*Request, error) {
	query := `SELECT ` + selectColumns + ` FROM verification_requests WHERE subject_id = $1 AND status = 'PENDING'`
	req, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(subjectID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find pending verification: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*Request, error) {
	query := `SELECT ` + selectColumns + ` FROM verification_requests WHERE subject_id = $1 ORDER BY created_at`
	return s.queryRequests(ctx, query, uuid.UUID(subjectID))
}

func (s *PostgresStore) MarkReviewed(ctx context.Context, verificationID id.VerificationID, status id.VerificationStatus, reviewerID, rejectionReason string, reviewedAt time.Time) error {
	query := `
		UPDATE verification_requests
		SET status = $2, reviewer_id = $3, rejection_reason = $4, reviewed_at = $5, updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(verificationID), status.String(), reviewerID, rejectionReason, reviewedAt,
	)
	if err != nil {
		return fmt.Errorf("mark reviewed: %w", err)
	}
	return s.conditionalOutcome(ctx, res, verificationID)
}

func (s *PostgresStore) MarkExpired(ctx context.Context, verificationID id.VerificationID, expiredAt time.Time) error {
	query := `
		UPDATE verification_requests
		SET status = 'EXPIRED', updated_at = $2
		WHERE id = $1 AND status = 'APPROVED'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(verificationID), expiredAt)
	if err != nil {
		return fmt.Errorf("mark expired: %w", err)
	}
	return s.conditionalOutcome(ctx, res, verificationID)
}

func (s *PostgresStore) MarkWarned(ctx context.Context, verificationID id.VerificationID, warnedAt time.Time) error {
	query := `UPDATE verification_requests SET warned_at = $2 WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(verificationID), warnedAt)
	if err != nil {
		return fmt.Errorf("mark warned: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// conditionalOutcome distinguishes a lost conditional write from a missing
// row so services can report NOT_PENDING versus not-found.
func (s *PostgresStore) conditionalOutcome(ctx context.Context, res sql.Result, verificationID id.VerificationID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.FindByID(ctx, verificationID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) ListApprovedReviewedBetween(ctx context.Context, from, to time.Time) ([]*Request, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM verification_requests
		WHERE status = 'APPROVED' AND reviewed_at > $1 AND reviewed_at <= $2
		ORDER BY reviewed_at
	`
	return s.queryRequests(ctx, query, from, to)
}

func (s *PostgresStore) ListApprovedReviewedBefore(ctx context.Context, cutoff time.Time) ([]*Request, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM verification_requests
		WHERE status = 'APPROVED' AND reviewed_at <= $1
		ORDER BY reviewed_at
	`
	return s.queryRequests(ctx, query, cutoff)
}

func (s *PostgresStore) RedactDocumentNumbers(ctx context.Context, subjectID id.SubjectID) (int, error) {
	query := `UPDATE verification_requests SET document_number = '', updated_at = now() WHERE subject_id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(subjectID))
	if err != nil {
		return 0, fmt.Errorf("redact document numbers: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) DeleteBySubject(ctx context.Context, subjectID id.SubjectID) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM verification_requests WHERE subject_id = $1`, uuid.UUID(subjectID))
	if err != nil {
		return 0, fmt.Errorf("delete verification requests: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]*Request, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verification requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var req Request
	var rowID, subjectID uuid.UUID
	var kind, status string
	if err := row.Scan(
		&rowID, &subjectID, &kind, &req.DocumentNumber,
		&req.FrontKey, &req.BackKey, &req.SelfieKey,
		&status, &req.RejectionReason, &req.ReviewerID,
		&req.CreatedAt, &req.ReviewedAt, &req.WarnedAt, &req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	req.ID = id.VerificationID(rowID)
	req.SubjectID = id.SubjectID(subjectID)
	req.Kind = id.DocumentKind(kind)
	req.Status = id.VerificationStatus(status)
	return &req, nil
}
