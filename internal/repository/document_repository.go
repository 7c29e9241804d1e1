package repository

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pesio-ai/be-po-approvals/internal/database"
	"github.com/pesio-ai/be-po-approvals/internal/engine"
	"github.com/pesio-ai/be-po-approvals/internal/errors"
)

const pgUniqueViolation = "23505"

// DocumentRepository is the document adapter: it owns the approval-side
// document records and their append-only trail. Decisions are persisted
// under an optimistic-concurrency guard so a document never receives two
// entries for the same pending level.
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create registers a purchasing document with the approval service. The
// document starts without a workflow; Submit binds one.
func (r *DocumentRepository) Create(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (doc_type, doc_number, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		doc.DocType,
		doc.DocNumber,
		doc.Status,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

// GetByID retrieves a document by primary key.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	query := `
		SELECT id, doc_type, doc_number, workflow_id, next_level_role_id,
		       status, is_finalized, submitted_by, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	doc, err := r.scanDocument(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("document", id)
	}
	return doc, err
}

// LoadTrail returns a document's full approval trail oldest-first together
// with its bound workflow id (nil when no workflow was ever bound).
func (r *DocumentRepository) LoadTrail(ctx context.Context, documentID string) ([]engine.TrailEntry, *string, error) {
	var workflowID *string
	err := r.db.QueryRow(ctx,
		`SELECT workflow_id FROM documents WHERE id = $1`, documentID,
	).Scan(&workflowID)
	if err == pgx.ErrNoRows {
		return nil, nil, errors.NotFound("document", documentID)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load document")
	}

	trail, err := r.trailFor(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	return trail, workflowID, nil
}

// PersistSubmission binds a workflow to a document and writes the initial
// created trail entry in one transaction. Returns Conflict when the
// document already has trail entries (double submit).
func (r *DocumentRepository) PersistSubmission(
	ctx context.Context,
	documentID string,
	workflowID *string,
	entry engine.TrailEntry,
	submittedBy string,
	nextRoleID *string,
	status engine.DisplayStatus,
) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var entryID string
		err := tx.QueryRow(ctx, `
			INSERT INTO approval_trail
			    (document_id, sequence_no, status, actor_id, comment, is_finalized)
			SELECT $1, $2, $3::approval_action, $4, $5, $6
			WHERE NOT EXISTS (SELECT 1 FROM approval_trail WHERE document_id = $1)
			RETURNING id
		`,
			documentID,
			entry.SequenceNo,
			string(entry.Status),
			entry.ActorID,
			entry.Comment,
			entry.IsFinalized,
		).Scan(&entryID)
		if err == pgx.ErrNoRows {
			return errors.New(errors.ErrCodeConflict, "document has already been submitted")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to write created trail entry")
		}

		tag, err := tx.Exec(ctx, `
			UPDATE documents
			SET workflow_id        = $2,
			    next_level_role_id = $3,
			    status             = $4,
			    submitted_by       = $5,
			    updated_at         = NOW()
			WHERE id = $1
		`, documentID, workflowID, nextRoleID, string(status), submittedBy)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update document on submission")
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound("document", documentID)
		}
		return nil
	})
}

// PersistDecision appends a decision trail entry and updates the document
// pointers in one transaction. The insert only succeeds when the stored
// trail still has exactly expectedTrailLen rows; a grown trail means
// another approver acted first and the caller gets Conflict.
func (r *DocumentRepository) PersistDecision(
	ctx context.Context,
	documentID string,
	entry engine.TrailEntry,
	expectedTrailLen int,
	nextRoleID *string,
	status engine.DisplayStatus,
) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var entryID string
		err := tx.QueryRow(ctx, `
			INSERT INTO approval_trail
			    (document_id, sequence_no, status, actor_id, comment, is_finalized)
			SELECT $1, $2, $3::approval_action, $4, $5, $6
			WHERE (SELECT COUNT(*) FROM approval_trail WHERE document_id = $1) = $7
			RETURNING id
		`,
			documentID,
			entry.SequenceNo,
			string(entry.Status),
			entry.ActorID,
			entry.Comment,
			entry.IsFinalized,
			expectedTrailLen,
		).Scan(&entryID)
		if err == pgx.ErrNoRows {
			return errors.New(errors.ErrCodeConflict, "approval trail has advanced since it was loaded")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to append trail entry")
		}

		tag, err := tx.Exec(ctx, `
			UPDATE documents
			SET next_level_role_id = $2,
			    status             = $3,
			    is_finalized       = $4,
			    updated_at         = NOW()
			WHERE id = $1
		`, documentID, nextRoleID, string(status), entry.IsFinalized)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update document pointers")
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound("document", documentID)
		}
		return nil
	})

	// The partial unique index on (document_id, sequence_no) backs up the
	// count predicate against racing transactions.
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return errors.New(errors.ErrCodeConflict, "a decision for this level was already recorded")
	}
	return err
}

// ListPendingForRole returns all documents whose next pending approval
// belongs to the given role; this backs the approval-queue screens.
func (r *DocumentRepository) ListPendingForRole(ctx context.Context, roleID string) ([]*Document, error) {
	query := `
		SELECT id, doc_type, doc_number, workflow_id, next_level_role_id,
		       status, is_finalized, submitted_by, created_at, updated_at
		FROM documents
		WHERE next_level_role_id = $1
		ORDER BY updated_at ASC
	`

	rows, err := r.db.Query(ctx, query, roleID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list pending documents")
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan document")
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// trailFor reads the ordered trail rows for a document.
func (r *DocumentRepository) trailFor(ctx context.Context, documentID string) ([]engine.TrailEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sequence_no, status, actor_id, comment, is_finalized, created_at
		FROM approval_trail
		WHERE document_id = $1
		ORDER BY created_at ASC, id ASC
	`, documentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load approval trail")
	}
	defer rows.Close()

	var trail []engine.TrailEntry
	for rows.Next() {
		var e engine.TrailEntry
		var status string
		if err := rows.Scan(&e.SequenceNo, &status, &e.ActorID, &e.Comment, &e.IsFinalized, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan trail entry")
		}
		e.Status = engine.Action(status)
		trail = append(trail, e)
	}
	return trail, rows.Err()
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type documentScanner interface {
	Scan(dest ...any) error
}

func (r *DocumentRepository) scanDocument(row documentScanner) (*Document, error) {
	doc := &Document{}
	err := row.Scan(
		&doc.ID,
		&doc.DocType,
		&doc.DocNumber,
		&doc.WorkflowID,
		&doc.NextLevelRoleID,
		&doc.Status,
		&doc.IsFinalized,
		&doc.SubmittedBy,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
