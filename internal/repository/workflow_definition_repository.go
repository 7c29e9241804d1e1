package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-po-approvals/internal/database"
	"github.com/pesio-ai/be-po-approvals/internal/engine"
	"github.com/pesio-ai/be-po-approvals/internal/errors"
)

// WorkflowDefinitionRepository handles CRUD for workflow_definitions.
// Definitions are written by administration tooling and read-only from
// the engine's perspective.
type WorkflowDefinitionRepository struct {
	db *database.DB
}

// NewWorkflowDefinitionRepository creates a new WorkflowDefinitionRepository.
func NewWorkflowDefinitionRepository(db *database.DB) *WorkflowDefinitionRepository {
	return &WorkflowDefinitionRepository{db: db}
}

// Create inserts a new workflow definition. Steps must be non-empty with
// strictly ascending sequence numbers.
func (r *WorkflowDefinitionRepository) Create(ctx context.Context, def *WorkflowDefinition) error {
	if err := validateSteps(def.Steps); err != nil {
		return err
	}

	stepsJSON, err := json.Marshal(def.Steps)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal workflow steps")
	}

	query := `
		INSERT INTO workflow_definitions (name, steps, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		def.Name,
		stepsJSON,
		def.IsActive,
	).Scan(&def.ID, &def.CreatedAt, &def.UpdatedAt)
}

// GetByID retrieves a workflow definition by primary key.
func (r *WorkflowDefinitionRepository) GetByID(ctx context.Context, id string) (*WorkflowDefinition, error) {
	query := `
		SELECT id, name, steps, is_active, created_at, updated_at
		FROM workflow_definitions
		WHERE id = $1
	`

	def, err := r.scanDefinition(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow_definition", id)
	}
	return def, err
}

// Resolve returns the ordered steps of a workflow definition.
func (r *WorkflowDefinitionRepository) Resolve(ctx context.Context, id string) ([]engine.Step, error) {
	def, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return def.Steps, nil
}

// List returns all workflow definitions, optionally active only.
func (r *WorkflowDefinitionRepository) List(ctx context.Context, activeOnly bool) ([]*WorkflowDefinition, error) {
	query := `
		SELECT id, name, steps, is_active, created_at, updated_at
		FROM workflow_definitions
	`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list workflow definitions")
	}
	defer rows.Close()

	var defs []*WorkflowDefinition
	for rows.Next() {
		def, err := r.scanDefinition(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow definition")
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// validateSteps enforces the definition invariants: non-empty, strictly
// ascending sequence numbers, no empty roles.
func validateSteps(steps []engine.Step) error {
	if len(steps) == 0 {
		return errors.InvalidInput("steps", "workflow must define at least one step")
	}
	for i, s := range steps {
		if s.RoleID == "" {
			return errors.InvalidInput("steps", "every step requires a role_id")
		}
		if i > 0 && steps[i-1].SequenceNo >= s.SequenceNo {
			return errors.InvalidInput("steps", "sequence numbers must be strictly ascending")
		}
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type definitionScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowDefinitionRepository) scanDefinition(row definitionScanner) (*WorkflowDefinition, error) {
	def := &WorkflowDefinition{}
	var stepsJSON []byte
	err := row.Scan(
		&def.ID,
		&def.Name,
		&stepsJSON,
		&def.IsActive,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepsJSON, &def.Steps); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal workflow steps")
	}
	return def, nil
}
