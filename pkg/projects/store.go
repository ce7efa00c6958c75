package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/formgrid/formgrid/pkg/observability"
	"github.com/lib/pq"
)

// PostgresStore is the database-backed project store
type PostgresStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPostgresStore creates a project store backed by the given database
func NewPostgresStore(db *sql.DB, logger *observability.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// LoadProject retrieves a project by ID. Deleted projects are treated as
// missing. Malformed entries in the access column are skipped rather than
// failing the whole load, so one bad grant cannot lock a project out.
func (s *PostgresStore) LoadProject(ctx context.Context, id string) (*Project, error) {
	query := `
		SELECT id, name, owner_id, plan, is_primary, parent_id, access, created_at, updated_at
		FROM projects
		WHERE id = $1 AND deleted_at IS NULL`

	return s.scanProject(ctx, s.db.QueryRowContext(ctx, query, id))
}

// LoadPrimaryProject resolves the primary project for the given project ID.
// Environments link to their primary via parent_id; a primary project
// resolves to itself.
func (s *PostgresStore) LoadPrimaryProject(ctx context.Context, id string) (*Project, error) {
	project, err := s.LoadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.ParentID == nil || *project.ParentID == "" || *project.ParentID == project.ID {
		return project, nil
	}

	parent, err := s.LoadProject(ctx, *project.ParentID)
	if err != nil {
		return nil, fmt.Errorf("load primary for project %s: %w", id, err)
	}
	return parent, nil
}

func (s *PostgresStore) scanProject(ctx context.Context, row *sql.Row) (*Project, error) {
	var p Project
	var plan sql.NullString
	var parentID sql.NullString
	var accessJSON []byte

	err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &plan, &p.Primary, &parentID, &accessJSON, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}

	if plan.Valid {
		p.Plan = plan.String
	}
	if parentID.Valid {
		p.ParentID = &parentID.String
	}
	p.Access = s.decodeAccess(ctx, p.ID, accessJSON)
	return &p, nil
}

// decodeAccess unmarshals the JSONB access column, dropping entries that do
// not decode or that carry an empty type
func (s *PostgresStore) decodeAccess(ctx context.Context, projectID string, raw []byte) []AccessEntry {
	if len(raw) == 0 {
		return nil
	}

	var rawEntries []json.RawMessage
	if err := json.Unmarshal(raw, &rawEntries); err != nil {
		s.logger.WithError(err).WithField("project_id", projectID).
			Warn(ctx, "project access column is not a JSON array, ignoring")
		return nil
	}

	entries := make([]AccessEntry, 0, len(rawEntries))
	for _, r := range rawEntries {
		var e AccessEntry
		if err := json.Unmarshal(r, &e); err != nil {
			s.logger.WithError(err).WithField("project_id", projectID).
				Warn(ctx, "skipping malformed access entry")
			continue
		}
		if e.Type == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// PostgresTeamStore is the database-backed team store
type PostgresTeamStore struct {
	db *sql.DB
}

// NewPostgresTeamStore creates a team store backed by the given database
func NewPostgresTeamStore(db *sql.DB) *PostgresTeamStore {
	return &PostgresTeamStore{db: db}
}

// LoadTeam retrieves a team by ID, including its member and admin lists
func (s *PostgresTeamStore) LoadTeam(ctx context.Context, id string) (*Team, error) {
	query := `
		SELECT id, name, owner_id, members, admins, created_at, updated_at
		FROM teams
		WHERE id = $1 AND deleted_at IS NULL`

	var t Team
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.OwnerID,
		pq.Array(&t.Members), pq.Array(&t.Admins),
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load team %s: %w", id, err)
	}
	return &t, nil
}
