package groups

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSubmissionStore aggregates group membership from submission data
type PostgresSubmissionStore struct {
	db *sql.DB
}

// NewPostgresSubmissionStore creates a submission store backed by the given
// database
func NewPostgresSubmissionStore(db *sql.DB) *PostgresSubmissionStore {
	return &PostgresSubmissionStore{db: db}
}

// aggregateGroupsQuery walks forms → group-assignment actions →
// submissions in one statement. Stages:
//
//  1. non-deleted forms in the project
//  2. non-deleted group actions on those forms that map a user field
//  3. non-deleted submissions of those forms that either carry a user
//     reference or are owned by the requesting identity
//  4. grouped by (group id, submission owner), collecting member identities
//  5. keep groups where the identity is a collected member or the owner
//
// One round trip keeps the result consistent under concurrent membership
// edits and bounds latency on large projects.
const aggregateGroupsQuery = `
WITH project_forms AS (
	SELECT id
	FROM forms
	WHERE project_id = $1 AND deleted_at IS NULL
),
group_forms AS (
	SELECT DISTINCT f.id
	FROM project_forms f
	JOIN actions a ON a.form_id = f.id
	WHERE a.kind = 'group'
	  AND a.settings ? 'user'
	  AND a.deleted_at IS NULL
),
membership AS (
	SELECT
		s.data->'group'->>'_id' AS group_id,
		s.owner_id AS owner_id,
		array_agg(DISTINCT COALESCE(s.data->'user'->>'_id', s.data->>'user')) AS members
	FROM submissions s
	JOIN group_forms f ON s.form_id = f.id
	WHERE s.deleted_at IS NULL
	  AND (s.data ? 'user' OR s.owner_id = $2)
	  AND s.data->'group'->>'_id' IS NOT NULL
	GROUP BY 1, 2
)
SELECT DISTINCT group_id
FROM membership
WHERE $2 = ANY(members) OR owner_id = $2`

// AggregateGroups returns the group IDs within the project that the
// identity is a member or owner of
func (s *PostgresSubmissionStore) AggregateGroups(ctx context.Context, projectID, identityID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, aggregateGroupsQuery, projectID, identityID)
	if err != nil {
		return nil, fmt.Errorf("aggregate groups for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var groupIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		groupIDs = append(groupIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groupIDs, nil
}
