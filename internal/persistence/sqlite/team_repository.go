package sqlite

import (
	"context"
	"time"

	"github.com/example/todosync/internal/persistence"
)

// TeamRepository implements persistence.TeamRepository using SQLite
type TeamRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewTeamRepository creates a new SQLite team membership repository
func NewTeamRepository(pool *ConnectionPool) *TeamRepository {
	return &TeamRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// AddTeamMember records that userID belongs to teamID. Adding an existing
// membership is a no-op.
func (r *TeamRepository) AddTeamMember(ctx context.Context, teamID, userID string) error {
	if teamID == "" || userID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (team_id, user_id) DO NOTHING`,
		teamID, userID, formatTime(r.now()),
	)
	return r.mapper.MapError(err)
}

// IsTeamMember reports whether userID belongs to teamID.
func (r *TeamRepository) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	var count int
	err := r.helper.QueryRow(ctx,
		`SELECT COUNT(*) FROM team_members WHERE team_id = ? AND user_id = ?`,
		teamID, userID,
	).Scan(&count)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return count > 0, nil
}
