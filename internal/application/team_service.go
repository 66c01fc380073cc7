package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// TeamRepository records team memberships.
type TeamRepository interface {
	TeamDirectory
	AddTeamMember(ctx context.Context, teamID, userID string) error
}

// TeamService manages team membership. Teams have no row of their own; a team
// exists once it has a member.
type TeamService struct {
	teams  TeamRepository
	logger *slog.Logger
}

// NewTeamService constructs a TeamService.
func NewTeamService(teams TeamRepository) *TeamService {
	return NewTeamServiceWithLogger(teams, nil)
}

// NewTeamServiceWithLogger constructs a TeamService with a specific logger.
func NewTeamServiceWithLogger(teams TeamRepository, logger *slog.Logger) *TeamService {
	return &TeamService{teams: teams, logger: defaultLogger(logger)}
}

// AddMember adds userID to teamID. Adding an existing member is a no-op.
func (s *TeamService) AddMember(ctx context.Context, teamID, userID string) (err error) {
	if s == nil {
		return fmt.Errorf("TeamService is nil")
	}
	if s.teams == nil {
		return fmt.Errorf("team repository not configured")
	}

	teamID = strings.TrimSpace(teamID)
	userID = strings.TrimSpace(userID)
	logger := serviceLogger(ctx, s.logger, "TeamService", "AddMember", "team_id", teamID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add team member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "team member added")
	}()

	vErr := &ValidationError{}
	if teamID == "" {
		vErr.add("team_id", "team id is required")
	}
	if userID == "" {
		vErr.add("user_id", "user id is required")
	}
	if vErr.HasErrors() {
		return vErr
	}

	if err = s.teams.AddTeamMember(ctx, teamID, userID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// IsMember reports whether userID belongs to teamID.
func (s *TeamService) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("TeamService is nil")
	}
	if s.teams == nil {
		return false, fmt.Errorf("team repository not configured")
	}
	ok, err := s.teams.IsTeamMember(ctx, strings.TrimSpace(teamID), strings.TrimSpace(userID))
	if err != nil {
		return false, mapRepoError(err)
	}
	return ok, nil
}
