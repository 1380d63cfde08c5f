package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skateQuestAPI/internal/badge"
	"skateQuestAPI/internal/types/leaderboard"
	"skateQuestAPI/internal/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

const profileColumns = `id, clerk_id, username, COALESCE(image_url, ''), xp, level, spots_added, challenges_completed, streak, last_completed_at, badges, created_at, updated_at`

func scanProfile(row pgx.Row) (*user.Profile, error) {
	p := &user.Profile{}
	err := row.Scan(
		&p.ID,
		&p.ClerkID,
		&p.Username,
		&p.ImageURL,
		&p.XP,
		&p.Level,
		&p.SpotsAdded,
		&p.ChallengesCompleted,
		&p.Streak,
		&p.LastCompleted,
		&p.Badges,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetOrCreateProfile returns the caller's profile, creating it on first
// sign-in the way the original app did (fresh skater at level 1, no XP).
func (s *UserService) GetOrCreateProfile(ctx context.Context, clerkID string) (*user.Profile, error) {
	p, err := s.GetProfileByClerkID(ctx, clerkID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	return s.CreateProfile(ctx, &user.CreateProfileRequest{ClerkID: clerkID})
}

func (s *UserService) GetProfileByClerkID(ctx context.Context, clerkID string) (*user.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE clerk_id = $1`, profileColumns)
	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func (s *UserService) CreateProfile(ctx context.Context, req *user.CreateProfileRequest) (*user.Profile, error) {
	username := req.Username
	if username == "" {
		username = defaultUsername()
	}

	query := fmt.Sprintf(`
	INSERT INTO users (id, clerk_id, username, image_url, xp, level, spots_added, challenges_completed, streak, badges, created_at, updated_at)
	VALUES ($1, $2, $3, NULLIF($4, ''), 0, 1, 0, 0, 0, '{}', NOW(), NOW())
	ON CONFLICT (clerk_id) DO UPDATE SET updated_at = users.updated_at
	RETURNING %s
	`, profileColumns)

	p, err := scanProfile(s.db.QueryRow(ctx, query, uuid.New(), req.ClerkID, username, req.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error) {
	query := fmt.Sprintf(`
	UPDATE users
	SET
		username = COALESCE(NULLIF($2, ''), username),
		image_url = COALESCE(NULLIF($3, ''), image_url),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING %s
	`, profileColumns)

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID, req.Username, req.ImageURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

func (s *UserService) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

// GetLeaderboard returns the top 50 skaters by XP plus the caller's own
// position, even when they rank outside the page.
func (s *UserService) GetLeaderboard(ctx context.Context, clerkID string) (*leaderboard.Leaderboard, error) {
	p, err := s.GetOrCreateProfile(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed profile id: %w", err)
	}

	query := `
	SELECT
		u.id AS user_id,
		u.username,
		u.image_url,
		u.xp,
		u.level,
		u.streak,
		RANK() OVER (ORDER BY u.xp DESC) AS rank
	FROM users u
	ORDER BY u.xp DESC, u.username
	LIMIT 50
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*leaderboard.LeaderboardEntry
	var userPosition *leaderboard.LeaderboardEntry

	for rows.Next() {
		entry := &leaderboard.LeaderboardEntry{}
		err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.ImageURL,
			&entry.XP,
			&entry.Level,
			&entry.Streak,
			&entry.Rank,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entries = append(entries, entry)

		if entry.UserID == userID {
			userPosition = entry
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if userPosition == nil {
		// Caller is below the fold; compute their rank separately.
		rankQuery := `
		SELECT username, image_url, xp, level, streak,
			(SELECT COUNT(*) + 1 FROM users o WHERE o.xp > u.xp) AS rank
		FROM users u
		WHERE u.id = $1
		`
		entry := &leaderboard.LeaderboardEntry{UserID: userID}
		err := s.db.QueryRow(ctx, rankQuery, userID).Scan(
			&entry.Username,
			&entry.ImageURL,
			&entry.XP,
			&entry.Level,
			&entry.Streak,
			&entry.Rank,
		)
		if err != nil {
			log.Printf("GetLeaderboard: failed to compute position for %s: %v", clerkID, err)
		} else {
			userPosition = entry
		}
	}

	totalUsers := len(entries)
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&totalUsers); err != nil {
		log.Printf("GetLeaderboard: failed to count users: %v", err)
	}

	return &leaderboard.Leaderboard{
		Entries:      entries,
		UserPosition: userPosition,
		TotalUsers:   totalUsers,
	}, nil
}

type BadgeWithStatus struct {
	badge.Rule
	Unlocked bool `json:"unlocked"`
}

// GetBadges lists the whole badge ladder with the caller's unlock status.
func (s *UserService) GetBadges(ctx context.Context, clerkID string) ([]*BadgeWithStatus, error) {
	p, err := s.GetOrCreateProfile(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	badges := make([]*BadgeWithStatus, 0, len(badge.Rules))
	for _, r := range badge.Rules {
		badges = append(badges, &BadgeWithStatus{
			Rule:     r,
			Unlocked: p.HasBadge(r.ID),
		})
	}
	return badges, nil
}
