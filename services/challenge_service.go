package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skateQuestAPI/internal/progression"
	"skateQuestAPI/internal/types/challenge"
	"skateQuestAPI/internal/types/notification"
)

const (
	// Bounded retry for contended completions; terminal outcomes are
	// never retried.
	maxCompleteAttempts = 5
	completeBackoffBase = 50 * time.Millisecond
)

type ChallengeService struct {
	db         *pgxpool.Pool
	store      progression.Store
	dispatcher *NotificationDispatcher
}

func NewChallengeService(db *pgxpool.Pool, store progression.Store, dispatcher *NotificationDispatcher) *ChallengeService {
	return &ChallengeService{
		db:         db,
		store:      store,
		dispatcher: dispatcher,
	}
}

// CompleteChallenge atomically flips a challenge to complete and awards its
// XP to the caller's profile, exactly once per challenge. Contended commits
// are retried a bounded number of times; everything else is terminal.
func (s *ChallengeService) CompleteChallenge(ctx context.Context, challengeID string, clerkID string) (*challenge.CompletionResult, error) {
	id, err := uuid.Parse(challengeID)
	if err != nil {
		return nil, progression.ErrChallengeNotFound
	}

	backoff := completeBackoffBase
	for attempt := 1; attempt <= maxCompleteAttempts; attempt++ {
		result, err := s.tryComplete(ctx, id, clerkID)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, progression.ErrAlreadyCompleted) {
			// Informational outcome, no writes happened.
			return &challenge.CompletionResult{
				Success: false,
				Reason:  challenge.ReasonAlreadyCompleted,
			}, nil
		}
		if !errors.Is(err, progression.ErrConflict) {
			return nil, err
		}

		log.Printf("CompleteChallenge: conflict on %s (attempt %d/%d), retrying", challengeID, attempt, maxCompleteAttempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("%w: gave up after %d attempts", progression.ErrConflict, maxCompleteAttempts)
}

// tryComplete runs one full read-modify-write cycle. The challenge read,
// the status guard, the profile mutation and both writes all ride a single
// atomic unit so two racing completers can never both pay out.
func (s *ChallengeService) tryComplete(ctx context.Context, id uuid.UUID, clerkID string) (*challenge.CompletionResult, error) {
	var result *challenge.CompletionResult
	var completed *challenge.Challenge

	err := s.store.RunAtomic(ctx, func(ctx context.Context, tx progression.Tx) error {
		ch, err := tx.GetChallengeForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if ch.Status == challenge.StatusComplete {
			return progression.ErrAlreadyCompleted
		}

		profile, err := tx.GetProfileForUpdate(ctx, clerkID)
		if err != nil {
			return err
		}

		now := time.Now()
		newBadges := progression.Award(profile, ch.XP, now)

		if err := tx.MarkComplete(ctx, ch.ID, clerkID, now); err != nil {
			return err
		}
		if err := tx.SaveProgress(ctx, profile); err != nil {
			return err
		}

		result = &challenge.CompletionResult{
			Success:   true,
			XPAwarded: ch.XP,
			NewXP:     profile.XP,
			NewLevel:  profile.Level,
			NewStreak: profile.Streak,
			NewBadges: newBadges,
		}
		completed = ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyCompletion(clerkID, completed, result)
	return result, nil
}

// notifyCompletion fires the post-commit pushes: the challenger hears
// their challenge landed, the completer hears about badges and streak
// milestones. All best-effort.
func (s *ChallengeService) notifyCompletion(clerkID string, ch *challenge.Challenge, result *challenge.CompletionResult) {
	if s.dispatcher == nil {
		return
	}

	if ch.ChallengerID != "" && ch.ChallengerID != clerkID {
		go s.dispatcher.SendToUser(context.Background(), &notification.Push{
			UserID: ch.ChallengerID,
			Type:   notification.TypeCalloutCompleted,
			Title:  "Challenge landed!",
			Body:   fmt.Sprintf("Someone landed your %s challenge", ch.Trick),
			Data:   map[string]any{"challenge_id": ch.ID.String()},
		})
	}

	if result.NewStreak == 5 || result.NewStreak == 30 {
		go s.dispatcher.SendToUser(context.Background(), &notification.Push{
			UserID: clerkID,
			Type:   notification.TypeStreakMilestone,
			Title:  "Streak milestone!",
			Body:   fmt.Sprintf("%d days in a row, keep rolling", result.NewStreak),
			Data:   map[string]any{"streak": result.NewStreak},
		})
	}

	s.notifyBadges(clerkID, result.NewBadges)
}

// notifyBadges pushes badge unlocks after the commit, best-effort.
func (s *ChallengeService) notifyBadges(clerkID string, badges []string) {
	if s.dispatcher == nil || len(badges) == 0 {
		return
	}
	for _, b := range badges {
		go s.dispatcher.SendToUser(context.Background(), &notification.Push{
			UserID: clerkID,
			Type:   notification.TypeBadgeUnlocked,
			Title:  "Badge unlocked!",
			Body:   fmt.Sprintf("You earned the %s badge", b),
			Data:   map[string]any{"badge": b},
		})
	}
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	if req.Trick == "" {
		return nil, fmt.Errorf("trick is required")
	}

	xp := req.XP
	if xp == 0 {
		xp = challenge.DefaultXP(challenge.Difficulty(req.Difficulty))
	}
	if xp < 1 || xp > challenge.MaxXP {
		return nil, fmt.Errorf("xp must be between 1 and %d", challenge.MaxXP)
	}

	c := &challenge.Challenge{
		ID:           uuid.New(),
		Trick:        req.Trick,
		ChallengerID: clerkID,
		XP:           xp,
		Status:       challenge.StatusPending,
		CreatedAt:    time.Now(),
	}

	if req.SpotID != "" {
		spotID, err := uuid.Parse(req.SpotID)
		if err != nil {
			return nil, fmt.Errorf("invalid spot id: %w", err)
		}
		var exists bool
		err = s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM spots WHERE id = $1)`, spotID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check spot: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("spot not found")
		}
		c.SpotID = &spotID
	}

	var targetUsername string
	if req.TargetUsername != "" {
		var targetID string
		err := s.db.QueryRow(ctx, `SELECT clerk_id, username FROM users WHERE username = $1`, req.TargetUsername).Scan(&targetID, &targetUsername)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("target user not found")
			}
			return nil, fmt.Errorf("failed to look up target user: %w", err)
		}
		if targetID == clerkID {
			return nil, fmt.Errorf("cannot call out yourself")
		}
		c.TargetID = &targetID
	}

	query := `
	INSERT INTO challenges (id, spot_id, trick, challenger_id, target_id, xp, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.Exec(ctx, query, c.ID, c.SpotID, c.Trick, c.ChallengerID, c.TargetID, c.XP, c.Status, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	if c.TargetID != nil && s.dispatcher != nil {
		targetID := *c.TargetID
		go s.dispatcher.SendToUser(context.Background(), &notification.Push{
			UserID: targetID,
			Type:   notification.TypeCalloutReceived,
			Title:  "You've been called out!",
			Body:   fmt.Sprintf("Land a %s for %d XP", c.Trick, c.XP),
			Data:   map[string]any{"challenge_id": c.ID.String()},
		})
	}

	return c, nil
}

func (s *ChallengeService) GetSpotChallenges(ctx context.Context, spotID string) ([]*challenge.Challenge, error) {
	id, err := uuid.Parse(spotID)
	if err != nil {
		return nil, fmt.Errorf("invalid spot id: %w", err)
	}

	query := `
	SELECT id, spot_id, trick, challenger_id, target_id, xp, status, completed_by, completed_at, created_at
	FROM challenges
	WHERE spot_id = $1
	ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spot challenges: %w", err)
	}
	defer rows.Close()

	return scanChallenges(rows)
}

type MyChallenges struct {
	Sent     []*challenge.Challenge `json:"sent"`
	Received []*challenge.Challenge `json:"received"`
}

func (s *ChallengeService) GetMyChallenges(ctx context.Context, clerkID string) (*MyChallenges, error) {
	query := `
	SELECT id, spot_id, trick, challenger_id, target_id, xp, status, completed_by, completed_at, created_at
	FROM challenges
	WHERE challenger_id = $1 OR target_id = $1
	ORDER BY created_at DESC
	LIMIT 100
	`

	rows, err := s.db.Query(ctx, query, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	defer rows.Close()

	all, err := scanChallenges(rows)
	if err != nil {
		return nil, err
	}

	mine := &MyChallenges{
		Sent:     []*challenge.Challenge{},
		Received: []*challenge.Challenge{},
	}
	for _, c := range all {
		if c.ChallengerID == clerkID {
			mine.Sent = append(mine.Sent, c)
		} else {
			mine.Received = append(mine.Received, c)
		}
	}
	return mine, nil
}

func scanChallenges(rows pgx.Rows) ([]*challenge.Challenge, error) {
	challenges := []*challenge.Challenge{}
	for rows.Next() {
		c := &challenge.Challenge{}
		err := rows.Scan(
			&c.ID,
			&c.SpotID,
			&c.Trick,
			&c.ChallengerID,
			&c.TargetID,
			&c.XP,
			&c.Status,
			&c.CompletedBy,
			&c.CompletedAt,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}
	return challenges, nil
}
