package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"skateQuestAPI/internal/progression"
	"skateQuestAPI/internal/types/challenge"
	"skateQuestAPI/internal/user"
)

// PgProgressionStore backs the progression store contract with Postgres.
// Row locks taken by the ForUpdate reads make the whole cycle atomic;
// serialization failures and deadlocks surface as progression.ErrConflict
// so the service layer can retry the cycle from the top.
type PgProgressionStore struct {
	db *pgxpool.Pool
}

func NewPgProgressionStore(db *pgxpool.Pool) *PgProgressionStore {
	return &PgProgressionStore{db: db}
}

func (s *PgProgressionStore) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx progression.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgProgressionTx{tx: tx}); err != nil {
		return asConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return asConflict(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// asConflict folds Postgres contention errors into the retryable sentinel.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return fmt.Errorf("%w: %s", progression.ErrConflict, pgErr.Message)
		}
	}
	return err
}

type pgProgressionTx struct {
	tx pgx.Tx
}

func (t *pgProgressionTx) GetChallengeForUpdate(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	query := `
	SELECT id, spot_id, trick, challenger_id, target_id, xp, status, completed_by, completed_at, created_at
	FROM challenges
	WHERE id = $1
	FOR UPDATE
	`

	c := &challenge.Challenge{}
	err := t.tx.QueryRow(ctx, query, id).Scan(
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, progression.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

func (t *pgProgressionTx) GetProfileForUpdate(ctx context.Context, clerkID string) (*user.Profile, error) {
	p, err := t.selectProfileForUpdate(ctx, clerkID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	// First qualifying action for this user: create the profile lazily,
	// then re-read under the lock. ON CONFLICT keeps a concurrent lazy
	// create from failing the transaction.
	insert := `
	INSERT INTO users (id, clerk_id, username, xp, level, spots_added, challenges_completed, streak, badges, created_at, updated_at)
	VALUES ($1, $2, $3, 0, 1, 0, 0, 0, '{}', NOW(), NOW())
	ON CONFLICT (clerk_id) DO NOTHING
	`
	if _, err := t.tx.Exec(ctx, insert, uuid.New(), clerkID, defaultUsername()); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	p, err = t.selectProfileForUpdate(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read profile: %w", err)
	}
	return p, nil
}

func (t *pgProgressionTx) selectProfileForUpdate(ctx context.Context, clerkID string) (*user.Profile, error) {
	query := `
	SELECT id, clerk_id, username, COALESCE(image_url, ''), xp, level, spots_added, challenges_completed, streak, last_completed_at, badges, created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	FOR UPDATE
	`

	p := &user.Profile{}
	err := t.tx.QueryRow(ctx, query, clerkID).Scan(
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

func (t *pgProgressionTx) MarkComplete(ctx context.Context, id uuid.UUID, completedBy string, completedAt time.Time) error {
	query := `
	UPDATE challenges
	SET status = 'complete', completed_by = $2, completed_at = $3
	WHERE id = $1 AND status != 'complete'
	`

	result, err := t.tx.Exec(ctx, query, id, completedBy, completedAt)
	if err != nil {
		return fmt.Errorf("failed to mark challenge complete: %w", err)
	}
	// The row is locked, so this only trips if the caller skipped the
	// status check.
	if result.RowsAffected() == 0 {
		return progression.ErrAlreadyCompleted
	}
	return nil
}

func (t *pgProgressionTx) SaveProgress(ctx context.Context, p *user.Profile) error {
	query := `
	UPDATE users
	SET xp = $2, level = $3, challenges_completed = $4, streak = $5, last_completed_at = $6, badges = $7, updated_at = NOW()
	WHERE clerk_id = $1
	`

	result, err := t.tx.Exec(ctx, query,
		p.ClerkID,
		p.XP,
		p.Level,
		p.ChallengesCompleted,
		p.Streak,
		p.LastCompleted,
		p.Badges,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return progression.ErrProfileNotFound
	}
	return nil
}

func defaultUsername() string {
	return fmt.Sprintf("Skater%d", rand.Intn(1000))
}
