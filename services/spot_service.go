package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skip2/go-qrcode"

	"skateQuestAPI/internal/badge"
	"skateQuestAPI/internal/progression"
	"skateQuestAPI/internal/types/spot"
	"skateQuestAPI/internal/user"
)

// SpotXPReward is the XP granted for contributing a new spot.
const SpotXPReward = 100

type SpotService struct {
	db *pgxpool.Pool
}

func NewSpotService(db *pgxpool.Pool) *SpotService {
	return &SpotService{db: db}
}

// AddSpot inserts the spot and credits the contributor (spotsAdded,
// XP, level, badges) in one transaction, so a failed insert never pays
// out and a paid-out insert never goes missing.
func (s *SpotService) AddSpot(ctx context.Context, clerkID string, req *spot.CreateSpotRequest) (*spot.Spot, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return nil, fmt.Errorf("invalid coordinates")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	newSpot := &spot.Spot{
		ID:         uuid.New(),
		Name:       req.Name,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Difficulty: req.Difficulty,
		Tricks:     req.Tricks,
		AddedBy:    clerkID,
		CreatedAt:  time.Now(),
	}
	if newSpot.Tricks == nil {
		newSpot.Tricks = []string{}
	}
	if req.ImageURL != "" {
		newSpot.ImageURL = &req.ImageURL
	}
	if req.VideoURL != "" {
		newSpot.VideoURL = &req.VideoURL
	}

	insertSpot := `
	INSERT INTO spots (id, name, latitude, longitude, difficulty, tricks, image_url, video_url, added_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, insertSpot,
		newSpot.ID,
		newSpot.Name,
		newSpot.Latitude,
		newSpot.Longitude,
		newSpot.Difficulty,
		newSpot.Tricks,
		newSpot.ImageURL,
		newSpot.VideoURL,
		newSpot.AddedBy,
		newSpot.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create spot: %w", err)
	}

	// First qualifying action creates the profile, same as the
	// completion path.
	lazyCreate := `
	INSERT INTO users (id, clerk_id, username, xp, level, spots_added, challenges_completed, streak, badges, created_at, updated_at)
	VALUES ($1, $2, $3, 0, 1, 0, 0, 0, '{}', NOW(), NOW())
	ON CONFLICT (clerk_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, lazyCreate, uuid.New(), clerkID, defaultUsername()); err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}

	var xp, spotsAdded, streak int
	var badges []string
	creditQuery := `
	UPDATE users
	SET spots_added = spots_added + 1, xp = xp + $2, updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING xp, spots_added, streak, badges
	`
	err = tx.QueryRow(ctx, creditQuery, clerkID, SpotXPReward).Scan(&xp, &spotsAdded, &streak, &badges)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to credit spot reward: %w", err)
	}

	// Re-derive level and badges from the post-credit stats in the same
	// transaction.
	snapshot := &user.Profile{
		ClerkID:    clerkID,
		XP:         xp,
		Level:      progression.LevelForXP(xp),
		SpotsAdded: spotsAdded,
		Streak:     streak,
		Badges:     badges,
	}
	badge.Grant(snapshot)

	finalize := `
	UPDATE users
	SET level = $2, badges = $3
	WHERE clerk_id = $1
	`
	if _, err := tx.Exec(ctx, finalize, clerkID, snapshot.Level, snapshot.Badges); err != nil {
		return nil, fmt.Errorf("failed to update level: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return newSpot, nil
}

func (s *SpotService) GetSpots(ctx context.Context) ([]*spot.Spot, error) {
	query := `
	SELECT id, name, latitude, longitude, difficulty, tricks, image_url, video_url, added_by, created_at
	FROM spots
	ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spots: %w", err)
	}
	defer rows.Close()

	return scanSpots(rows)
}

// GetNearbySpots returns spots within radiusKm of the given point,
// closest first. Haversine on the spot coordinates, done in SQL.
func (s *SpotService) GetNearbySpots(ctx context.Context, lat, lng, radiusKm float64) ([]*spot.Spot, error) {
	if radiusKm <= 0 {
		radiusKm = 10
	}

	query := `
	SELECT id, name, latitude, longitude, difficulty, tricks, image_url, video_url, added_by, created_at
	FROM (
		SELECT *,
			6371 * 2 * ASIN(SQRT(
				POWER(SIN(RADIANS(latitude - $1) / 2), 2) +
				COS(RADIANS($1)) * COS(RADIANS(latitude)) *
				POWER(SIN(RADIANS(longitude - $2) / 2), 2)
			)) AS distance_km
		FROM spots
	) nearby
	WHERE distance_km <= $3
	ORDER BY distance_km
	LIMIT 100
	`

	rows, err := s.db.Query(ctx, query, lat, lng, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nearby spots: %w", err)
	}
	defer rows.Close()

	return scanSpots(rows)
}

func (s *SpotService) GetSpot(ctx context.Context, spotID string) (*spot.Spot, error) {
	id, err := uuid.Parse(spotID)
	if err != nil {
		return nil, fmt.Errorf("invalid spot id: %w", err)
	}

	query := `
	SELECT id, name, latitude, longitude, difficulty, tricks, image_url, video_url, added_by, created_at
	FROM spots
	WHERE id = $1
	`

	sp := &spot.Spot{}
	err = s.db.QueryRow(ctx, query, id).Scan(
		&sp.ID,
		&sp.Name,
		&sp.Latitude,
		&sp.Longitude,
		&sp.Difficulty,
		&sp.Tricks,
		&sp.ImageURL,
		&sp.VideoURL,
		&sp.AddedBy,
		&sp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("spot not found")
		}
		return nil, fmt.Errorf("failed to get spot: %w", err)
	}
	return sp, nil
}

// ShareSpot builds a QR code wrapping the app deep link for a spot.
func (s *SpotService) ShareSpot(ctx context.Context, spotID string) (*spot.ShareResponse, error) {
	sp, err := s.GetSpot(ctx, spotID)
	if err != nil {
		return nil, err
	}

	deepLink := fmt.Sprintf("skatequest://spot/%s", sp.ID)
	pngBytes, err := qrcode.Encode(deepLink, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	return &spot.ShareResponse{
		SpotID:       sp.ID,
		DeepLink:     deepLink,
		QrCodeBase64: base64.StdEncoding.EncodeToString(pngBytes),
	}, nil
}

func scanSpots(rows pgx.Rows) ([]*spot.Spot, error) {
	spots := []*spot.Spot{}
	for rows.Next() {
		sp := &spot.Spot{}
		err := rows.Scan(
			&sp.ID,
			&sp.Name,
			&sp.Latitude,
			&sp.Longitude,
			&sp.Difficulty,
			&sp.Tricks,
			&sp.ImageURL,
			&sp.VideoURL,
			&sp.AddedBy,
			&sp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan spot: %w", err)
		}
		spots = append(spots, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spots: %w", err)
	}
	return spots, nil
}
