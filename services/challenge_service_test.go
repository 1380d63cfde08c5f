package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skateQuestAPI/internal/progression"
	"skateQuestAPI/internal/types/challenge"
	"skateQuestAPI/internal/user"
)

// memStore is an in-memory progression.Store. Each RunAtomic stages its
// writes and only publishes them if the callback succeeds, mirroring the
// all-or-nothing commit of the real store.
type memStore struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]*challenge.Challenge
	profiles   map[string]*user.Profile

	// conflicts makes the next N commits fail with ErrConflict, for
	// exercising the retry path.
	conflicts int
}

func newMemStore() *memStore {
	return &memStore{
		challenges: make(map[uuid.UUID]*challenge.Challenge),
		profiles:   make(map[string]*user.Profile),
	}
}

func (s *memStore) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx progression.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflicts > 0 {
		s.conflicts--
		return progression.ErrConflict
	}

	tx := &memTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	store            *memStore
	stagedChallenges []*challenge.Challenge
	stagedProfiles   []*user.Profile
}

func (t *memTx) GetChallengeForUpdate(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	c, ok := t.store.challenges[id]
	if !ok {
		return nil, progression.ErrChallengeNotFound
	}
	copied := *c
	t.stagedChallenges = append(t.stagedChallenges, &copied)
	return &copied, nil
}

func (t *memTx) GetProfileForUpdate(ctx context.Context, clerkID string) (*user.Profile, error) {
	p, ok := t.store.profiles[clerkID]
	if !ok {
		p = &user.Profile{
			ClerkID:  clerkID,
			Username: "skater",
			Level:    1,
			Badges:   []string{},
		}
	}
	copied := *p
	copied.Badges = append([]string{}, p.Badges...)
	t.stagedProfiles = append(t.stagedProfiles, &copied)
	return &copied, nil
}

func (t *memTx) MarkComplete(ctx context.Context, id uuid.UUID, completedBy string, completedAt time.Time) error {
	for _, c := range t.stagedChallenges {
		if c.ID == id {
			at := completedAt
			c.Status = challenge.StatusComplete
			c.CompletedBy = &completedBy
			c.CompletedAt = &at
			return nil
		}
	}
	return progression.ErrChallengeNotFound
}

func (t *memTx) SaveProgress(ctx context.Context, p *user.Profile) error {
	return nil
}

func (t *memTx) commit() {
	for _, c := range t.stagedChallenges {
		t.store.challenges[c.ID] = c
	}
	for _, p := range t.stagedProfiles {
		t.store.profiles[p.ClerkID] = p
	}
}

func (s *memStore) addChallenge(xp int) uuid.UUID {
	id := uuid.New()
	s.challenges[id] = &challenge.Challenge{
		ID:        id,
		Trick:     "kickflip",
		XP:        xp,
		Status:    challenge.StatusPending,
		CreatedAt: time.Now(),
	}
	return id
}

func (s *memStore) addProfile(clerkID string, xp int) {
	s.profiles[clerkID] = &user.Profile{
		ClerkID:  clerkID,
		Username: clerkID,
		XP:       xp,
		Level:    1,
		Badges:   []string{},
	}
}

func newTestChallengeService(store *memStore) *ChallengeService {
	return NewChallengeService(nil, store, nil)
}

func TestCompleteChallenge_AwardsOnce(t *testing.T) {
	store := newMemStore()
	store.addProfile("user_1", 50)
	id := store.addChallenge(100)

	svc := newTestChallengeService(store)

	result, err := svc.CompleteChallenge(context.Background(), id.String(), "user_1")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 100, result.XPAwarded)
	assert.Equal(t, 150, result.NewXP)
	assert.Equal(t, 2, result.NewLevel)
	assert.Equal(t, 1, result.NewStreak)
	assert.Contains(t, result.NewBadges, "100-xp")
	assert.Contains(t, result.NewBadges, "first-challenge")

	c := store.challenges[id]
	assert.Equal(t, challenge.StatusComplete, c.Status)
	require.NotNil(t, c.CompletedBy)
	assert.Equal(t, "user_1", *c.CompletedBy)
	assert.NotNil(t, c.CompletedAt)
}

func TestCompleteChallenge_SecondCallerGetsAlreadyCompleted(t *testing.T) {
	store := newMemStore()
	store.addProfile("user_1", 0)
	store.addProfile("user_2", 0)
	id := store.addChallenge(100)

	svc := newTestChallengeService(store)

	first, err := svc.CompleteChallenge(context.Background(), id.String(), "user_1")
	require.NoError(t, err)
	assert.True(t, first.Success)

	second, err := svc.CompleteChallenge(context.Background(), id.String(), "user_2")
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, challenge.ReasonAlreadyCompleted, second.Reason)

	// The loser's profile never changed.
	assert.Equal(t, 0, store.profiles["user_2"].XP)
	assert.Equal(t, 0, store.profiles["user_2"].ChallengesCompleted)
}

func TestCompleteChallenge_ConcurrentCompleters(t *testing.T) {
	store := newMemStore()
	id := store.addChallenge(100)

	svc := newTestChallengeService(store)

	const n = 20
	results := make([]*challenge.CompletionResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clerkID := "user_" + string(rune('a'+i))
			results[i], errs[i] = svc.CompleteChallenge(context.Background(), id.String(), clerkID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if results[i].Success {
			winners++
		} else {
			assert.Equal(t, challenge.ReasonAlreadyCompleted, results[i].Reason)
		}
	}
	assert.Equal(t, 1, winners, "exactly one completer may be paid")
}

func TestCompleteChallenge_NotFound(t *testing.T) {
	store := newMemStore()
	store.addProfile("user_1", 50)

	svc := newTestChallengeService(store)

	_, err := svc.CompleteChallenge(context.Background(), uuid.New().String(), "user_1")
	assert.ErrorIs(t, err, progression.ErrChallengeNotFound)

	// Malformed ids are indistinguishable from missing ones.
	_, err = svc.CompleteChallenge(context.Background(), "not-a-uuid", "user_1")
	assert.ErrorIs(t, err, progression.ErrChallengeNotFound)

	assert.Equal(t, 50, store.profiles["user_1"].XP)
}

func TestCompleteChallenge_RetriesThroughConflicts(t *testing.T) {
	store := newMemStore()
	store.addProfile("user_1", 0)
	id := store.addChallenge(50)
	store.conflicts = 2

	svc := newTestChallengeService(store)

	result, err := svc.CompleteChallenge(context.Background(), id.String(), "user_1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 50, result.NewXP)
}

func TestCompleteChallenge_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	store.addProfile("user_1", 0)
	id := store.addChallenge(50)
	store.conflicts = maxCompleteAttempts + 1

	svc := newTestChallengeService(store)

	_, err := svc.CompleteChallenge(context.Background(), id.String(), "user_1")
	assert.ErrorIs(t, err, progression.ErrConflict)

	// Nothing was written on the failed path.
	assert.Equal(t, challenge.StatusPending, store.challenges[id].Status)
	assert.Equal(t, 0, store.profiles["user_1"].XP)
}

func TestCompleteChallenge_LazyProfile(t *testing.T) {
	store := newMemStore()
	id := store.addChallenge(100)

	svc := newTestChallengeService(store)

	result, err := svc.CompleteChallenge(context.Background(), id.String(), "user_new")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 100, result.NewXP)
	assert.Equal(t, 1, result.NewStreak)

	p, ok := store.profiles["user_new"]
	require.True(t, ok)
	assert.Equal(t, 100, p.XP)
}
