package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainotp "github.com/DexterMayheww/nit-portal-api/internal/domain/otp"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

func testChallenge(phone, code string, attempts int) domainotp.Challenge {
	now := time.Now()
	return domainotp.Challenge{
		Phone:             phone,
		Code:              code,
		IssuedAt:          now,
		ExpiresAt:         now.Add(5 * time.Minute),
		AttemptsRemaining: attempts,
	}
}

func TestChallengeStore_ConsumeMatch(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, testChallenge("+15550100", "482913", 3)))

	require.NoError(t, store.Consume(ctx, "+15550100", "482913"))

	// The code is single-use.
	err := store.Consume(ctx, "+15550100", "482913")
	assert.ErrorIs(t, err, ports.ErrChallengeNotFound)
}

func TestChallengeStore_ConsumeMismatchDecrements(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, testChallenge("+15550101", "482913", 3)))

	assert.ErrorIs(t, store.Consume(ctx, "+15550101", "000000"), ports.ErrCodeMismatch)
	assert.ErrorIs(t, store.Consume(ctx, "+15550101", "000000"), ports.ErrCodeMismatch)

	// Third miss spends the budget and destroys the challenge.
	assert.ErrorIs(t, store.Consume(ctx, "+15550101", "000000"), ports.ErrAttemptsExhausted)
	assert.ErrorIs(t, store.Consume(ctx, "+15550101", "482913"), ports.ErrChallengeNotFound)
}

func TestChallengeStore_CorrectCodeAfterMiss(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, testChallenge("+15550102", "482913", 3)))

	assert.ErrorIs(t, store.Consume(ctx, "+15550102", "111111"), ports.ErrCodeMismatch)
	assert.NoError(t, store.Consume(ctx, "+15550102", "482913"))
}

func TestChallengeStore_ConsumeUnknownPhone(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewChallengeStore(client)

	err := store.Consume(context.Background(), "+15559999", "482913")
	assert.ErrorIs(t, err, ports.ErrChallengeNotFound)
}

func TestChallengeStore_ExpiredChallenge(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, testChallenge("+15550103", "482913", 3)))

	// Move the store's clock past the challenge deadline.
	store.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	err := store.Consume(ctx, "+15550103", "482913")
	assert.ErrorIs(t, err, ports.ErrChallengeNotFound)
}

func TestChallengeStore_ReplaceSupersedes(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, testChallenge("+15550104", "111111", 3)))
	require.NoError(t, store.Replace(ctx, testChallenge("+15550104", "222222", 3)))

	// The superseded code is dead.
	assert.ErrorIs(t, store.Consume(ctx, "+15550104", "111111"), ports.ErrCodeMismatch)
	assert.NoError(t, store.Consume(ctx, "+15550104", "222222"))
}

func TestChallengeStore_ReplaceValidation(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewChallengeStore(client)
	ctx := context.Background()

	assert.Error(t, store.Replace(ctx, testChallenge("", "482913", 3)))
	assert.Error(t, store.Replace(ctx, testChallenge("+15550105", "", 3)))

	expired := testChallenge("+15550105", "482913", 3)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	assert.Error(t, store.Replace(ctx, expired))
}

func TestChallengeStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, testChallenge("+15550106", "482913", 3)))
	require.NoError(t, store.Delete(ctx, "+15550106"))

	err := store.Consume(ctx, "+15550106", "482913")
	assert.ErrorIs(t, err, ports.ErrChallengeNotFound)

	assert.NoError(t, store.Delete(ctx, "+15550106"))
	assert.NoError(t, store.Delete(ctx, ""))
}

func TestChallengeStore_ConcurrentConsume(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewChallengeStore(client)
	ctx := context.Background()

	const attempts = 3
	require.NoError(t, store.Replace(ctx, testChallenge("+15550107", "482913", attempts)))

	// Fire more wrong guesses than the budget allows; the WATCH transaction
	// must never let two goroutines spend the same attempt.
	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := store.Consume(ctx, "+15550107", "000000")
				if errors.Is(err, redis.TxFailedErr) {
					continue // lost the optimistic lock, try again
				}
				results <- err
				return
			}
		}()
	}
	wg.Wait()
	close(results)

	var mismatches, exhausted, notFound int
	for err := range results {
		switch {
		case errors.Is(err, ports.ErrCodeMismatch):
			mismatches++
		case errors.Is(err, ports.ErrAttemptsExhausted):
			exhausted++
		case errors.Is(err, ports.ErrChallengeNotFound):
			notFound++
		default:
			t.Fatalf("unexpected consume result: %v", err)
		}
	}

	assert.Equal(t, attempts-1, mismatches)
	assert.Equal(t, 1, exhausted)
	assert.Equal(t, workers-attempts, notFound)
}

func TestChallengeStore_ImplementsPort(t *testing.T) {
	var _ ports.ChallengeStore = (*ChallengeStore)(nil)
}
