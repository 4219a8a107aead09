package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	domainotp "github.com/DexterMayheww/nit-portal-api/internal/domain/otp"
)

const (
	defaultSweepInterval = 5 * time.Minute
	sweepScanCount       = 200
	challengeKeyPattern  = "otp:*"
)

// ChallengeSweeperOptions configures the periodic challenge sweep.
type ChallengeSweeperOptions struct {
	RedisClient redis.UniversalClient
	Interval    time.Duration
	Logger      *slog.Logger
}

// ChallengeSweeper periodically removes expired OTP challenges whose
// payload expiry precedes their Redis TTL. Verification is correct without
// it (expiry is evaluated at read time); the sweep is store hygiene only.
type ChallengeSweeper struct {
	client   redis.UniversalClient
	interval time.Duration
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewChallengeSweeper builds the sweeper.
// Returns nil when no Redis client is configured.
func NewChallengeSweeper(opts ChallengeSweeperOptions) *ChallengeSweeper {
	if opts.RedisClient == nil {
		return nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &ChallengeSweeper{
		client:   opts.RedisClient,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *ChallengeSweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting challenge sweeper", "interval", s.interval)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.loop(gctx) })
	return group.Wait()
}

func (s *ChallengeSweeper) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				// Redis hiccups are transient; log and keep ticking.
				s.logger.WarnContext(ctx, "challenge sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.InfoContext(ctx, "challenge sweep complete", "removed", removed)
			}
		}
	}
}

// Sweep runs one pass over the challenge keyspace and returns how many
// expired challenges it removed.
func (s *ChallengeSweeper) Sweep(ctx context.Context) (int, error) {
	var (
		removed int
		cursor  uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, challengeKeyPattern, sweepScanCount).Result()
		if err != nil {
			return removed, err
		}
		for _, key := range keys {
			expired, err := s.challengeExpired(ctx, key)
			if err != nil {
				return removed, err
			}
			if !expired {
				continue
			}
			if delErr := s.client.Del(ctx, key).Err(); delErr != nil {
				return removed, delErr
			}
			removed++
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (s *ChallengeSweeper) challengeExpired(ctx context.Context, key string) (bool, error) {
	data, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var ch domainotp.Challenge
	if unmarshalErr := json.Unmarshal([]byte(data), &ch); unmarshalErr != nil {
		// Corrupt record, sweep it.
		return true, nil
	}
	return ch.Expired(s.now()), nil
}
