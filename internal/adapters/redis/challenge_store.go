package redis

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainotp "github.com/DexterMayheww/nit-portal-api/internal/domain/otp"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

// consumeRetries bounds optimistic-lock retries when a concurrent writer
// touches the challenge key between WATCH and EXEC.
const consumeRetries = 3

// ChallengeStore is a Redis-based OTP challenge store. Challenges are keyed
// by phone number so at most one live challenge exists per phone; Replace
// overwrites unconditionally (last writer wins) and Consume runs under WATCH
// so concurrent verify attempts cannot both spend the same attempt.
type ChallengeStore struct {
	client redis.UniversalClient
	prefix string
	// now is swappable for expiry tests.
	now func() time.Time
}

// NewChallengeStore creates a new Redis-based challenge store.
func NewChallengeStore(client redis.UniversalClient) *ChallengeStore {
	return &ChallengeStore{
		client: client,
		prefix: "otp:",
		now:    time.Now,
	}
}

func (s *ChallengeStore) key(phone string) string {
	return s.prefix + phone
}

// Replace installs the challenge for its phone, superseding any live one.
func (s *ChallengeStore) Replace(ctx context.Context, ch domainotp.Challenge) error {
	if ch.Phone == "" {
		return errors.New("challenge phone cannot be empty")
	}
	if ch.Code == "" {
		return errors.New("challenge code cannot be empty")
	}

	ttl := ch.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("challenge is expired")
	}

	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	return s.client.Set(ctx, s.key(ch.Phone), data, ttl).Err()
}

// Consume verifies the submitted code against the live challenge for the
// phone. The whole read-compare-decrement cycle runs inside one WATCH
// transaction; a sentinel from the ports package reports the outcome.
func (s *ChallengeStore) Consume(ctx context.Context, phone, submitted string) error {
	if phone == "" {
		return ports.ErrChallengeNotFound
	}
	key := s.key(phone)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ports.ErrChallengeNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}

		var ch domainotp.Challenge
		if unmarshalErr := json.Unmarshal([]byte(data), &ch); unmarshalErr != nil {
			// Corrupt record; drop it rather than wedge the phone.
			if delErr := s.txDelete(ctx, tx, key); delErr != nil {
				return delErr
			}
			return ports.ErrChallengeNotFound
		}

		// Expiry is evaluated at read time; Redis TTL is only a backstop.
		if ch.Expired(s.now()) {
			if delErr := s.txDelete(ctx, tx, key); delErr != nil {
				return delErr
			}
			return ports.ErrChallengeNotFound
		}

		if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(submitted)) == 1 {
			// Match destroys the challenge so the code is single-use.
			return s.txDelete(ctx, tx, key)
		}

		ch.AttemptsRemaining--
		if ch.AttemptsRemaining <= 0 {
			if delErr := s.txDelete(ctx, tx, key); delErr != nil {
				return delErr
			}
			return ports.ErrAttemptsExhausted
		}

		encoded, marshalErr := json.Marshal(ch)
		if marshalErr != nil {
			return fmt.Errorf("marshal challenge: %w", marshalErr)
		}
		_, execErr := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, ch.ExpiresAt.Sub(s.now()))
			return nil
		})
		if execErr != nil {
			return execErr
		}
		return ports.ErrCodeMismatch
	}

	for i := 0; i < consumeRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			// Lost the race; re-read and try again.
			continue
		}
		return err
	}
	return fmt.Errorf("consume challenge: %w", redis.TxFailedErr)
}

// Delete removes any live challenge for the phone.
func (s *ChallengeStore) Delete(ctx context.Context, phone string) error {
	if phone == "" {
		return nil // Nothing to delete
	}
	return s.client.Del(ctx, s.key(phone)).Err()
}

func (s *ChallengeStore) txDelete(ctx context.Context, tx *redis.Tx, key string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}
