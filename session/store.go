package session

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every backend failure returned by the store.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrInvalidKey is returned when a userID or jti cannot form a safe key.
var ErrInvalidKey = errors.New("invalid session key")

const scanBatch = 500

// Store persists one record per (userID, jti) device session.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	clock  clockwork.Clock
}

// NewStore creates a [Store] backed by the given Redis client. prefix sets the
// key namespace. A nil clock means the real clock.
func NewStore(rdb redis.UniversalClient, prefix string, clock clockwork.Clock) *Store {
	if prefix == "" {
		prefix = "rt"
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		redis:  rdb,
		prefix: prefix,
		clock:  clock,
	}
}

func (s *Store) key(userID, jti string) string {
	return s.prefix + ":" + userID + ":" + jti
}

func validPart(v string) bool {
	return v != "" && !strings.ContainsRune(v, ':')
}

// HashToken returns the SHA-256 digest stored in place of a refresh token.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// Save upserts the record for (userID, jti) with the given TTL. Saving the same
// jti twice overwrites the previous record.
//
//	Performance: 1 Redis SET.
func (s *Store) Save(ctx context.Context, userID, jti, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("refresh ttl must be positive")
	}
	if !validPart(userID) || !validPart(jti) {
		return ErrInvalidKey
	}

	now := s.clock.Now()
	data, err := Encode(&Record{
		UserID:    userID,
		JTI:       jti,
		TokenHash: HashToken(token),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(userID, jti), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the stored record or redis.Nil when none exists.
func (s *Store) Get(ctx context.Context, userID, jti string) (*Record, error) {
	if !validPart(userID) || !validPart(jti) {
		return nil, redis.Nil
	}

	data, err := s.redis.Get(ctx, s.key(userID, jti)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	r, err := Decode(data)
	if err != nil {
		return nil, err
	}
	r.JTI = jti
	return r, nil
}

// Validate reports whether token matches the record stored for (userID, jti).
// An absent record, a foreign owner and a hash mismatch all report false.
//
//	Performance: 1 Redis GET.
func (s *Store) Validate(ctx context.Context, userID, jti, token string) (bool, error) {
	r, err := s.Get(ctx, userID, jti)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if errors.Is(err, ErrRecordCorrupt) {
			return false, nil
		}
		return false, err
	}
	if r.UserID != userID {
		return false, nil
	}

	presented := HashToken(token)
	return subtle.ConstantTimeCompare(presented[:], r.TokenHash[:]) == 1, nil
}

// Delete removes one device session. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, userID, jti string) error {
	if !validPart(userID) || !validPart(jti) {
		return nil
	}
	if err := s.redis.Del(ctx, s.key(userID, jti)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAll removes every device session of userID and returns how many
// records were removed.
//
// The SCAN is not atomic with respect to concurrent Saves: a session created
// while the scan is running may survive.
func (s *Store) DeleteAll(ctx context.Context, userID string) (int, error) {
	if !validPart(userID) {
		return 0, ErrInvalidKey
	}

	pattern := escapeGlob(s.prefix) + ":" + escapeGlob(userID) + ":*"
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := s.redis.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

// ActiveSessions lists the jtis of userID's live device sessions.
// This is O(keyspace) and must not be used in request hot paths.
func (s *Store) ActiveSessions(ctx context.Context, userID string) ([]string, error) {
	if !validPart(userID) {
		return []string{}, nil
	}

	keyPrefix := s.prefix + ":" + userID + ":"
	pattern := escapeGlob(s.prefix) + ":" + escapeGlob(userID) + ":*"
	jtis := []string{}
	iter := s.redis.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		jtis = append(jtis, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return jtis, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func escapeGlob(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
