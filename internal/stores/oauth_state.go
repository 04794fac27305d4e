package stores

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth/internal"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// DefaultStateTTL bounds the time between authorize and callback.
const DefaultStateTTL = 5 * time.Minute

var (
	// ErrOAuthStateBackend wraps Redis failures. It is never a verdict.
	ErrOAuthStateBackend = errors.New("oauth state backend unavailable")
	// ErrStateBinding is returned by Generate when only one of userID and
	// refreshJTI is set.
	ErrStateBinding = errors.New("oauth state binding requires both user and refresh jti")
)

// StateResult is the verdict of ValidateAndConsume.
type StateResult int

const (
	// StateInvalid means the state was unknown, already consumed, expired,
	// blank or issued for a different provider.
	StateInvalid StateResult = iota
	// StateValid means the state was consumed and the caller may proceed.
	StateValid
	// StateSessionMismatch means the state was bound to a session other than
	// the one presented at callback. The state is consumed regardless.
	StateSessionMismatch
)

func (r StateResult) String() string {
	switch r {
	case StateValid:
		return "valid"
	case StateSessionMismatch:
		return "session_mismatch"
	default:
		return "invalid"
	}
}

// StateRecord is the persisted form of one authorize request.
type StateRecord struct {
	CreatedAt  time.Time `json:"createdAt"`
	UserID     *string   `json:"userId"`
	RefreshJTI *string   `json:"refreshJti"`
	Provider   string    `json:"provider"`
}

// Bound reports whether the record was created from an authenticated session.
func (r *StateRecord) Bound() bool {
	return r != nil && r.UserID != nil && r.RefreshJTI != nil
}

// OAuthStateStore issues and consumes single-use OAuth state tokens.
type OAuthStateStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewOAuthStateStore returns a store writing keys under prefix. A zero ttl
// means DefaultStateTTL; a nil clock means the real clock.
func NewOAuthStateStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration, clock clockwork.Clock) *OAuthStateStore {
	if prefix == "" {
		prefix = "aos"
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OAuthStateStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		clock:  clock,
	}
}

func (s *OAuthStateStore) key(state string) string {
	return s.prefix + ":" + state
}

// TTL returns the lifetime given to new state records.
func (s *OAuthStateStore) TTL() time.Duration { return s.ttl }

// Generate creates a state token for provider. userID and refreshJTI must be
// both set (link mode) or both empty (anonymous).
//
//	Performance: 1 Redis SET.
func (s *OAuthStateStore) Generate(ctx context.Context, provider, userID, refreshJTI string) (string, error) {
	if strings.TrimSpace(provider) == "" {
		return "", errors.New("oauth state requires provider")
	}
	if (userID == "") != (refreshJTI == "") {
		return "", ErrStateBinding
	}

	state, err := internal.NewStateToken()
	if err != nil {
		return "", err
	}

	record := StateRecord{
		CreatedAt: s.clock.Now().UTC(),
		Provider:  provider,
	}
	if userID != "" {
		record.UserID = &userID
		record.RefreshJTI = &refreshJTI
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return "", err
	}

	if err := s.redis.Set(ctx, s.key(state), encoded, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrOAuthStateBackend, err)
	}
	return state, nil
}

// ValidateAndConsume atomically reads and deletes state and checks it against
// provider and the caller's current identity. userID and refreshJTI are empty
// when the caller holds no valid session.
//
// The returned record is non-nil whenever a stored record was found, even for
// StateSessionMismatch.
//
//	Performance: 1 Redis GETDEL.
func (s *OAuthStateStore) ValidateAndConsume(
	ctx context.Context,
	state, provider, userID, refreshJTI string,
) (StateResult, *StateRecord, error) {
	if strings.TrimSpace(state) == "" {
		return StateInvalid, nil, nil
	}

	data, err := s.redis.GetDel(ctx, s.key(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return StateInvalid, nil, nil
		}
		return StateInvalid, nil, fmt.Errorf("%w: %v", ErrOAuthStateBackend, err)
	}

	var record StateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return StateInvalid, nil, nil
	}
	if record.Provider != provider {
		return StateInvalid, &record, nil
	}

	if !record.Bound() {
		return StateValid, &record, nil
	}
	if !constantTimeEqual(*record.UserID, userID) || !constantTimeEqual(*record.RefreshJTI, refreshJTI) {
		return StateSessionMismatch, &record, nil
	}
	return StateValid, &record, nil
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
