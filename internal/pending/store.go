// Package pending holds a user's in-flight deregistration intent behind
// a random unguessable token until they confirm it, with a fixed TTL.
package pending

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an unconfirmed request stays valid
const DefaultTTL = 15 * time.Minute

// tokenBytes of randomness; hex-encoded the token is twice as long
const tokenBytes = 32

var (
	// ErrNotFound is returned on lookup of an unknown or consumed token
	ErrNotFound = errors.New("pending: request not found")
	// ErrMissingContact is returned when required contact fields are absent
	ErrMissingContact = errors.New("pending: email address and first name are required")
)

const (
	recordKeyPrefix = "pending:request:"
	indexKey        = "pending:tokens"
)

// Contact are the details the user submits with their batch
type Contact struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	Residence  string `json:"residence"`
}

// Request is one user's batch deregistration intent
type Request struct {
	Token           string      `json:"token"`
	CreatedAt       time.Time   `json:"created_at"`
	Contact         Contact     `json:"contact"`
	SubscriptionIDs []uuid.UUID `json:"subscription_ids"`
}

// Store keeps pending requests in Redis behind their tokens
type Store struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a pending request store; ttl <= 0 uses DefaultTTL
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{redis: client, ttl: ttl, now: time.Now}
}

// GenerateToken returns 32 cryptographically random bytes, hex encoded
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create persists a new pending request. Missing required contact
// fields return ErrMissingContact with no partial record left behind.
func (s *Store) Create(ctx context.Context, contact Contact, subscriptionIDs []uuid.UUID) (*Request, error) {
	if contact.Email == "" || contact.FirstName == "" {
		return nil, ErrMissingContact
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	req := &Request{
		Token:           token,
		CreatedAt:       s.now(),
		Contact:         contact,
		SubscriptionIDs: subscriptionIDs,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+token, data, s.ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(req.CreatedAt.Unix()), Member: token})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("storing pending request: %w", err)
	}
	return req, nil
}

// Lookup returns the request for a token, or ErrNotFound. Matching is
// exact only.
func (s *Store) Lookup(ctx context.Context, token string) (*Request, error) {
	data, err := s.redis.Get(ctx, recordKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Delete removes a consumed request. Deleting an already-removed token
// is a no-op, so concurrent sweeps and dispatches never collide.
func (s *Store) Delete(ctx context.Context, token string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, recordKeyPrefix+token)
	pipe.ZRem(ctx, indexKey, token)
	_, err := pipe.Exec(ctx)
	return err
}

// SweepExpired deletes every request older than the TTL and returns how
// many were removed. Safe to call concurrently with Create and Lookup.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl).Unix()

	tokens, err := s.redis.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	pipe := s.redis.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, recordKeyPrefix+token)
		pipe.ZRem(ctx, indexKey, token)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(tokens), nil
}
