// Package checkpoint implements ports.Checkpointer (§6.2) against Redis:
// one JSON envelope per investigation, overwritten atomically on every
// node transition via a single SET, read back with GET on resume.
// Grounded on the teacher's go-redis wiring pattern
// (test/integration/gateway/redis_standalone_test.go's goredis.NewClient
// options and test/integration/gateway/redis_deduplication_test.go's
// "alert:fingerprint:%s" key-naming convention).
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

const keyPrefix = "hybrid_investigator:checkpoint:"

// envelope is the JSON shape stored per investigation.
type envelope struct {
	Node     string                    `json:"node"`
	State    state.InvestigationState `json:"state"`
	SavedAt  time.Time                 `json:"saved_at"`
}

// Options configures the Redis connection, mirroring the teacher's
// goredis.Options fields exercised in its integration tests.
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TTL          time.Duration
}

// Checkpointer is the Redis-backed ports.Checkpointer implementation.
type Checkpointer struct {
	client *goredis.Client
	ttl    time.Duration
}

// New dials Redis per opts. Callers needing an in-process fake for tests
// should use NewWithClient against a miniredis-backed *goredis.Client.
func New(opts Options) *Checkpointer {
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		MaxRetries:   opts.MaxRetries,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
	return &Checkpointer{client: client, ttl: opts.TTL}
}

// NewWithClient wraps an already-constructed client (e.g. one pointed at a
// miniredis instance in tests).
func NewWithClient(client *goredis.Client, ttl time.Duration) *Checkpointer {
	return &Checkpointer{client: client, ttl: ttl}
}

func key(investigationID string) string {
	return fmt.Sprintf("%s%s", keyPrefix, investigationID)
}

// Save overwrites the single checkpoint envelope for investigationID.
func (c *Checkpointer) Save(ctx context.Context, investigationID string, node string, s state.InvestigationState) error {
	env := envelope{Node: node, State: s, SavedAt: time.Now()}
	payload, err := json.Marshal(env)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeCheckpoint, "failed to marshal checkpoint envelope")
	}

	if err := c.client.Set(ctx, key(investigationID), payload, c.ttl).Err(); err != nil {
		return apperrors.NewCheckpointError(investigationID, err)
	}
	return nil
}

// LoadLatest retrieves the most recent checkpoint, if any.
func (c *Checkpointer) LoadLatest(ctx context.Context, investigationID string) (string, state.InvestigationState, bool, error) {
	raw, err := c.client.Get(ctx, key(investigationID)).Bytes()
	if err == goredis.Nil {
		return "", state.InvestigationState{}, false, nil
	}
	if err != nil {
		return "", state.InvestigationState{}, false, apperrors.NewCheckpointError(investigationID, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", state.InvestigationState{}, false, apperrors.Wrap(err, apperrors.ErrorTypeCheckpoint, "failed to unmarshal checkpoint envelope")
	}
	return env.Node, env.State, true, nil
}

// Close releases the underlying Redis connection pool.
func (c *Checkpointer) Close() error {
	return c.client.Close()
}
