package confirm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentryline/guardcore/pkg/canonicalize"
	"github.com/sentryline/guardcore/pkg/guarderr"
	"github.com/sentryline/guardcore/pkg/ids"
)

// RedisRegistry is a cross-process Registry: the consumed set lives in
// Redis rather than process memory, so single-use holds across every
// orchestrator instance sharing the same Redis deployment, not just
// within one. This resolves the open cross-process-durability question
// the governance core's design notes flag for the in-memory registry.
//
// The insertion into the consumed set uses SETNX semantics (SetNX),
// which Redis guarantees atomic server-side — exactly the same
// first-writer-wins property the in-memory Registry gets from its
// mutex, just extended across processes.
type RedisRegistry struct {
	client    *redis.Client
	keyPrefix string
	issued    *Registry // still mint/track bound hashes in-process; only the consumed set is shared
}

// NewRedisRegistry wraps client. keyPrefix namespaces the consumed-set
// keys (e.g. "guardcore:confirm:").
func NewRedisRegistry(client *redis.Client, keyPrefix string) *RedisRegistry {
	return &RedisRegistry{client: client, keyPrefix: keyPrefix, issued: NewRegistry()}
}

func (r *RedisRegistry) consumedKey(confirmationID string) string {
	return r.keyPrefix + confirmationID
}

// Mint delegates to an in-memory Registry for bound-hash bookkeeping;
// only consumption needs cross-process coordination.
func (r *RedisRegistry) Mint(actionPayload interface{}, actorID string, kind Kind, requestedLifetime time.Duration) (Token, error) {
	return r.issued.Mint(actionPayload, actorID, kind, requestedLifetime)
}

// Consume validates the identifier, expiry and bound hash first, then
// makes the replay check and consumed-set insertion last, atomically in
// Redis via SETNX, so concurrent consumers across multiple processes
// still observe exactly one winner.
func (r *RedisRegistry) Consume(ctx context.Context, token Token, actionPayload interface{}, now time.Time) error {
	if err := ids.ValidateUUIDv4(token.ConfirmationID); err != nil {
		return err
	}
	if now.After(token.ExpiresAt) {
		return guarderr.New(guarderr.KindTokenExpired, "confirmation expired")
	}

	boundHash, err := canonicalize.Hash(actionPayload)
	if err != nil {
		return guarderr.Wrap(guarderr.KindIdentifierInvalid, "failed to hash action payload", err)
	}
	if boundHash != token.BoundHash {
		return guarderr.New(guarderr.KindTokenTampered, "action payload does not match bound hash")
	}

	record, err := json.Marshal(struct {
		ActorID   string    `json:"actor_id"`
		ConsumedAt time.Time `json:"consumed_at"`
	}{ActorID: token.ActorID, ConsumedAt: now})
	if err != nil {
		return guarderr.Wrap(guarderr.KindAuditIntegrity, "failed to marshal consumption record", err)
	}

	// Never expires: "no reset, no disable, no clear" per spec §4.D.
	ok, err := r.client.SetNX(ctx, r.consumedKey(token.ConfirmationID), record, 0).Result()
	if err != nil {
		return guarderr.Wrap(guarderr.KindAuditIntegrity, "redis consumed-set write failed", err)
	}
	if !ok {
		return guarderr.New(guarderr.KindReplayAttempt, "confirmation already consumed")
	}
	return nil
}

// IsConsumed reports whether confirmationID has been spent by any
// process sharing this Redis deployment.
func (r *RedisRegistry) IsConsumed(ctx context.Context, confirmationID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.consumedKey(confirmationID)).Result()
	if err != nil {
		return false, guarderr.Wrap(guarderr.KindAuditIntegrity, "redis consumed-set read failed", err)
	}
	return n > 0, nil
}
