package confirm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

func actor(t *testing.T) string {
	t.Helper()
	return uuid.NewString()
}

func TestMint_BindsHashToPayload(t *testing.T) {
	r := NewRegistry()
	payload := map[string]interface{}{"action": "NAVIGATE", "target": "https://example.com"}
	tok, err := r.Mint(payload, actor(t), KindSingle, 10*time.Minute)
	require.NoError(t, err)
	assert.NotZero(t, tok.BoundHash)
	assert.True(t, tok.ExpiresAt.After(tok.IssuedAt))
}

func TestMint_ClampsLifetimeToKindMax(t *testing.T) {
	r := NewRegistry()
	tok, err := r.Mint(map[string]interface{}{"a": 1}, actor(t), KindSingle, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, tok.ExpiresAt.Sub(tok.IssuedAt))
}

// P1 (Single-use): exactly one of N concurrent consumers succeeds.
func TestConsume_SingleUseUnderConcurrency(t *testing.T) {
	r := NewRegistry()
	payload := map[string]interface{}{"action": "TRANSMIT", "target": "platform-x"}
	tok, err := r.Mint(payload, actor(t), KindSingle, 10*time.Minute)
	require.NoError(t, err)

	const n = 10
	var successCount, replayCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Consume(tok, payload, tok.IssuedAt)
			if err == nil {
				successCount.Add(1)
				return
			}
			if k, ok := guarderr.KindOf(err); ok && k == guarderr.KindReplayAttempt {
				replayCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successCount.Load())
	assert.EqualValues(t, n-1, replayCount.Load())
	assert.True(t, r.IsConsumed(tok.ConfirmationID))
}

// P2 (Expiry): consuming after expires_at returns TokenExpired and does
// not mark the token consumed.
func TestConsume_ExpiredTokenRejected(t *testing.T) {
	r := NewRegistry()
	payload := map[string]interface{}{"a": "b"}
	tok, err := r.Mint(payload, actor(t), KindSingle, 15*time.Minute)
	require.NoError(t, err)

	after := tok.ExpiresAt.Add(time.Second)
	err = r.Consume(tok, payload, after)
	require.Error(t, err)
	k, ok := guarderr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, guarderr.KindTokenExpired, k)
	assert.False(t, r.IsConsumed(tok.ConfirmationID))
}

// P3 (Binding): consuming with a different payload than the one hashed
// at mint time returns TokenTampered.
func TestConsume_TamperedPayloadRejected(t *testing.T) {
	r := NewRegistry()
	original := map[string]interface{}{"action": "NAVIGATE", "target": "https://good.example"}
	tok, err := r.Mint(original, actor(t), KindSingle, 10*time.Minute)
	require.NoError(t, err)

	tampered := map[string]interface{}{"action": "NAVIGATE", "target": "https://evil.example"}
	err = r.Consume(tok, tampered, tok.IssuedAt)
	require.Error(t, err)
	k, ok := guarderr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, guarderr.KindTokenTampered, k)
	assert.False(t, r.IsConsumed(tok.ConfirmationID))
}

func TestConsume_UnknownIDRejected(t *testing.T) {
	r := NewRegistry()
	fake := Token{ConfirmationID: "not-a-uuid"}
	err := r.Consume(fake, nil, time.Now())
	require.Error(t, err)
}

func TestConsume_ReplayAfterSuccessIsRejected(t *testing.T) {
	r := NewRegistry()
	payload := map[string]interface{}{"x": 1}
	tok, err := r.Mint(payload, actor(t), KindSingle, 10*time.Minute)
	require.NoError(t, err)

	require.NoError(t, r.Consume(tok, payload, tok.IssuedAt))
	err = r.Consume(tok, payload, tok.IssuedAt)
	require.Error(t, err)
	k, _ := guarderr.KindOf(err)
	assert.Equal(t, guarderr.KindReplayAttempt, k)
}

func TestMint_RejectsBadActorID(t *testing.T) {
	r := NewRegistry()
	_, err := r.Mint(map[string]interface{}{}, "not-a-uuid", KindSingle, time.Minute)
	require.Error(t, err)
}
