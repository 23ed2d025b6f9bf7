package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/mahi1722/ticketflow/pkg/adapters/memory"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/persistence/middleware"
	"github.com/mahi1722/ticketflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.CheckpointStore, cfg middleware.EncryptionConfig) ports.CheckpointStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunCheckpointStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_HidesContent(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	state := ports.ContractState("task_secret")
	state.AdditionalVariables["password"] = "hunter2"
	require.NoError(t, secure.Save(ctx, "task_secret", state))

	stored, err := underlying.Load(ctx, "task_secret")
	require.NoError(t, err)
	assert.NotContains(t, stored.AdditionalVariables, "password")
	assert.Contains(t, stored.AdditionalVariables, "__encrypted__")
	assert.Empty(t, stored.ExecutionLog)
	assert.Empty(t, stored.Ticket.Number)

	loaded, err := secure.Load(ctx, "task_secret")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", loaded.AdditionalVariables["password"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	oldStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	state := domain.NewState("task_rot", domain.Ticket{Number: "rot"})
	state.AdditionalVariables["data"] = "encrypted-with-old-key"
	require.NoError(t, oldStore.Save(ctx, "task_rot", state))

	newStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := newStore.Load(ctx, "task_rot")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.AdditionalVariables["data"])

	loaded.AdditionalVariables["data"] = "encrypted-with-new-key"
	require.NoError(t, newStore.Save(ctx, "task_rot", loaded))

	_, err = oldStore.Load(ctx, "task_rot")
	assert.Error(t, err, "old key alone must not decrypt data written with the new key")
}

func TestEncryptionMiddleware_RejectsPlainState(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "task_plain", domain.NewState("task_plain", domain.Ticket{Number: "plain"})))

	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	_, err := secure.Load(ctx, "task_plain")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}
