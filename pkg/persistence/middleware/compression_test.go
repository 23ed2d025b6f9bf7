package middleware_test

import (
	"context"
	"testing"

	"github.com/mahi1722/ticketflow/pkg/adapters/memory"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/persistence/middleware"
	"github.com/mahi1722/ticketflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewCompressionMiddleware()
	require.NoError(t, err)
	ports.RunCheckpointStoreContract(t, mw(memory.NewStore()))
}

func TestChain_CompressThenEncrypt(t *testing.T) {
	compress, err := middleware.NewCompressionMiddleware()
	require.NoError(t, err)
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	underlying := memory.NewStore()
	store := middleware.Chain(underlying, compress, encrypt)
	ctx := context.Background()

	state := ports.ContractState("task_chain")
	require.NoError(t, store.Save(ctx, "task_chain", state))

	raw, err := underlying.Load(ctx, "task_chain")
	require.NoError(t, err)
	assert.Contains(t, raw.AdditionalVariables, "__encrypted__", "outermost layer on disk is encryption")
	assert.Equal(t, domain.NodeSupervisor, raw.PendingNode)

	loaded, err := store.Load(ctx, "task_chain")
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}
