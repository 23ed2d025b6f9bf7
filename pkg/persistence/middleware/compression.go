package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/ports"
)

const compressedKey = "__zstd__"

type compressionMiddleware struct {
	next    ports.CheckpointStore
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressionMiddleware creates a middleware that zstd-compresses snapshots.
// Long execution logs compress well; the win grows with workflow length.
func NewCompressionMiddleware() (Middleware, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &compressionMiddleware{next: next, encoder: encoder, decoder: decoder}
	}, nil
}

func (m *compressionMiddleware) Save(ctx context.Context, instanceID string, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	compressed := m.encoder.EncodeAll(data, nil)
	return m.next.Save(ctx, instanceID, envelope(state, compressedKey, compressed))
}

func (m *compressionMiddleware) Load(ctx context.Context, instanceID string) (*domain.State, error) {
	env, err := m.next.Load(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	compressed, err := openEnvelope(env, compressedKey)
	if err != nil {
		return nil, err
	}

	data, err := m.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress state: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decompressed state: %w", err)
	}
	return &state, nil
}

func (m *compressionMiddleware) Delete(ctx context.Context, instanceID string) error {
	return m.next.Delete(ctx, instanceID)
}

func (m *compressionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
