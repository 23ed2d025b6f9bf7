package middleware

import (
	"encoding/base64"
	"fmt"

	"github.com/mahi1722/ticketflow/pkg/domain"
)

// envelope builds an opaque snapshot that carries payload under key. Only the
// instance ID and lifecycle status stay visible to the wrapped store.
func envelope(state *domain.State, key string, payload []byte) *domain.State {
	env := domain.NewState(state.InstanceID, domain.Ticket{})
	env.Status = state.Status
	env.PendingNode = state.PendingNode
	env.UpdatedAt = state.UpdatedAt
	env.AdditionalVariables = map[string]any{
		key: base64.StdEncoding.EncodeToString(payload),
	}
	return env
}

func openEnvelope(env *domain.State, key string) ([]byte, error) {
	encoded, ok := env.AdditionalVariables[key].(string)
	if !ok {
		return nil, fmt.Errorf("state is missing %s envelope", key)
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s envelope: %w", key, err)
	}
	return payload, nil
}
