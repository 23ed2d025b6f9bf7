package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/ports"
)

// Mask replaces values whose key matches a PII pattern.
const Mask = "***"

// DefaultPIIPatterns cover the secrets that directory workflows pass around.
var DefaultPIIPatterns = []string{`(?i)password`, `(?i)secret`, `(?i)token`, `(?i)ssn`}

type piiMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of variable and
// ticket field keys matching the patterns. Masking is lossy, so it belongs on
// archive copies, never on the store an instance resumes from.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, instanceID string, state *domain.State) error {
	// Clone so the engine's in-memory snapshot keeps the real values.
	cloned := state.Clone()
	maskMap(cloned.AdditionalVariables, m.patterns)
	maskMap(cloned.Ticket.Fields, m.patterns)
	return m.next.Save(ctx, instanceID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, instanceID string) (*domain.State, error) {
	return m.next.Load(ctx, instanceID)
}

func (m *piiMiddleware) Delete(ctx context.Context, instanceID string) error {
	return m.next.Delete(ctx, instanceID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			maskMap(val, patterns)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					maskMap(sub, patterns)
				}
			}
		}
	}
}
