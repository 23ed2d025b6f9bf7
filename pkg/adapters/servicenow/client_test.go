package servicenow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sysID = "9d385017c611228701d22104cc95c371"

type fakeInstance struct {
	mu      sync.Mutex
	patches []map[string]string
	lookups int
}

func (f *fakeInstance) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot" || pass != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"User Not Authenticated","detail":"Required to provide Auth information"}}`))
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/now/table/sc_task":
			f.lookups++
			if r.URL.Query().Get("sysparm_query") == "number=SCTASK001" {
				_, _ = w.Write([]byte(`{"result":[{"sys_id":"` + sysID + `"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"result":[]}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/api/now/table/sc_task/"+sysID:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.patches = append(f.patches, body)
			_, _ = w.Write([]byte(`{"result":{}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestClient_Updates(t *testing.T) {
	fake := &fakeInstance{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := New(srv.URL, WithBasicAuth("bot", "pw"))
	ctx := context.Background()

	require.NoError(t, c.PostWorkNote(ctx, "SCTASK001", "User created."))
	require.NoError(t, c.SetState(ctx, "SCTASK001", domain.TicketStateResolved))
	require.NoError(t, c.Reassign(ctx, sysID, "IT Support"))

	assert.Equal(t, []map[string]string{
		{"work_notes": "User created."},
		{"state": "6"},
		{"assignment_group": "IT Support"},
	}, fake.patches)
	assert.Equal(t, 1, fake.lookups, "sys_id lookups are cached")
}

func TestClient_UnknownTicket(t *testing.T) {
	fake := &fakeInstance{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	err := New(srv.URL, WithBasicAuth("bot", "pw")).PostWorkNote(context.Background(), "SCTASK404", "x")
	assert.ErrorContains(t, err, "SCTASK404 not found")
}

func TestClient_AuthError(t *testing.T) {
	fake := &fakeInstance{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	err := New(srv.URL).Reassign(context.Background(), sysID, "IT Support")
	var snErr *Error
	require.True(t, errors.As(err, &snErr))
	assert.Equal(t, http.StatusUnauthorized, snErr.StatusCode)
	assert.Equal(t, "User Not Authenticated", snErr.Message)
}

func TestClient_StateMapping(t *testing.T) {
	c := New("http://unused", WithStateValue(domain.TicketStateResolved, "3"))
	assert.Equal(t, "3", c.states[domain.TicketStateResolved])
	assert.Equal(t, "6", DefaultStates[domain.TicketStateResolved])

	err := c.SetState(context.Background(), sysID, domain.TicketState("on_hold"))
	assert.ErrorContains(t, err, "no choice value")
}
