package domain_test

import (
	"testing"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseActionResult(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.ActionResult
	}{
		{
			name: "empty output is success",
			raw:  "  \n",
			want: domain.ActionResult{Status: domain.ActionSuccess, OutputMessage: "Create-ADUser executed successfully with no output."},
		},
		{
			name: "success object",
			raw:  `{"Status":"Success","OutputMessage":"user created","ErrorMessage":""}`,
			want: domain.ActionResult{Status: domain.ActionSuccess, OutputMessage: "user created"},
		},
		{
			name: "error object",
			raw:  `{"Status":"Error","ErrorMessage":"duplicate name"}`,
			want: domain.ActionResult{Status: domain.ActionError, ErrorMessage: "duplicate name"},
		},
		{
			name: "status is case insensitive",
			raw:  `{"Status":"success"}`,
			want: domain.ActionResult{Status: domain.ActionSuccess},
		},
		{
			name: "non json output",
			raw:  "WARNING: something odd",
			want: domain.ActionResult{Status: domain.ActionError, ErrorMessage: "Failed to parse script output: WARNING: something odd"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ParseActionResult("Create-ADUser", []byte(tt.raw)))
		})
	}

	t.Run("unknown status is an error", func(t *testing.T) {
		res := domain.ParseActionResult("x", []byte(`{"Status":"Pending"}`))
		assert.True(t, res.Failed())
		assert.Contains(t, res.ErrorMessage, "unrecognized status")
	})
}

func TestCategory_Valid(t *testing.T) {
	assert.True(t, domain.CategoryDirectory.Valid())
	assert.True(t, domain.CategoryCollaboration.Valid())
	assert.False(t, domain.Category("hr_agent").Valid())
}

func TestTicketFromRecord(t *testing.T) {
	rec := map[string]any{
		"number":            "SCTASK0010",
		"sys_id":            "abc123",
		"short_description": "Create AD user jdoe",
		"assignment_group":  map[string]any{"link": "https://x", "value": "grp1", "display_value": "Service Desk"},
		"priority":          "3",
	}

	ticket, err := domain.TicketFromRecord(rec)
	assert.NoError(t, err)
	assert.Equal(t, "SCTASK0010", ticket.Number)
	assert.Equal(t, "abc123", ticket.ID())
	assert.Equal(t, "Service Desk", ticket.AssignmentGroup)
	assert.Equal(t, "3", ticket.Fields["priority"])

	_, err = domain.TicketFromRecord(map[string]any{"short_description": "no number"})
	assert.ErrorIs(t, err, domain.ErrInvalidTicket)
}
