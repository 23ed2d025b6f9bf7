package domain_test

import (
	"errors"
	"testing"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	ticket := domain.Ticket{Number: "SCTASK0001", ShortDescription: "Create AD user jdoe"}
	s := domain.NewState(domain.InstanceIDFor(ticket), ticket)

	assert.Equal(t, "task_SCTASK0001", s.InstanceID)
	assert.Equal(t, domain.NodeSupervisor, s.PendingNode)
	assert.Equal(t, -1, s.ActionIndex)
	assert.Equal(t, domain.StatusActive, s.Status)
	assert.NotNil(t, s.AdditionalVariables)
	assert.Empty(t, s.ExecutionLog)
	assert.NoError(t, s.Validate())
}

func TestState_CloneIsIndependent(t *testing.T) {
	s := domain.NewState("task_1", domain.Ticket{Number: "1", Fields: map[string]any{"cmdb": map[string]any{"ci": "srv1"}}})
	s.ActionsList = []string{"a", "b"}
	s.AdditionalVariables["nested"] = map[string]any{"k": []any{"x"}}
	s.AppendLog(domain.StepRecord{Action: "a", Result: &domain.ActionResult{Status: domain.ActionSuccess}})

	c := s.Clone()
	c.ActionsList[0] = "z"
	c.AdditionalVariables["nested"].(map[string]any)["k"] = "changed"
	c.ExecutionLog[0].Result.OutputMessage = "mutated"
	c.Ticket.Fields["cmdb"].(map[string]any)["ci"] = "srv2"

	assert.Equal(t, "a", s.ActionsList[0])
	assert.Equal(t, []any{"x"}, s.AdditionalVariables["nested"].(map[string]any)["k"])
	assert.Empty(t, s.ExecutionLog[0].Result.OutputMessage)
	assert.Equal(t, "srv1", s.Ticket.Fields["cmdb"].(map[string]any)["ci"])
}

func TestState_Validate(t *testing.T) {
	t.Run("index must point at current action", func(t *testing.T) {
		s := domain.NewState("task_1", domain.Ticket{Number: "1"})
		s.ActionsList = []string{"a", "b"}
		s.CurrentAction = "b"
		s.ActionIndex = 0
		err := s.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidState))

		s.ActionIndex = 1
		assert.NoError(t, s.Validate())
	})

	t.Run("index out of range", func(t *testing.T) {
		s := domain.NewState("task_1", domain.Ticket{Number: "1"})
		s.ActionIndex = 3
		assert.ErrorIs(t, s.Validate(), domain.ErrInvalidState)
	})

	t.Run("error channel is set together", func(t *testing.T) {
		s := domain.NewState("task_1", domain.Ticket{Number: "1"})
		s.ErrorOccurred = true
		assert.ErrorIs(t, s.Validate(), domain.ErrInvalidState)

		s.SetError("boom", domain.DefaultReassignmentGroup)
		assert.NoError(t, s.Validate())
	})
}

func TestState_Extends(t *testing.T) {
	prev := domain.NewState("task_1", domain.Ticket{Number: "1"})
	prev.AdditionalVariables["username"] = "jdoe"
	prev.AppendLog(domain.StepRecord{Action: "parse"})

	next := prev.Clone()
	next.AppendLog(domain.StepRecord{Action: "check"})
	next.MergeVariables(map[string]any{"user_exists": false})
	assert.NoError(t, next.Extends(prev))

	rewritten := next.Clone()
	rewritten.ExecutionLog[0].Action = "other"
	assert.ErrorIs(t, rewritten.Extends(prev), domain.ErrInvalidState)

	shrunk := prev.Clone()
	shrunk.ExecutionLog = nil
	assert.ErrorIs(t, shrunk.Extends(prev), domain.ErrInvalidState)

	dropped := next.Clone()
	delete(dropped.AdditionalVariables, "username")
	assert.ErrorIs(t, dropped.Extends(prev), domain.ErrInvalidState)
}

func TestState_MergeVariablesLastWriteWins(t *testing.T) {
	s := domain.NewState("task_1", domain.Ticket{Number: "1"})
	s.MergeVariables(map[string]any{"a": 1, "b": "x"})
	s.MergeVariables(map[string]any{"b": "y", "c": true})

	assert.Equal(t, map[string]any{"a": 1, "b": "y", "c": true}, s.AdditionalVariables)
}

func TestState_IndexOf(t *testing.T) {
	s := domain.NewState("task_1", domain.Ticket{Number: "1"})
	s.ActionsList = []string{"parse", "check", "create"}

	assert.Equal(t, 1, s.IndexOf("check"))
	assert.Equal(t, -1, s.IndexOf("notify"))
	assert.Equal(t, -1, s.IndexOf(""))
}

func TestState_VariablesIsDeepCopy(t *testing.T) {
	s := domain.NewState("task_1", domain.Ticket{Number: "1"})
	s.MergeVariables(map[string]any{"groups": []any{"staff"}, "ou": map[string]any{"name": "Sales"}})

	vars := s.Variables()
	vars["groups"].([]any)[0] = "admins"
	vars["ou"].(map[string]any)["name"] = "IT"
	vars["extra"] = true

	assert.Equal(t, []any{"staff"}, s.AdditionalVariables["groups"])
	assert.Equal(t, map[string]any{"name": "Sales"}, s.AdditionalVariables["ou"])
	assert.NotContains(t, s.AdditionalVariables, "extra")
}
