package ports

import (
	"context"
	"testing"
	"time"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ContractState builds a snapshot that exercises every State field.
// Numbers are float64 so that JSON and CBOR backends round-trip them unchanged.
func ContractState(instanceID string) *domain.State {
	s := domain.NewState(instanceID, domain.Ticket{
		Number:           "SCTASK0042",
		SysID:            "9d385017c611228701d22104cc95c371",
		ShortDescription: "Create AD user jdoe",
		AssignmentGroup:  "Service Desk",
		Fields:           map[string]any{"priority": "2", "cmdb_ci": map[string]any{"value": "srv01"}},
	})
	s.FlowName = "ADUserCreation"
	s.ActionsList = []string{"parse_variables", "check_ad_user_existence", "create_ad_user"}
	s.CurrentAction = "check_ad_user_existence"
	s.ActionIndex = 1
	s.AdditionalVariables = map[string]any{
		"username": "jdoe",
		"count":    float64(42),
		"exists":   false,
		"groups":   []any{"vpn", "staff"},
		"profile":  map[string]any{"dept": "finance", "level": float64(3)},
	}
	s.AppendLog(domain.StepRecord{
		Action: "parse_variables",
		Result: &domain.ActionResult{Status: domain.ActionSuccess, OutputMessage: "parsed"},
	})
	s.AppendLog(domain.StepRecord{Action: domain.NodeSupervisor, Description: domain.CompletionDescription})
	s.WorknoteContent = "Variables parsed."
	s.SetError("boom", domain.DefaultReassignmentGroup)
	s.NextAction = true
	s.NextStep = string(domain.CategoryDirectory)
	s.PendingNode = domain.NodeSupervisor
	s.Transitions = 3
	s.UpdatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return s
}

// RunCheckpointStoreContract runs a suite of tests to verify that a
// CheckpointStore implementation adheres to the interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	instanceID := "task_contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := ContractState(instanceID)

		err := store.Save(ctx, instanceID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, instanceID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state, loaded, "every field must survive a round trip")
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		state := ContractState(instanceID)
		state.AppendLog(domain.StepRecord{Action: "create_ad_user", Error: true})
		require.NoError(t, store.Save(ctx, instanceID, state))

		loaded, err := store.Load(ctx, instanceID)
		require.NoError(t, err)
		assert.Len(t, loaded.ExecutionLog, 3)
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, instanceID)
		require.NoError(t, err)
		loaded.AdditionalVariables["username"] = "mutated"

		again, err := store.Load(ctx, instanceID)
		require.NoError(t, err)
		assert.Equal(t, "jdoe", again.AdditionalVariables["username"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+instanceID)
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, instanceID, ContractState(instanceID))
		require.NoError(t, err)

		err = store.Delete(ctx, instanceID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, instanceID)
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound, "Load after Delete should return ErrInstanceNotFound")

		assert.NoError(t, store.Delete(ctx, instanceID), "Delete of a missing instance is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := instanceID + "-1"
		id2 := instanceID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewState(id1, domain.Ticket{Number: "1"})))
		require.NoError(t, store.Save(ctx, id2, domain.NewState(id2, domain.Ticket{Number: "2"})))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		instances, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, instances, id1)
		assert.Contains(t, instances, id2)
	})
}
