package runtime

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mahi1722/ticketflow/pkg/domain"
	"github.com/mahi1722/ticketflow/pkg/ports"
	"github.com/mahi1722/ticketflow/pkg/registry"
	"github.com/zeebo/blake3"
)

// idempotencyDomain keys the BLAKE3 hash so idempotency keys never collide
// with other digests of the same bytes.
var idempotencyDomain = [32]byte{
	't', 'i', 'c', 'k', 'e', 't', 'f', 'l', 'o', 'w', '.', 'i', 'd', 'e', 'm', 'p',
	'o', 't', 'e', 'n', 'c', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// executor is a category node: it runs exactly one action per visit.
type executor struct {
	category  domain.Category
	decisions Decider
	runner    ports.ActionRunner
	registry  *registry.Registry
	group     string
	logger    *slog.Logger
	onAction  func(context.Context, *domain.ActionEvent)
}

func (x *executor) run(ctx context.Context, state *domain.State) (*domain.State, error) {
	action := state.CurrentAction
	logger := x.logger.With("instance_id", state.InstanceID, "node", string(x.category), "action", action)

	decision, err := x.decisions.ChooseNextAction(ctx, state)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("next action decision failed", "error", err)
		state.SetError("Agent execution error: "+err.Error(), x.group)
		return state, nil
	}

	start := time.Now()
	result, err := x.invoke(ctx, state)
	if err != nil {
		return nil, err
	}
	x.onAction(ctx, &domain.ActionEvent{
		Flow:     state.FlowName,
		Action:   action,
		Result:   result,
		Duration: time.Since(start),
	})

	if result.Failed() {
		message := result.ErrorMessage
		if message == "" {
			message = "action reported an error without a message"
		}
		logger.Warn("action failed", "reason", message)
		state.SetError(message, x.group)
		state.WorknoteContent = fmt.Sprintf("Error in %s: %s", action, message)
		state.AppendLog(domain.StepRecord{Action: action, Result: &result, Error: true})
		return state, nil
	}

	state.WorknoteContent = decision.WorknoteContent
	state.ActionsList = append([]string{}, decision.UpdatedActionsList...)
	state.CurrentAction = decision.NextAction
	state.NextAction = decision.NextAction != ""
	state.MergeVariables(decision.AdditionalVariables)
	state.ActionIndex = state.IndexOf(decision.NextAction)
	state.AppendLog(domain.StepRecord{Action: action, Result: &result})

	logger.Info("action succeeded", "next_action", decision.NextAction)
	return state, nil
}

// invoke resolves the current action and calls the Action Runner. Unknown
// actions and an unreachable runner become Error results; only
// cancellation is returned as an error.
func (x *executor) invoke(ctx context.Context, state *domain.State) (domain.ActionResult, error) {
	action, err := x.registry.Lookup(state.CurrentAction)
	if err != nil {
		return domain.FailedResult("%v", err), nil
	}

	res, err := x.runner.Run(ctx, domain.ActionInvocation{
		InstanceID:     state.InstanceID,
		Action:         action.Name,
		Script:         action.Script,
		Variables:      state.Variables(),
		Ticket:         state.Ticket.Clone(),
		IdempotencyKey: idempotencyKey(state.InstanceID, len(state.ExecutionLog), action.Name),
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.ActionResult{}, ctx.Err()
		}
		return domain.FailedResult("Error executing %s: %v", action.Script, err), nil
	}
	return res, nil
}

// idempotencyKey is stable across replays of the same step, so a script
// invoked twice after a crash can recognise the repeat.
func idempotencyKey(instanceID string, position int, action string) string {
	h, err := blake3.NewKeyed(idempotencyDomain[:])
	if err != nil {
		panic("runtime: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = h.Write([]byte(instanceID + "\x00" + strconv.Itoa(position) + "\x00" + action))
	return hex.EncodeToString(h.Sum(nil))
}
