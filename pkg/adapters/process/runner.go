package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mahi1722/ticketflow/internal/logging"
	"github.com/mahi1722/ticketflow/pkg/domain"
)

// EnvPrefix namespaces every variable the runner passes to a script.
const EnvPrefix = "TICKETFLOW_"

// gracePeriod is how long a cancelled script may take to exit before it is killed.
const gracePeriod = 5 * time.Second

// Runner is an Action Runner that executes local scripts.
//
// Only scripts inside the configured directory can run; action variables
// are passed as environment variables, never as command-line flags.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner. Unset Config fields take their defaults.
func NewRunner(cfg Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:    cfg.withDefaults(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Run executes the script bound to the invocation and normalizes its output.
// Only cancellation of ctx and a missing interpreter are returned as errors.
func (r *Runner) Run(ctx context.Context, inv domain.ActionInvocation) (domain.ActionResult, error) {
	file := inv.Script + r.cfg.Extension
	if filepath.Base(file) != file {
		return domain.FailedResult("Script %s is outside the %s folder.", inv.Script, r.cfg.ScriptDir), nil
	}
	path := filepath.Join(r.cfg.ScriptDir, file)
	if _, err := os.Stat(path); err != nil {
		return domain.FailedResult("Script %s not found in %s folder.", path, r.cfg.ScriptDir), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := append(append([]string(nil), r.cfg.Args...), path)
	cmd := exec.CommandContext(runCtx, r.cfg.Command, args...)
	cmd.WaitDelay = gracePeriod
	cmd.Env = append(cmd.Environ(), r.environment(inv)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("script finished",
		"instance_id", inv.InstanceID,
		"action", inv.Action,
		"script", path,
		"duration", time.Since(start),
		"error", err,
	)

	if err != nil {
		if ctx.Err() != nil {
			return domain.ActionResult{}, ctx.Err()
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && runCtx.Err() == nil {
			return domain.ActionResult{}, fmt.Errorf("failed to start %s: %w", r.cfg.Command, err)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return domain.FailedResult("Error executing %s: %s", file, detail), nil
	}

	return domain.ParseActionResult(inv.Script, stdout.Bytes()), nil
}

// environment renders the invocation as KEY=VALUE pairs. Primitives are
// formatted directly, maps and slices as JSON.
func (r *Runner) environment(inv domain.ActionInvocation) []string {
	env := make([]string, 0, len(r.cfg.Environment)+len(inv.Variables)+5)
	for k, v := range r.cfg.Environment {
		env = append(env, k+"="+v)
	}
	for k, v := range inv.Variables {
		env = append(env, EnvPrefix+"ARG_"+envKey(k)+"="+envValue(v))
	}

	vars, _ := json.Marshal(inv.Variables)
	ticket, _ := json.Marshal(inv.Ticket)
	env = append(env,
		EnvPrefix+"VARIABLES="+string(vars),
		EnvPrefix+"TICKET="+string(ticket),
		EnvPrefix+"INSTANCE_ID="+inv.InstanceID,
		EnvPrefix+"ACTION="+inv.Action,
		EnvPrefix+"IDEMPOTENCY_KEY="+inv.IdempotencyKey,
	)
	return env
}

func envKey(k string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, k)
}

func envValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}
