package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/lookingglass/internal/tools"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCount = 4
	MinCount     = 1
	MaxCount     = 10

	DefaultIperfPort = 5201
	MinPort          = 1
	MaxPort          = 65535

	DefaultIperfDuration = 10
	MinDuration          = 1
	MaxDuration          = 60
)

// Invocation is a fully constrained tool call: a fixed binary, an argv
// vector, and the normalized parameters that produced it.
type Invocation struct {
	Kind     Kind
	Tool     string
	Args     []string
	Target   string
	Count    int
	Port     int
	Duration int
	Protocol string
}

// Invoker maps validated requests to exactly one tool invocation.
type Invoker struct {
	runner tools.CommandRunner
	paths  map[Kind]string
	logger zerolog.Logger
}

// InvokerOption customizes an Invoker.
type InvokerOption func(*Invoker)

// WithToolPath overrides the binary used for kind. Operator configuration
// only; request input never reaches this.
func WithToolPath(kind Kind, path string) InvokerOption {
	return func(inv *Invoker) {
		if path = strings.TrimSpace(path); path != "" {
			inv.paths[kind] = path
		}
	}
}

// WithLogger sets the logger used for execution failures.
func WithLogger(logger zerolog.Logger) InvokerOption {
	return func(inv *Invoker) {
		inv.logger = logger
	}
}

// NewInvoker builds an Invoker over runner. A nil runner uses
// tools.ExecRunner with its default timeout and output cap.
func NewInvoker(runner tools.CommandRunner, opts ...InvokerOption) *Invoker {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	inv := &Invoker{
		runner: runner,
		paths:  make(map[Kind]string),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Plan validates req and builds its invocation without running anything.
func (inv *Invoker) Plan(req Request) (Invocation, error) {
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Target) == "" {
		return Invocation{}, ErrMissingField
	}
	target, err := ValidateTarget(req.Target)
	if err != nil {
		return Invocation{}, err
	}
	kind, err := ParseKind(req.Type)
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: %q", err, req.Type)
	}

	plan := Invocation{
		Kind:   kind,
		Target: target,
		Count:  req.Count.Clamp(DefaultCount, MinCount, MaxCount),
	}
	count := strconv.Itoa(plan.Count)

	switch kind {
	case KindPing:
		plan.Tool = "ping"
		plan.Args = []string{"-c", count, "-n", target}
	case KindMTR:
		plan.Tool = "mtr"
		plan.Args = []string{"-r", "-c", count, "-n", target}
	case KindNextTrace:
		plan.Tool = "nexttrace"
		plan.Args = []string{target}
	case KindIperf3:
		plan.Tool = "iperf3"
		plan.Port = req.Port.Clamp(DefaultIperfPort, MinPort, MaxPort)
		plan.Duration = req.Duration.Clamp(DefaultIperfDuration, MinDuration, MaxDuration)
		plan.Protocol = ProtocolTCP
		if req.Protocol == ProtocolUDP {
			plan.Protocol = ProtocolUDP
		}
		plan.Args = []string{
			"-c", target,
			"-p", strconv.Itoa(plan.Port),
			"-t", strconv.Itoa(plan.Duration),
		}
		if plan.Protocol == ProtocolUDP {
			plan.Args = append(plan.Args, "-u")
		}
	}
	if path, ok := inv.paths[kind]; ok {
		plan.Tool = path
	}
	return plan, nil
}

// Run plans req, executes it once, and classifies the outcome.
func (inv *Invoker) Run(ctx context.Context, req Request) (Result, error) {
	plan, err := inv.Plan(req)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	out, err := inv.runner.Run(ctx, plan.Tool, plan.Args...)
	if err != nil {
		event := inv.logger.Error()
		classified := fmt.Errorf("%w: %s: %v", ErrExecutionFailed, plan.Kind, err)
		if errors.Is(err, tools.ErrToolNotFound) {
			event = inv.logger.Warn()
			classified = fmt.Errorf("%w: %s", ErrToolUnavailable, plan.Kind)
		}
		event.
			Str("kind", string(plan.Kind)).
			Str("tool", plan.Tool).
			Str("target", plan.Target).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("diagnostic failed")
		return Result{}, classified
	}

	inv.logger.Debug().
		Str("kind", string(plan.Kind)).
		Str("target", plan.Target).
		Int("exit_code", out.ExitCode).
		Dur("duration", out.Duration).
		Msg("diagnostic finished")

	return Result{
		Type:     plan.Kind,
		Target:   plan.Target,
		Count:    plan.Count,
		Output:   strings.TrimSpace(string(out.Stdout)),
		Warnings: strings.TrimSpace(string(out.Stderr)),
		Port:     plan.Port,
		Duration: plan.Duration,
		Protocol: plan.Protocol,
	}, nil
}
