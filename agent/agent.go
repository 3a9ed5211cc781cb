package agent

import (
	"context"
	stderrors "errors"

	"github.com/m4xw311/they/errors"
	"github.com/m4xw311/they/llm"
	"github.com/m4xw311/they/session"
	"github.com/m4xw311/they/tools"
	"go.uber.org/zap"
)

// DefaultMaxIterations bounds the model calls made for a single turn.
const DefaultMaxIterations = 50

// ErrMaxIterations ends a turn whose model kept requesting tools past the limit.
var ErrMaxIterations = stderrors.New("maximum tool iterations reached")

// Agent drives the model and the tools for one conversation turn at a time.
type Agent struct {
	client        llm.LLMClient
	registry      *tools.ToolRegistry
	systemPrompt  string
	maxIterations int
	logger        *zap.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithSystemPrompt sets the instructions sent ahead of every request.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

// WithMaxIterations bounds the model calls per turn.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

func New(client llm.LLMClient, registry *tools.ToolRegistry, opts ...Option) *Agent {
	a := &Agent{
		client:        client,
		registry:      registry,
		systemPrompt:  DefaultSystemPrompt,
		maxIterations: DefaultMaxIterations,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tools returns the tool declarations offered to the model.
func (a *Agent) Tools() []tools.Tool {
	return a.registry.Tools()
}

// RunStreamed starts a turn over history, which must already end with the
// user's message. The caller keeps ownership of history; the run works on a copy.
func (a *Agent) RunStreamed(ctx context.Context, history session.History) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		events: make(chan Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(r.done)
		defer close(r.events)
		r.history, r.err = a.loop(ctx, history.Clone(), r.emitter(ctx))
		if r.err != nil {
			a.logger.Debug("turn ended with error", zap.Error(r.err))
		}
	}()
	return r
}

func (a *Agent) loop(ctx context.Context, messages session.History, emit func(Event) error) (session.History, error) {
	available := a.registry.Tools()
	for i := 0; i < a.maxIterations; i++ {
		request := messages
		if a.systemPrompt != "" {
			request = append(session.History{{Role: session.RoleSystem, Content: a.systemPrompt}}, messages...)
		}

		a.logger.Debug("requesting model response", zap.Int("iteration", i), zap.Int("messages", len(request)))
		resp, err := a.client.Stream(ctx, request, available, func(text string) error {
			return emit(TextDelta{Text: text})
		})
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, errors.New("model returned no message")
		}
		resp.Role = session.RoleAssistant
		messages = append(messages, *resp)

		if len(resp.ToolCalls) == 0 {
			return messages, nil
		}

		for _, call := range resp.ToolCalls {
			if err := emit(ToolInvoked{CallID: call.ID, Name: call.Name, Arguments: string(call.Arguments)}); err != nil {
				return nil, err
			}
			result := a.registry.Execute(ctx, call.Name, call.Arguments)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := emit(ToolOutput{CallID: call.ID, Name: call.Name, Result: result}); err != nil {
				return nil, err
			}
			messages = append(messages, session.ToolResult(call, result))
		}
	}
	return nil, ErrMaxIterations
}
