// Package chat coordinates one conversational turn: bounded recent history
// and a ranked long-term memory digest feed a single prompt, the generation
// stream is forwarded live to the caller, and the completed exchange is
// persisted off the response path.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elacava/principia/internal/accounts"
	"github.com/elacava/principia/internal/history"
	"github.com/elacava/principia/internal/llm"
	"github.com/elacava/principia/internal/memos"
	"github.com/elacava/principia/internal/observability"
	"github.com/elacava/principia/internal/prompt"
	"github.com/elacava/principia/internal/reliability"
	"github.com/elacava/principia/internal/writeback"
)

var (
	// ErrUnknownUser re-exports the account error so transport code has a
	// single package to check against.
	ErrUnknownUser = accounts.ErrUnknownUser

	// ErrPromptTooLarge means the prompt exceeds the budget even after all
	// history has been evicted.
	ErrPromptTooLarge = errors.New("prompt too large even with empty history")

	// ErrHistoryUnavailable means the transcript could not be read. Unlike
	// memory, history is required for multi-turn correctness, so this is
	// fatal to the request.
	ErrHistoryUnavailable = errors.New("history store unavailable")

	errEmit = errors.New("delta forwarding failed")
)

// greetingQuery is the fixed, non-conversational probe used to pull a user
// profile for the greeting.
const greetingQuery = "User profile interests name background"

const greetingInstruction = "Using what you remember about the user, produce one short welcoming sentence. " +
	"Mention their name or interests if you recall them; otherwise welcome a new student in your usual exacting manner."

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	Persona             string
	GreetingFallback    string
	HistoryWindow       int
	HistoryReadTimeout  time.Duration
	MemorySearchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 20
	}
	if c.HistoryReadTimeout <= 0 {
		c.HistoryReadTimeout = 2 * time.Second
	}
	if c.MemorySearchTimeout <= 0 {
		c.MemorySearchTimeout = 3 * time.Second
	}
	if c.GreetingFallback == "" {
		c.GreetingFallback = "Welcome back to the halls of natural philosophy."
	}
	return c
}

// Orchestrator sequences accounts, history, memory, prompt assembly,
// generation, and write-back for every turn. All collaborators are
// injected at construction and held for the process lifetime.
type Orchestrator struct {
	cfg       Config
	accounts  *accounts.Service
	history   history.Store
	gateway   memos.Gateway
	adapter   llm.Adapter
	assembler *prompt.Assembler
	queue     *writeback.Queue
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewOrchestrator(
	cfg Config,
	accountsSvc *accounts.Service,
	historyStore history.Store,
	gateway memos.Gateway,
	adapter llm.Adapter,
	assembler *prompt.Assembler,
	queue *writeback.Queue,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg.withDefaults(),
		accounts:  accountsSvc,
		history:   historyStore,
		gateway:   gateway,
		adapter:   adapter,
		assembler: assembler,
		queue:     queue,
		logger:    logger.With("component", "chat"),
		metrics:   metrics,
	}
}

// HandleTurn runs one turn, forwarding every generation delta through emit
// as soon as it is produced. A nil error means the stream completed; fatal
// pre-stream conditions are returned before any delta is emitted.
//
// Overlapping turns from the same user are not serialized: their history
// appends land in receipt order. That is an accepted limitation, not a
// FIFO guarantee.
func (o *Orchestrator) HandleTurn(ctx context.Context, username, message string, emit func(delta string) error) error {
	id, err := o.accounts.Resolve(ctx, username)
	if err != nil {
		if errors.Is(err, accounts.ErrUnknownUser) {
			o.metrics.IncTurnEvent("unknown_user")
			return fmt.Errorf("%w: %s", ErrUnknownUser, username)
		}
		return fmt.Errorf("resolve user: %w", err)
	}

	turns, digest, err := o.gatherContext(ctx, username, id, message)
	if err != nil {
		return err
	}

	p, err := o.buildWithEviction(digest, turns, message)
	if err != nil {
		return err
	}

	o.metrics.StreamStarted()
	defer o.metrics.StreamEnded()
	o.metrics.IncTurnEvent("stream_started")

	start := time.Now()
	sawDelta := false
	res, streamErr := o.adapter.StreamChat(ctx, p, func(delta string) error {
		if !sawDelta {
			sawDelta = true
			o.metrics.ObserveFirstDeltaLatency(time.Since(start))
		}
		if err := emit(delta); err != nil {
			return fmt.Errorf("%w: %v", errEmit, err)
		}
		return nil
	})

	assistantText := res.Text
	switch {
	case streamErr == nil:
		o.metrics.IncTurnEvent("stream_completed")
	case errors.Is(streamErr, errEmit):
		// The caller went away. Stop pulling deltas but keep whatever the
		// model already said: partial assistant turns are valid history.
		o.logger.Info("caller disconnected mid-stream", "username", username)
		o.metrics.IncTurnEvent("caller_disconnected")
	default:
		class := reliability.ClassifyGenerationError(streamErr)
		o.logger.Warn("generation stream failed", "username", username, "class", class, "error", streamErr)
		o.metrics.IncProviderError("llm", class)
		o.metrics.IncTurnEvent("stream_failed")
		// The diagnostic marker reaches the caller but never the stores.
		_ = emit(diagnosticDelta(class, assistantText != ""))
	}

	o.queue.Submit(writeback.Job{
		Username:       username,
		NamespaceID:    id.NamespaceID,
		ConversationID: id.ConversationID,
		UserText:       message,
		AssistantText:  assistantText,
	})
	return nil
}

// Greet produces one short personalized greeting. It shares the memory
// gateway with the turn path but is not part of the turn lifecycle and
// writes nothing to either store.
func (o *Orchestrator) Greet(ctx context.Context, username string) (string, error) {
	id, err := o.accounts.Resolve(ctx, username)
	if err != nil {
		if errors.Is(err, accounts.ErrUnknownUser) {
			return "", fmt.Errorf("%w: %s", ErrUnknownUser, username)
		}
		return "", fmt.Errorf("resolve user: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, o.cfg.MemorySearchTimeout)
	digest := o.gateway.Search(searchCtx, id.NamespaceID, id.ConversationID, greetingQuery)
	cancel()

	p, err := o.assembler.Build(o.cfg.Persona+"\n\n"+greetingInstruction, digest, nil, "Greet the user.")
	if err != nil {
		return o.cfg.GreetingFallback, nil
	}

	greeting, err := o.adapter.Complete(ctx, p)
	if err != nil || greeting == "" {
		if err != nil {
			o.logger.Warn("greeting generation failed", "username", username, "error", err)
			o.metrics.IncProviderError("llm", reliability.ClassifyGenerationError(err))
		}
		return o.cfg.GreetingFallback, nil
	}
	return greeting, nil
}

// Clear wipes the user's transcript. Idempotent; unknown users succeed.
func (o *Orchestrator) Clear(ctx context.Context, username string) error {
	if err := o.history.Clear(ctx, username); err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}
	o.metrics.IncTurnEvent("history_cleared")
	return nil
}

// gatherContext runs the history read and the memory search concurrently
// with independent timeouts. History failure is fatal; memory failure has
// already been degraded to an empty digest by the gateway.
func (o *Orchestrator) gatherContext(ctx context.Context, username string, id accounts.Identity, query string) ([]history.Turn, string, error) {
	type historyResult struct {
		turns []history.Turn
		err   error
	}
	histCh := make(chan historyResult, 1)
	go func() {
		readCtx, cancel := context.WithTimeout(ctx, o.cfg.HistoryReadTimeout)
		defer cancel()
		turns, err := o.history.ReadWindow(readCtx, username, o.cfg.HistoryWindow)
		histCh <- historyResult{turns: turns, err: err}
	}()

	digestCh := make(chan string, 1)
	go func() {
		searchCtx, cancel := context.WithTimeout(ctx, o.cfg.MemorySearchTimeout)
		defer cancel()
		digestCh <- o.gateway.Search(searchCtx, id.NamespaceID, id.ConversationID, query)
	}()

	hist := <-histCh
	digest := <-digestCh
	if hist.err != nil {
		o.metrics.IncTurnEvent("history_read_failed")
		return nil, "", fmt.Errorf("%w: %v", ErrHistoryUnavailable, hist.err)
	}
	if digest == "" {
		o.metrics.IncTurnEvent("empty_digest")
	}
	return hist.turns, digest, nil
}

// buildWithEviction assembles the prompt, dropping the oldest history turn
// on each oversize failure until it fits or history is empty.
func (o *Orchestrator) buildWithEviction(digest string, turns []history.Turn, message string) (llm.Prompt, error) {
	for {
		p, err := o.assembler.Build(o.cfg.Persona, digest, turns, message)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, prompt.ErrOversized) {
			return llm.Prompt{}, err
		}
		if len(turns) == 0 {
			o.metrics.IncTurnEvent("prompt_too_large")
			return llm.Prompt{}, ErrPromptTooLarge
		}
		turns = turns[1:]
		o.metrics.IncTurnEvent("history_evicted")
	}
}

func diagnosticDelta(class string, partial bool) string {
	if partial {
		return "\n[generation interrupted: " + class + "]"
	}
	return "[generation failed: " + class + "]"
}
