package turn

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/events"
)

// Delays pace the visible transitions of a turn.
type Delays struct {
	Typing   time.Duration
	Handoff  time.Duration
	LeadForm time.Duration
}

// DefaultDelays mirror the widget's original pacing.
var DefaultDelays = Delays{
	Typing:   1500 * time.Millisecond,
	Handoff:  1000 * time.Millisecond,
	LeadForm: 2000 * time.Millisecond,
}

// TurnResult describes what a Send call did. Messages holds what was appended by the
// time Send returned, excluding the user message and any typing placeholder.
type TurnResult struct {
	UserMessage       chat.Message    `json:"userMessage"`
	Messages          []chat.Message  `json:"messages"`
	Persona           persona.Persona `json:"persona"`
	Handoff           bool            `json:"handoff"`
	LeadFormScheduled bool            `json:"leadFormScheduled"`
	Turn              int             `json:"turn"`
}

// Orchestrator runs the turn state machine of a single session. All session mutation
// happens under mu; transitions are scheduled outside it. pubMu is taken before mu is
// released so listeners see events in the order the session changed.
type Orchestrator struct {
	mu          sync.Mutex
	pubMu       sync.Mutex
	session     chat.Session
	closed      bool
	leadPending bool

	engine    *Engine
	scheduler Scheduler
	listener  events.Listener
	delays    Delays
	now       func() time.Time
	logger    *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithScheduler sets the scheduler for delayed transitions.
func WithScheduler(s Scheduler) OrchestratorOption {
	return func(o *Orchestrator) { o.scheduler = s }
}

// WithListener sets the event sink.
func WithListener(l events.Listener) OrchestratorOption {
	return func(o *Orchestrator) { o.listener = l }
}

// WithDelays overrides the transition delays.
func WithDelays(d Delays) OrchestratorOption {
	return func(o *Orchestrator) { o.delays = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator opens session id with the default persona active and its greeting
// as the first message.
func NewOrchestrator(id string, engine *Engine, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		engine:   engine,
		listener: events.Discard,
		delays:   DefaultDelays,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.scheduler == nil {
		o.scheduler = NewTimerScheduler()
	}
	o.logger = o.logger.With("session_id", id)

	now := o.now()
	greeter := engine.Personas().Default()
	o.session = chat.Session{
		ID:              id,
		ActivePersonaID: greeter.ID,
		State:           chat.StateIdle,
		CreatedAt:       now,
	}
	if greeter.Greeting != "" {
		o.session.Messages = append(o.session.Messages, chat.PersonaMessage(greeter, greeter.Greeting, now))
	}
	return o
}

// ID returns the session id.
func (o *Orchestrator) ID() string {
	return o.session.ID
}

// Send runs one turn for text. It returns once the user message is recorded and the
// first transition is scheduled; with ImmediateScheduler the whole turn has completed.
func (o *Orchestrator) Send(ctx context.Context, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return TurnResult{}, ErrSessionClosed
	}
	if o.session.State != chat.StateIdle {
		o.mu.Unlock()
		return TurnResult{}, ErrTurnInProgress
	}

	userMsg := chat.UserMessage(text, o.now())
	o.session.Messages = append(o.session.Messages, userMsg)
	o.session.Turns++
	o.session.State = chat.StateAwaitingReply
	turn := o.session.Turns
	mark := len(o.session.Messages)

	analysis := o.engine.Analyze(ctx, o.session.Clone(), text)
	o.session.Context = analysis.Context
	o.unlockAndPublish(
		events.Event{Type: events.TypeMessage, Message: &userMsg},
		events.Event{Type: events.TypeState, State: chat.StateAwaitingReply},
	)

	o.logger.Info("turn started",
		"turn", turn,
		"persona_id", analysis.Persona.ID,
		"score", analysis.Score,
		"handoff", analysis.Handoff,
		"lead_form_due", analysis.LeadFormDue,
	)

	detached := context.WithoutCancel(ctx)
	if analysis.Handoff {
		o.scheduler.AfterFunc(o.delays.Handoff, func() { o.handoff(detached, text, analysis) })
	} else {
		o.startTyping(detached, text, analysis)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	result := TurnResult{
		UserMessage:       userMsg,
		Persona:           analysis.Persona,
		Handoff:           analysis.Handoff,
		LeadFormScheduled: analysis.LeadFormDue,
		Turn:              turn,
	}
	for _, msg := range o.session.Messages[mark:] {
		if !msg.TypingPlaceholder {
			result.Messages = append(result.Messages, msg)
		}
	}
	return result, nil
}

func (o *Orchestrator) handoff(ctx context.Context, text string, analysis Analysis) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	notice := chat.HandoffMessage(o.engine.HandoffText(analysis.Persona), o.now())
	o.session.Messages = append(o.session.Messages, notice)
	from := o.session.ActivePersonaID
	o.session.ActivePersonaID = analysis.Persona.ID
	o.unlockAndPublish(events.Event{Type: events.TypeHandoff, Message: &notice, PersonaID: analysis.Persona.ID})

	o.logger.Info("persona handoff", "from", from, "persona_id", analysis.Persona.ID)
	o.startTyping(ctx, text, analysis)
}

func (o *Orchestrator) startTyping(ctx context.Context, text string, analysis Analysis) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	speaker := persona.Resolve(o.engine.Personas(), o.session.ActivePersonaID)
	placeholder := chat.TypingMessage(speaker, o.now())
	o.session.Messages = append(o.session.Messages, placeholder)
	o.unlockAndPublish(events.Event{Type: events.TypeTyping, Message: &placeholder, PersonaID: speaker.ID})
	o.scheduler.AfterFunc(o.delays.Typing, func() { o.deliver(ctx, text, placeholder.ID, analysis) })
}

func (o *Orchestrator) deliver(ctx context.Context, text, placeholderID string, analysis Analysis) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	speaker := persona.Resolve(o.engine.Personas(), o.session.ActivePersonaID)
	reply := chat.PersonaMessage(speaker, o.engine.Reply(ctx, text, speaker, o.session.Context), o.now())
	o.session.ReplacePlaceholder(placeholderID, reply)
	o.session.State = chat.StateIdle
	o.unlockAndPublish(
		events.Event{Type: events.TypeMessageReplaced, Message: &reply, ReplacesID: placeholderID, PersonaID: speaker.ID},
		events.Event{Type: events.TypeState, State: chat.StateIdle},
	)

	if analysis.LeadFormDue {
		o.scheduler.AfterFunc(o.delays.LeadForm, o.showLeadForm)
	}
}

func (o *Orchestrator) showLeadForm() {
	o.mu.Lock()
	if o.closed || o.session.LeadSubmitted || o.session.LeadFormShown {
		o.mu.Unlock()
		return
	}
	o.session.LeadFormShown = true
	visible := true
	o.unlockAndPublish(events.Event{Type: events.TypeLeadForm, Visible: &visible})

	o.logger.Info("lead form shown")
}

// BeginLead claims the session's single lead submission. It must be followed by
// CompleteLead or AbortLead.
func (o *Orchestrator) BeginLead() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.closed:
		return ErrSessionClosed
	case o.session.LeadSubmitted:
		return ErrAlreadySubmitted
	case o.leadPending:
		return ErrLeadPending
	}
	o.leadPending = true
	return nil
}

// AbortLead releases a claim taken by BeginLead without capturing the lead.
func (o *Orchestrator) AbortLead() {
	o.mu.Lock()
	o.leadPending = false
	o.mu.Unlock()
}

// CompleteLead marks the lead as captured, hides the form and appends confirmation as
// a message from the active persona. The form is never shown again afterwards.
func (o *Orchestrator) CompleteLead(confirmation string) (chat.Message, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return chat.Message{}, ErrSessionClosed
	}
	if o.session.LeadSubmitted {
		o.mu.Unlock()
		return chat.Message{}, ErrAlreadySubmitted
	}
	o.leadPending = false
	o.session.LeadSubmitted = true
	o.session.LeadFormShown = false
	speaker := persona.Resolve(o.engine.Personas(), o.session.ActivePersonaID)
	msg := chat.PersonaMessage(speaker, confirmation, o.now())
	msg.Confirmation = true
	o.session.Messages = append(o.session.Messages, msg)
	hidden := false
	o.unlockAndPublish(
		events.Event{Type: events.TypeLeadForm, Visible: &hidden},
		events.Event{Type: events.TypeMessage, Message: &msg, PersonaID: speaker.ID},
	)
	return msg, nil
}

// DismissLeadForm hides a showing form without submitting. A later trigger may show it again.
func (o *Orchestrator) DismissLeadForm() {
	o.mu.Lock()
	if !o.session.LeadFormShown {
		o.mu.Unlock()
		return
	}
	o.session.LeadFormShown = false
	hidden := false
	o.unlockAndPublish(events.Event{Type: events.TypeLeadForm, Visible: &hidden})
}

// Notice publishes a transient user-visible notice. It never touches session state.
func (o *Orchestrator) Notice(text string) {
	o.pubMu.Lock()
	defer o.pubMu.Unlock()
	o.publish(events.Event{Type: events.TypeNotice, Notice: text})
}

// ActivePersona returns the persona currently speaking.
func (o *Orchestrator) ActivePersona() persona.Persona {
	o.mu.Lock()
	defer o.mu.Unlock()
	return persona.Resolve(o.engine.Personas(), o.session.ActivePersonaID)
}

// Snapshot returns a deep copy of the session.
func (o *Orchestrator) Snapshot() chat.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

// Close abandons the session: pending transitions are dropped and later calls fail.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.scheduler.Stop()
}

// unlockAndPublish releases mu and publishes evs before any later mutation can publish.
// Callers must not hold pubMu, and listeners must not call back into the orchestrator.
func (o *Orchestrator) unlockAndPublish(evs ...events.Event) {
	o.pubMu.Lock()
	o.mu.Unlock()
	defer o.pubMu.Unlock()
	for _, ev := range evs {
		o.publish(ev)
	}
}

func (o *Orchestrator) publish(ev events.Event) {
	ev.SessionID = o.session.ID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now()
	}
	o.listener.Publish(ev)
}
