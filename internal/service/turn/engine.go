package turn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/compose"

	"github.com/zhouzirui/studio-concierge/backend/internal/analysis/intent"
	"github.com/zhouzirui/studio-concierge/backend/internal/analysis/keywords"
	"github.com/zhouzirui/studio-concierge/backend/internal/analysis/routing"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/reply"
)

// DefaultLeadTriggers are the "ready to proceed" keywords that may reveal the lead form.
var DefaultLeadTriggers = []string{"teklif", "fiyat", "başla", "devam", "quote", "price", "start", "continue"}

// DefaultLeadTurnThreshold is the first turn on which the lead form may appear.
const DefaultLeadTurnThreshold = 3

// Analysis is the per-turn decision computed before any visible transition runs.
type Analysis struct {
	Context     chat.Context
	Persona     persona.Persona
	Score       int
	Handoff     bool
	LeadFormDue bool
}

// EngineConfig tunes the lead gate.
type EngineConfig struct {
	LeadTurnThreshold int
	LeadTriggers      []string
}

// Engine holds the decision logic of a turn: context accumulation, persona routing,
// the lead gate and reply synthesis. It keeps no per-session state.
type Engine struct {
	personas persona.Store
	synth    *reply.Synthesizer
	cfg      EngineConfig
	analyzer compose.Runnable[*analysisState, *analysisState]
	logger   *slog.Logger
}

type analysisState struct {
	utterance  string
	normalized string
	session    chat.Session
	result     Analysis
}

// NewEngine compiles the analysis chain: accumulate → route → lead gate.
func NewEngine(ctx context.Context, personas persona.Store, synth *reply.Synthesizer, cfg EngineConfig, logger *slog.Logger) (*Engine, error) {
	if cfg.LeadTurnThreshold <= 0 {
		cfg.LeadTurnThreshold = DefaultLeadTurnThreshold
	}
	if len(cfg.LeadTriggers) == 0 {
		cfg.LeadTriggers = DefaultLeadTriggers
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		personas: personas,
		synth:    synth,
		cfg:      cfg,
		logger:   logger,
	}

	chain := compose.NewChain[*analysisState, *analysisState]()
	chain.
		AppendLambda(compose.InvokableLambda(e.accumulate), compose.WithNodeName("accumulate")).
		AppendLambda(compose.InvokableLambda(e.route), compose.WithNodeName("route")).
		AppendLambda(compose.InvokableLambda(e.leadGate), compose.WithNodeName("lead_gate"))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile turn analysis chain: %w", err)
	}
	e.analyzer = runnable
	return e, nil
}

// Personas returns the registry the engine routes over.
func (e *Engine) Personas() persona.Store {
	return e.personas
}

// Analyze runs the analysis chain for utterance against a snapshot of the session
// taken after the user message was recorded. It never fails: if the chain errors the
// steps run inline.
func (e *Engine) Analyze(ctx context.Context, session chat.Session, utterance string) Analysis {
	in := &analysisState{
		utterance:  utterance,
		normalized: keywords.Normalize(utterance),
		session:    session,
	}

	out, err := e.analyzer.Invoke(ctx, in)
	if err == nil && out != nil {
		return out.result
	}

	e.logger.Warn("turn analysis chain failed, running steps inline", "session_id", session.ID, "error", err)
	in.result = Analysis{}
	bg := context.WithoutCancel(ctx)
	in, _ = e.accumulate(bg, in)
	in, _ = e.route(bg, in)
	in, _ = e.leadGate(bg, in)
	return in.result
}

// Reply synthesizes the reply for utterance as spoken to p.
func (e *Engine) Reply(ctx context.Context, utterance string, p persona.Persona, convo chat.Context) string {
	return e.synth.Synthesize(ctx, utterance, p, convo)
}

// HandoffText is the transfer notice shown before switching to p.
func (e *Engine) HandoffText(p persona.Persona) string {
	return fmt.Sprintf("Sizi %s %s ile buluşturuyorum, bir saniye lütfen...", p.Title, p.Name)
}

func (e *Engine) accumulate(_ context.Context, st *analysisState) (*analysisState, error) {
	st.result.Context = intent.Update(st.session.Context, st.utterance)
	return st, nil
}

func (e *Engine) route(_ context.Context, st *analysisState) (*analysisState, error) {
	decision := routing.Route(e.personas.List(), st.utterance)
	if decision.Persona.ID == "" {
		decision.Persona = e.personas.Default()
	}

	st.result.Persona = decision.Persona
	st.result.Score = decision.Score
	st.result.Handoff = decision.Persona.ID != st.session.ActivePersonaID
	return st, nil
}

func (e *Engine) leadGate(_ context.Context, st *analysisState) (*analysisState, error) {
	s := st.session
	st.result.LeadFormDue = s.Turns >= e.cfg.LeadTurnThreshold &&
		!s.LeadSubmitted &&
		!s.LeadFormShown &&
		keywords.ContainsAny(st.normalized, e.cfg.LeadTriggers)
	return st, nil
}
