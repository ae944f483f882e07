package turn

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/events"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/reply"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newTestEngine(t *testing.T) (*Engine, *reply.Synthesizer) {
	t.Helper()
	synth := reply.New(rand.New(rand.NewPCG(1, 2)))
	engine, err := NewEngine(context.Background(), persona.NewMemoryStore(persona.Seed()), synth, EngineConfig{}, nil)
	require.NoError(t, err)
	return engine, synth
}

func newManual(t *testing.T) (*Orchestrator, *ManualScheduler, *recorder) {
	t.Helper()
	engine, _ := newTestEngine(t)
	sched := NewManualScheduler()
	rec := &recorder{}
	o := NewOrchestrator("s1", engine, WithScheduler(sched), WithListener(rec))
	return o, sched, rec
}

func lastMessage(s chat.Session) chat.Message {
	return s.Messages[len(s.Messages)-1]
}

func TestNewOrchestratorGreets(t *testing.T) {
	o, _, _ := newManual(t)
	snap := o.Snapshot()

	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "general", snap.ActivePersonaID)
	assert.Equal(t, "general", snap.Messages[0].PersonaID)
	assert.NotEmpty(t, snap.Messages[0].Text)
	assert.Equal(t, chat.StateIdle, snap.State)
	assert.Zero(t, snap.Turns)
}

func TestSendRejectsBlankAndConcurrentTurns(t *testing.T) {
	ctx := context.Background()
	o, sched, _ := newManual(t)

	_, err := o.Send(ctx, "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = o.Send(ctx, "merhaba")
	require.NoError(t, err)
	assert.Equal(t, chat.StateAwaitingReply, o.Snapshot().State)

	_, err = o.Send(ctx, "ikinci mesaj")
	require.ErrorIs(t, err, ErrTurnInProgress)
	assert.Equal(t, 1, o.Snapshot().Turns)

	sched.Advance(DefaultDelays.Typing)
	assert.Equal(t, chat.StateIdle, o.Snapshot().State)

	_, err = o.Send(ctx, "ikinci mesaj")
	require.NoError(t, err)
	assert.Equal(t, 2, o.Snapshot().Turns)
}

func TestSendWithoutHandoffShowsTypingThenReply(t *testing.T) {
	ctx := context.Background()
	o, sched, rec := newManual(t)

	res, err := o.Send(ctx, "merhaba")
	require.NoError(t, err)
	assert.False(t, res.Handoff)
	assert.Empty(t, res.Messages, "reply is still pending")

	snap := o.Snapshot()
	placeholder := lastMessage(snap)
	require.True(t, placeholder.TypingPlaceholder)
	assert.Equal(t, "general", placeholder.PersonaID)

	sched.Advance(DefaultDelays.Typing - time.Millisecond)
	assert.True(t, lastMessage(o.Snapshot()).TypingPlaceholder)

	sched.Advance(time.Millisecond)
	snap = o.Snapshot()
	got := lastMessage(snap)
	assert.False(t, got.TypingPlaceholder)
	assert.Contains(t, got.Text, "Deniz")
	require.Len(t, snap.Messages, 3, "greeting, user, reply")

	assert.Equal(t, []events.Type{
		events.TypeMessage, events.TypeState, events.TypeTyping, events.TypeMessageReplaced, events.TypeState,
	}, rec.types())
}

// gatedRecorder holds the first reply delivery inside Publish until released.
type gatedRecorder struct {
	recorder
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRecorder) Publish(ev events.Event) {
	if ev.Type == events.TypeMessageReplaced {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	g.recorder.Publish(ev)
}

func TestEventsFollowSessionOrderAcrossTurns(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	sched := NewManualScheduler()
	rec := &gatedRecorder{entered: make(chan struct{}), release: make(chan struct{})}
	o := NewOrchestrator("s1", engine, WithScheduler(sched), WithListener(rec))

	_, err := o.Send(ctx, "merhaba")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sched.Advance(DefaultDelays.Typing)
	}()
	<-rec.entered

	go func() {
		defer wg.Done()
		_, err := o.Send(ctx, "ikinci mesaj")
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)
	close(rec.release)
	wg.Wait()

	assert.Equal(t, []events.Type{
		events.TypeMessage, events.TypeState, events.TypeTyping,
		events.TypeMessageReplaced, events.TypeState,
		events.TypeMessage, events.TypeState, events.TypeTyping,
	}, rec.types())
}

func TestBeginLeadClaimsSingleSubmission(t *testing.T) {
	o, _, _ := newManual(t)

	require.NoError(t, o.BeginLead())
	require.ErrorIs(t, o.BeginLead(), ErrLeadPending)

	o.AbortLead()
	require.NoError(t, o.BeginLead())

	_, err := o.CompleteLead("ok")
	require.NoError(t, err)
	require.ErrorIs(t, o.BeginLead(), ErrAlreadySubmitted)
}

func TestBeginLeadOnClosedSession(t *testing.T) {
	o, _, _ := newManual(t)
	o.Close()

	require.ErrorIs(t, o.BeginLead(), ErrSessionClosed)
}

func TestSendHandoffSwitchesPersonaBeforeReply(t *testing.T) {
	ctx := context.Background()
	o, sched, rec := newManual(t)

	res, err := o.Send(ctx, "mobil uygulama fiyatı nedir")
	require.NoError(t, err)
	assert.True(t, res.Handoff)
	assert.Equal(t, "mobile-dev", res.Persona.ID)
	assert.Equal(t, "general", o.Snapshot().ActivePersonaID, "switch waits for the handoff delay")

	sched.Advance(DefaultDelays.Handoff)
	snap := o.Snapshot()
	assert.Equal(t, "mobile-dev", snap.ActivePersonaID)
	notice := snap.Messages[len(snap.Messages)-2]
	assert.True(t, notice.HandoffNotice)
	assert.Empty(t, notice.PersonaID)
	assert.Contains(t, notice.Text, "Elif")
	assert.True(t, lastMessage(snap).TypingPlaceholder)
	assert.Equal(t, "mobile-dev", lastMessage(snap).PersonaID)

	sched.Advance(DefaultDelays.Typing)
	got := lastMessage(o.Snapshot())
	assert.Equal(t, "mobile-dev", got.PersonaID)
	assert.Contains(t, got.Text, "mobil uygulama")

	assert.Equal(t, []events.Type{
		events.TypeMessage, events.TypeState, events.TypeHandoff, events.TypeTyping, events.TypeMessageReplaced, events.TypeState,
	}, rec.types())
}

func TestLeadFormGate(t *testing.T) {
	ctx := context.Background()
	o, sched, rec := newManual(t)

	turn := func(text string) TurnResult {
		t.Helper()
		res, err := o.Send(ctx, text)
		require.NoError(t, err)
		sched.Advance(DefaultDelays.Handoff + DefaultDelays.Typing)
		return res
	}

	assert.False(t, turn("fiyat nedir").LeadFormScheduled, "turn 1")
	assert.False(t, turn("teklif alabilir miyim").LeadFormScheduled, "turn 2")
	assert.False(t, turn("harika").LeadFormScheduled, "turn 3 without trigger")

	res := turn("teklif almak istiyorum")
	require.True(t, res.LeadFormScheduled)
	assert.False(t, o.Snapshot().LeadFormShown, "form waits for its delay")

	rec.reset()
	sched.Advance(DefaultDelays.LeadForm)
	require.True(t, o.Snapshot().LeadFormShown)
	assert.Equal(t, []events.Type{events.TypeLeadForm}, rec.types())

	assert.False(t, turn("devam edelim").LeadFormScheduled, "form already showing")

	msg, err := o.CompleteLead("Teşekkürler, en kısa sürede dönüş yapacağız.")
	require.NoError(t, err)
	assert.True(t, msg.Confirmation)
	snap := o.Snapshot()
	assert.True(t, snap.LeadSubmitted)
	assert.False(t, snap.LeadFormShown)

	_, err = o.CompleteLead("tekrar")
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	assert.False(t, turn("fiyat teklifi ve devam").LeadFormScheduled, "never after submission")
	sched.Advance(time.Minute)
	assert.False(t, o.Snapshot().LeadFormShown)
}

func TestLeadFormNotShownWhenSubmittedBeforeReveal(t *testing.T) {
	ctx := context.Background()
	o, sched, _ := newManual(t)

	for _, text := range []string{"selam", "web sitesi", "fiyat nedir"} {
		_, err := o.Send(ctx, text)
		require.NoError(t, err)
		sched.Advance(DefaultDelays.Handoff + DefaultDelays.Typing)
	}
	require.Equal(t, 1, sched.Pending(), "lead form reveal pending")

	_, err := o.CompleteLead("ok")
	require.NoError(t, err)

	sched.Advance(DefaultDelays.LeadForm)
	assert.False(t, o.Snapshot().LeadFormShown)
}

func TestDismissLeadForm(t *testing.T) {
	ctx := context.Background()
	o, sched, _ := newManual(t)

	for _, text := range []string{"selam", "nasılsınız", "teklif"} {
		_, err := o.Send(ctx, text)
		require.NoError(t, err)
		sched.Advance(time.Minute)
	}
	require.True(t, o.Snapshot().LeadFormShown)

	o.DismissLeadForm()
	assert.False(t, o.Snapshot().LeadFormShown)

	res, err := o.Send(ctx, "devam")
	require.NoError(t, err)
	assert.True(t, res.LeadFormScheduled, "dismissed form may be triggered again")
}

func TestCloseAbandonsPendingTransitions(t *testing.T) {
	ctx := context.Background()
	o, sched, _ := newManual(t)

	_, err := o.Send(ctx, "e-ticaret sitesi istiyorum")
	require.NoError(t, err)
	before := o.Snapshot()

	o.Close()
	o.Close()
	sched.Advance(time.Minute)

	assert.Equal(t, before.Messages, o.Snapshot().Messages)
	_, err = o.Send(ctx, "merhaba")
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSendAccumulatesContext(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	o := NewOrchestrator("s1", engine, WithScheduler(ImmediateScheduler{}))

	_, err := o.Send(ctx, "bütçem sınırlı")
	require.NoError(t, err)
	_, err = o.Send(ctx, "e-ticaret sitesi istiyorum")
	require.NoError(t, err)

	convo := o.Snapshot().Context
	assert.Equal(t, chat.BudgetLimited, convo.Budget)
	assert.Equal(t, chat.ProjectEcommerce, convo.ProjectType)
	assert.Equal(t, []string{"e-ticaret"}, convo.MentionedTopics)
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	engine, synth := newTestEngine(t)
	o := NewOrchestrator("s1", engine, WithScheduler(ImmediateScheduler{}))

	general := engine.Personas().Default()
	mobile, ok := engine.Personas().FindByID("mobile-dev")
	require.True(t, ok)

	// turn 1: the default persona greets
	res, err := o.Send(ctx, "merhaba")
	require.NoError(t, err)
	assert.False(t, res.Handoff)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, general.ID, res.Messages[0].PersonaID)
	assert.Contains(t, synth.Candidates(ctx, reply.FamilyGreeting, general, o.Snapshot().Context), res.Messages[0].Text)

	// turn 2: handoff to the mobile specialist, then a pricing reply about mobile
	res, err = o.Send(ctx, "mobil uygulama fiyatı nedir")
	require.NoError(t, err)
	assert.True(t, res.Handoff)
	require.Len(t, res.Messages, 2)
	assert.True(t, res.Messages[0].HandoffNotice)
	assert.Equal(t, mobile.ID, res.Messages[1].PersonaID)
	pricing := synth.Candidates(ctx, reply.FamilyPricing, mobile, o.Snapshot().Context)
	assert.Contains(t, pricing, res.Messages[1].Text)
	assert.Contains(t, res.Messages[1].Text, "mobil uygulama")

	// turn 3: same persona, no new notice
	res, err = o.Send(ctx, "mobil uygulama fiyatı nedir")
	require.NoError(t, err)
	assert.False(t, res.Handoff)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, pricing, res.Messages[0].Text)

	// turn 4: limited budget selects the budget-friendly family
	res, err = o.Send(ctx, "bütçem sınırlı, fiyat nedir")
	require.NoError(t, err)
	convo := o.Snapshot().Context
	assert.Equal(t, chat.BudgetLimited, convo.Budget)
	replyMsg := res.Messages[len(res.Messages)-1]
	assert.Contains(t, synth.Candidates(ctx, reply.FamilyBudget, res.Persona, convo), replyMsg.Text)

	snap := o.Snapshot()
	assert.Equal(t, 4, snap.Turns)
	assert.Equal(t, chat.StateIdle, snap.State)
	notices := 0
	for _, msg := range snap.Messages {
		assert.False(t, msg.TypingPlaceholder)
		if msg.HandoffNotice {
			notices++
		}
	}
	assert.Equal(t, 2, notices, "to mobile on turn 2, back to the generalist on turn 4")
}
