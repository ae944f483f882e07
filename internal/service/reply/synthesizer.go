package reply

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/studio-concierge/backend/internal/analysis/keywords"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
)

// Picker chooses an index in [0, n). *math/rand/v2.Rand satisfies it.
type Picker interface {
	IntN(n int) int
}

var (
	combineTerms    = []string{"hepsi", "birlikte", "entegre", "tümü", "tamamı", "all", "together", "combine"}
	priceTerms      = []string{"fiyat", "ücret", "ucret", "maliyet", "kaç para", "ne kadar", "price", "cost"}
	durationTerms   = []string{"süre", "ne zaman", "kaç gün", "kaç hafta", "teslim", "hızlı", "zaman", "how long", "deadline"}
	greetingTerms   = []string{"merhaba", "selam", "günaydın", "iyi günler", "iyi akşamlar", "hello", "hey"}
	contactTerms    = []string{"iletişim", "telefon", "e-posta", "eposta", "mail", "ulaş", "whatsapp", "contact"}
	thanksTerms     = []string{"teşekkür", "tesekkur", "sağol", "sağ ol", "eyvallah", "thanks", "thank you"}
	technologyTerms = []string{"teknoloji", "nasıl", "hangi dil", "altyapı", "framework", "technology", "how do", "how does"}
	portfolioTerms  = []string{"örnek", "referans", "portföy", "portfolyo", "examples", "portfolio"}
)

var projectPhrases = map[chat.ProjectType]string{
	chat.ProjectWeb:       "web siteniz",
	chat.ProjectMobile:    "mobil uygulamanız",
	chat.ProjectEcommerce: "e-ticaret siteniz",
}

const unknownProjectPhrase = "projeniz"

// Synthesizer turns an utterance into a reply by walking a fixed priority cascade
// and picking one template of the first matching family.
type Synthesizer struct {
	mu     sync.Mutex
	picker Picker
	bank   Bank
	logger *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithBank replaces the built-in reply bank. An invalid bank is ignored and the
// built-in one stays in place.
func WithBank(bank Bank) Option {
	return func(s *Synthesizer) {
		if err := bank.Validate(); err != nil {
			s.logger.Warn("reply bank rejected, keeping built-in bank", "error", err)
			return
		}
		s.bank = bank
	}
}

// WithLogger sets the logger used for template rendering failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) { s.logger = logger }
}

// New creates a Synthesizer drawing template choices from picker.
func New(picker Picker, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		picker: picker,
		bank:   DefaultBank(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classify returns the family the cascade selects. The order is significant: later
// rules are more generic and would mask the earlier ones. Generic keyword families
// also win over the persona-specific rule.
func (s *Synthesizer) Classify(utterance string, p persona.Persona, convo chat.Context) Family {
	text := keywords.Normalize(utterance)

	switch {
	case len(convo.MentionedTopics) > 1 && keywords.ContainsAny(text, combineTerms):
		return FamilyIntegration
	case convo.Budget == chat.BudgetLimited && keywords.ContainsAny(text, priceTerms):
		return FamilyBudget
	case convo.Timeline == chat.TimelineUrgent && keywords.ContainsAny(text, durationTerms):
		return FamilyUrgent
	case keywords.ContainsAny(text, greetingTerms):
		return FamilyGreeting
	case keywords.ContainsAny(text, priceTerms):
		return FamilyPricing
	case keywords.ContainsAny(text, durationTerms):
		return FamilyTimeline
	case keywords.ContainsAny(text, contactTerms):
		return FamilyContact
	case keywords.ContainsAny(text, thanksTerms):
		return FamilyThanks
	case keywords.ContainsAny(text, technologyTerms):
		return FamilyTechnology
	case keywords.ContainsAny(text, portfolioTerms):
		return FamilyPortfolio
	case !p.Default && len(s.bank.Personas[p.ID]) > 0:
		return FamilyPersona
	default:
		return FamilyFallback
	}
}

// Synthesize returns one reply for utterance spoken to p. It never fails: a family
// without templates falls back to the generic clarifying questions.
func (s *Synthesizer) Synthesize(ctx context.Context, utterance string, p persona.Persona, convo chat.Context) string {
	family := s.Classify(utterance, p, convo)
	templates := s.bank.Templates(family, p.ID)
	if len(templates) == 0 {
		family = FamilyFallback
		templates = s.bank.Fallback
	}
	if len(templates) == 0 {
		return ""
	}

	tpl := templates[s.pick(len(templates))]
	return s.render(ctx, tpl, variables(p, convo))
}

// Candidates returns every reply the family can produce for p and convo, rendered.
func (s *Synthesizer) Candidates(ctx context.Context, family Family, p persona.Persona, convo chat.Context) []string {
	templates := s.bank.Templates(family, p.ID)
	out := make([]string, 0, len(templates))
	vars := variables(p, convo)
	for _, tpl := range templates {
		out = append(out, s.render(ctx, tpl, vars))
	}
	return out
}

func (s *Synthesizer) pick(n int) int {
	if n <= 1 || s.picker == nil {
		return 0
	}
	s.mu.Lock()
	idx := s.picker.IntN(n)
	s.mu.Unlock()
	if idx < 0 || idx >= n {
		return 0
	}
	return idx
}

// render fills the FString placeholders through eino's chat template formatting.
func (s *Synthesizer) render(ctx context.Context, tpl string, vars map[string]any) string {
	msgs, err := prompt.FromMessages(schema.FString, schema.AssistantMessage(tpl, nil)).Format(ctx, vars)
	if err != nil || len(msgs) == 0 {
		s.logger.Warn("reply template render failed, using raw template", "error", err)
		return tpl
	}
	return msgs[0].Content
}

func variables(p persona.Persona, convo chat.Context) map[string]any {
	project, ok := projectPhrases[convo.ProjectType]
	if !ok {
		project = unknownProjectPhrase
	}
	return map[string]any{
		"persona": p.Name,
		"title":   p.Title,
		"project": project,
	}
}
