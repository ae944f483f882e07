package intent

import (
	"github.com/zhouzirui/studio-concierge/backend/internal/analysis/keywords"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
)

// Topics is the fixed topic vocabulary. Its order decides insertion order when one
// utterance mentions several topics.
var Topics = []string{"web", "mobil", "e-ticaret", "seo", "tasarım", "uygulama"}

type projectRule struct {
	project chat.ProjectType
	terms   []string
}

// checked in order, first match wins
var projectRules = []projectRule{
	{chat.ProjectEcommerce, []string{"e-ticaret", "eticaret", "e-commerce", "ecommerce", "online mağaza", "online satış"}},
	{chat.ProjectMobile, []string{"mobil", "uygulama", "ios", "android", "mobile", "app store", "mobile app"}},
	{chat.ProjectWeb, []string{"web", "site", "website", "landing"}},
}

var (
	budgetTriggers = []string{"bütçe", "butce", "fiyat", "ücret", "ucret", "maliyet", "para", "budget", "price", "cost"}
	budgetLimited  = []string{"sınırlı", "sinirli", "kısıtlı", "düşük", "dusuk", "ucuz", "ekonomik", "limited", "cheap", "tight"}
	budgetFlexible = []string{"esnek", "yüksek", "sorun değil", "önemli değil", "flexible", "no limit"}

	timelineUrgent   = []string{"acil", "hemen", "hızlı", "hizli", "en kısa", "bir an önce", "urgent", "asap"}
	timelineFlexible = []string{"acelem yok", "acele yok", "zamanım var", "zaman sorun değil", "no rush", "flexible deadline"}
)

// Update folds utterance into ctx and returns the new context. ctx is not modified.
// Dimensions without a signal in utterance keep their previous value.
func Update(ctx chat.Context, utterance string) chat.Context {
	next := ctx.Clone()
	text := keywords.Normalize(utterance)
	if text == "" {
		return next
	}

	for _, topic := range Topics {
		if keywords.ContainsAny(text, []string{topic}) && !next.HasTopic(topic) {
			next.MentionedTopics = append(next.MentionedTopics, topic)
		}
	}

	for _, rule := range projectRules {
		if keywords.ContainsAny(text, rule.terms) {
			next.ProjectType = rule.project
			break
		}
	}

	if keywords.ContainsAny(text, budgetTriggers) {
		switch {
		case keywords.ContainsAny(text, budgetLimited):
			next.Budget = chat.BudgetLimited
		case keywords.ContainsAny(text, budgetFlexible):
			next.Budget = chat.BudgetFlexible
		}
	}

	switch {
	case keywords.ContainsAny(text, timelineUrgent):
		next.Timeline = chat.TimelineUrgent
	case keywords.ContainsAny(text, timelineFlexible):
		next.Timeline = chat.TimelineFlexible
	}

	return next
}
