package routing

import (
	"github.com/zhouzirui/studio-concierge/backend/internal/analysis/keywords"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
)

// Term weights.
const (
	SpecializationWeight = 3
	ExpertiseWeight      = 2
	RelatedWeight        = 1
)

// Decision is the outcome of routing one utterance.
type Decision struct {
	Persona persona.Persona
	Score   int
}

// Score returns the weighted keyword score of p for an already normalized utterance.
// The default persona always scores 0.
func Score(p persona.Persona, normalized string) int {
	if p.Default || normalized == "" {
		return 0
	}
	return SpecializationWeight*keywords.CountMatches(normalized, p.Specializations) +
		ExpertiseWeight*keywords.CountMatches(normalized, p.Expertise) +
		RelatedWeight*keywords.CountMatches(normalized, p.RelatedWords)
}

// Select returns the persona that should own the conversation for utterance.
func Select(personas []persona.Persona, utterance string) persona.Persona {
	return Route(personas, utterance).Persona
}

// Route scores every specialist against utterance. The running best starts as the
// default persona with score 0 and is only replaced by a strictly higher score.
// Zero matches and a shared top score both resolve to the default, regardless of
// list order.
func Route(personas []persona.Persona, utterance string) Decision {
	if len(personas) == 0 {
		return Decision{}
	}

	fallback := Decision{Persona: defaultOf(personas)}
	best := fallback
	tied := false
	text := keywords.Normalize(utterance)
	for _, p := range personas {
		if p.Default || p.ID == fallback.Persona.ID {
			continue
		}
		score := Score(p, text)
		switch {
		case score > best.Score:
			best = Decision{Persona: p, Score: score}
			tied = false
		case score > 0 && score == best.Score:
			tied = true
		}
	}
	if tied {
		return fallback
	}
	return best
}

func defaultOf(personas []persona.Persona) persona.Persona {
	for _, p := range personas {
		if p.Default {
			return p
		}
	}
	return personas[0]
}
