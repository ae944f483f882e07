package reply

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Family names one group of interchangeable reply templates.
type Family string

const (
	FamilyIntegration Family = "integration"
	FamilyBudget      Family = "budget"
	FamilyUrgent      Family = "urgent"
	FamilyGreeting    Family = "greeting"
	FamilyPricing     Family = "pricing"
	FamilyTimeline    Family = "timeline"
	FamilyContact     Family = "contact"
	FamilyThanks      Family = "thanks"
	FamilyTechnology  Family = "technology"
	FamilyPortfolio   Family = "portfolio"
	FamilyPersona     Family = "persona"
	FamilyFallback    Family = "fallback"
)

// Bank holds the template lists for every family.
type Bank struct {
	Integration []string            `yaml:"integration"`
	Budget      []string            `yaml:"budget"`
	Urgent      []string            `yaml:"urgent"`
	Greeting    []string            `yaml:"greeting"`
	Pricing     []string            `yaml:"pricing"`
	Timeline    []string            `yaml:"timeline"`
	Contact     []string            `yaml:"contact"`
	Thanks      []string            `yaml:"thanks"`
	Technology  []string            `yaml:"technology"`
	Portfolio   []string            `yaml:"portfolio"`
	Fallback    []string            `yaml:"fallback"`
	Personas    map[string][]string `yaml:"personas"`
}

//go:embed templates.yaml
var templatesYAML []byte

var defaultBank = mustParseBank(templatesYAML)

// DefaultBank returns the built-in reply bank.
func DefaultBank() Bank {
	return defaultBank
}

// ParseBank decodes a YAML reply bank. Every generic family must be non-empty and
// the portfolio family holds a single fixed template.
func ParseBank(raw []byte) (Bank, error) {
	var bank Bank
	if err := yaml.Unmarshal(raw, &bank); err != nil {
		return Bank{}, fmt.Errorf("decode reply bank: %w", err)
	}

	if err := bank.Validate(); err != nil {
		return Bank{}, err
	}
	return bank, nil
}

// Validate checks that every generic family has templates and portfolio has exactly one.
func (b Bank) Validate() error {
	for family, templates := range b.generic() {
		if len(templates) == 0 {
			return fmt.Errorf("reply family %q is empty", family)
		}
	}
	if len(b.Portfolio) != 1 {
		return fmt.Errorf("portfolio family needs exactly one template, got %d", len(b.Portfolio))
	}
	return nil
}

// Templates returns the template list for family. Persona-specific templates are
// looked up with personaID; other families ignore it.
func (b Bank) Templates(family Family, personaID string) []string {
	if family == FamilyPersona {
		return b.Personas[personaID]
	}
	return b.generic()[family]
}

func (b Bank) generic() map[Family][]string {
	return map[Family][]string{
		FamilyIntegration: b.Integration,
		FamilyBudget:      b.Budget,
		FamilyUrgent:      b.Urgent,
		FamilyGreeting:    b.Greeting,
		FamilyPricing:     b.Pricing,
		FamilyTimeline:    b.Timeline,
		FamilyContact:     b.Contact,
		FamilyThanks:      b.Thanks,
		FamilyTechnology:  b.Technology,
		FamilyPortfolio:   b.Portfolio,
		FamilyFallback:    b.Fallback,
	}
}

func mustParseBank(raw []byte) Bank {
	bank, err := ParseBank(raw)
	if err != nil {
		panic(fmt.Sprintf("reply: built-in bank is invalid: %v", err))
	}
	return bank
}
