package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona captures a specialist identity the widget can present itself as.
type Persona struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Title           string   `json:"title" yaml:"title"`
	AvatarRef       string   `json:"avatarRef" yaml:"avatar"`
	Greeting        string   `json:"greeting" yaml:"greeting"`
	Default         bool     `json:"default,omitempty" yaml:"default"`
	Specializations []string `json:"specializations,omitempty" yaml:"specializations"`
	Expertise       []string `json:"expertise,omitempty" yaml:"expertise"`
	RelatedWords    []string `json:"-" yaml:"related"`
}

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Personas []Persona `yaml:"personas"`
}

var seed = mustParseCatalog(catalogYAML)

// Seed returns the built-in persona catalog. The slice is a copy; callers may not
// change the shared catalog through it.
func Seed() []Persona {
	return clonePersonas(seed)
}

// LoadCatalog reads a persona catalog from a YAML file, replacing the built-in one.
func LoadCatalog(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a YAML persona catalog.
func ParseCatalog(raw []byte) ([]Persona, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode persona catalog: %w", err)
	}
	if err := validate(file.Personas); err != nil {
		return nil, err
	}
	return normalize(file.Personas), nil
}

// ApplyGreetingOverrides returns a copy of items with greetings replaced by the
// non-empty overrides keyed by persona id. Unknown ids are ignored.
func ApplyGreetingOverrides(items []Persona, overrides map[string]string) []Persona {
	out := clonePersonas(items)
	for i := range out {
		if greeting := strings.TrimSpace(overrides[out[i].ID]); greeting != "" {
			out[i].Greeting = greeting
		}
	}
	return out
}

func mustParseCatalog(raw []byte) []Persona {
	items, err := ParseCatalog(raw)
	if err != nil {
		panic(fmt.Sprintf("persona: built-in catalog is invalid: %v", err))
	}
	return items
}

func validate(items []Persona) error {
	if len(items) == 0 {
		return fmt.Errorf("persona catalog is empty")
	}

	seen := make(map[string]struct{}, len(items))
	defaults := 0
	for _, p := range items {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("persona %q has no id", p.Name)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate persona id %q", id)
		}
		seen[id] = struct{}{}

		if p.Default {
			defaults++
			continue
		}
		if len(p.Specializations) == 0 || len(p.Expertise) == 0 {
			return fmt.Errorf("specialist persona %q needs specialization and expertise terms", id)
		}
	}
	if defaults != 1 {
		return fmt.Errorf("persona catalog needs exactly one default persona, found %d", defaults)
	}
	return nil
}

// normalize lower-cases match terms once so scoring never has to.
func normalize(items []Persona) []Persona {
	out := clonePersonas(items)
	for i := range out {
		out[i].ID = strings.TrimSpace(out[i].ID)
		out[i].Specializations = lowerAll(out[i].Specializations)
		out[i].Expertise = lowerAll(out[i].Expertise)
		out[i].RelatedWords = lowerAll(out[i].RelatedWords)
	}
	return out
}

func lowerAll(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			out = append(out, strings.ToLower(term))
		}
	}
	return out
}

func clonePersonas(items []Persona) []Persona {
	if items == nil {
		return nil
	}
	out := make([]Persona, len(items))
	for i, p := range items {
		p.Specializations = append([]string(nil), p.Specializations...)
		p.Expertise = append([]string(nil), p.Expertise...)
		p.RelatedWords = append([]string(nil), p.RelatedWords...)
		out[i] = p
	}
	return out
}
