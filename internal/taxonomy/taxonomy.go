// Package taxonomy holds the closed set of gesture labels a classifier may return
// and renders the instruction text sent alongside every frame.
package taxonomy

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CollComm/werewolf-sign/internal/models"
)

//go:embed whgl.yaml
var defaultDocument []byte

// Gesture is one member of the taxonomy
type Gesture struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
}

// Taxonomy is a versioned gesture vocabulary
type Taxonomy struct {
	Version  string    `yaml:"version" json:"version"`
	Name     string    `yaml:"name" json:"name"`
	Preamble string    `yaml:"preamble" json:"preamble"`
	Notes    []string  `yaml:"notes" json:"notes,omitempty"`
	Heading  string    `yaml:"heading" json:"heading,omitempty"`
	Question string    `yaml:"question" json:"question"`
	Closing  string    `yaml:"closing" json:"closing,omitempty"`
	Gestures []Gesture `yaml:"gestures" json:"gestures"`

	index map[string]string
}

// Default returns the built-in Werewolf Hand Gesture Language taxonomy
func Default() *Taxonomy {
	t, err := Parse(defaultDocument, ".yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy is invalid: %v", err))
	}
	return t
}

// LoadFile reads a taxonomy from a YAML or JSON file
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file '%s': %w", path, err)
	}
	t, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("taxonomy file '%s': %w", path, err)
	}
	return t, nil
}

// Parse decodes a taxonomy document; ext selects JSON for ".json", YAML otherwise
func Parse(data []byte, ext string) (*Taxonomy, error) {
	var t Taxonomy
	var err error
	if strings.EqualFold(ext, ".json") {
		err = json.Unmarshal(data, &t)
	} else {
		err = yaml.Unmarshal(data, &t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode taxonomy: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the taxonomy and builds the label index
func (t *Taxonomy) Validate() error {
	if strings.TrimSpace(t.Version) == "" {
		return errors.New("taxonomy version is required")
	}
	if strings.TrimSpace(t.Question) == "" {
		return errors.New("taxonomy question is required")
	}
	if len(t.Gestures) == 0 {
		return errors.New("taxonomy has no gestures")
	}

	index := make(map[string]string, len(t.Gestures))
	for i, g := range t.Gestures {
		id := strings.TrimSpace(g.ID)
		if id == "" {
			return fmt.Errorf("gesture %d has an empty id", i)
		}
		if strings.TrimSpace(g.Description) == "" {
			return fmt.Errorf("gesture %q has an empty description", id)
		}
		key := strings.ToLower(id)
		if key == strings.ToLower(models.LabelUnknown) {
			return fmt.Errorf("gesture id %q is reserved", id)
		}
		if _, dup := index[key]; dup {
			return fmt.Errorf("duplicate gesture id %q", id)
		}
		index[key] = id
	}
	t.index = index
	return nil
}

// Labels returns the gesture ids in taxonomy order
func (t *Taxonomy) Labels() []string {
	labels := make([]string, len(t.Gestures))
	for i, g := range t.Gestures {
		labels[i] = g.ID
	}
	return labels
}

// Normalize maps a classifier response to its canonical label.
// ok is false when the response is not a member of the taxonomy.
func (t *Taxonomy) Normalize(raw string) (string, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, "\"'`*")
	cleaned = strings.TrimSuffix(cleaned, ".")
	cleaned = strings.TrimSpace(cleaned)

	if strings.EqualFold(cleaned, models.LabelUnknown) {
		return models.LabelUnknown, true
	}
	if id, ok := t.index[strings.ToLower(cleaned)]; ok {
		return id, true
	}
	return models.LabelUnknown, false
}

// SystemPrompt renders the instruction text sent with every classification request
func (t *Taxonomy) SystemPrompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(t.Preamble))
	b.WriteString("\nRespond ONLY with the number or keyword associated with the gesture.")
	fmt.Fprintf(&b, " If no gesture matches, respond with %q.", models.LabelUnknown)
	for _, note := range t.Notes {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(note))
	}
	heading := strings.TrimSpace(t.Heading)
	if heading == "" {
		heading = "Gestures:"
	}
	b.WriteString("\n\n")
	b.WriteString(heading)
	b.WriteString("\n")
	for _, g := range t.Gestures {
		fmt.Fprintf(&b, "%s: %s\n", g.ID, g.Description)
	}
	if t.Closing != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(t.Closing))
	}
	return b.String()
}
