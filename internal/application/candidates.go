package application

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tourney/internal/domain"
)

// candidateEntry accepts either a bare string or a {text, rating} mapping.
type candidateEntry struct {
	Text   string `yaml:"text"`
	Rating int    `yaml:"rating"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *candidateEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.Text)
	}
	type plain candidateEntry
	return node.Decode((*plain)(e))
}

// candidateFile is the document form: a top-level candidates key.
type candidateFile struct {
	Candidates []candidateEntry `yaml:"candidates"`
}

// LoadCandidates reads a candidate list from a YAML or JSON file.
func LoadCandidates(path string) ([]domain.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}
	return ParseCandidates(data)
}

// ParseCandidates decodes a candidate list. The document is either a
// sequence or a mapping with a candidates key; each entry is a string or a
// mapping with text and an optional starting rating.
func ParseCandidates(data []byte) ([]domain.Candidate, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse candidates: %w", err)
	}
	if root.Kind == 0 {
		return []domain.Candidate{}, nil
	}

	var entries []candidateEntry
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&entries); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
	case yaml.MappingNode:
		var f candidateFile
		if err := doc.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
		entries = f.Candidates
	default:
		return nil, fmt.Errorf("candidates must be a list, got %s at line %d", nodeKind(doc), doc.Line)
	}

	verr := domain.NewValidationError("Candidates")
	out := make([]domain.Candidate, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			verr.AddErrorf("candidate %d: text is empty", i)
			continue
		}
		if e.Rating < 0 {
			verr.AddErrorf("candidate %d: rating must not be negative, got %d", i, e.Rating)
			continue
		}
		out = append(out, domain.NewRatedCandidate(e.Text, e.Rating))
	}
	if verr.HasErrors() {
		return nil, verr
	}
	return out, nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	}
	return "document"
}
