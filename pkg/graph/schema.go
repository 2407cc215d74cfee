package graph

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/hrflow/hrflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed graph.schema.json
var documentSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(documentSchema)

// ValidateDocument checks a raw graph document against the graph JSON schema.
func ValidateDocument(raw []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(problems, "; "))
	}

	return nil
}

// Decode validates raw against the document schema and decodes it into a graph.
// The structural invariants still need Validate.
func Decode(raw []byte) (*models.Graph, error) {
	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}

	g := &models.Graph{}
	if err := g.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}

	return g, nil
}
