package provider

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

//go:embed schema/feature-management.json
var schema string

var schemaLoader = gojsonschema.NewStringLoader(schema)

var ErrInvalidDocument = errors.New("invalid feature management document")

// parse validates raw against the feature management schema and decodes it. YAML is
// converted to JSON first.
func parse(raw []byte, yamlFormat bool) (*model.FeatureManagement, error) {
	if yamlFormat {
		var doc map[string]any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		raw = converted
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	return model.ParseDocument(raw)
}

func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// snapshot is the replace-on-refresh holder shared by the providers. Each store hands out
// a fresh pointer so the evaluator's cache sees the change.
type snapshot struct {
	current  atomic.Pointer[model.FeatureManagement]
	onChange func()
}

func (s *snapshot) FeatureManagement() *model.FeatureManagement {
	return s.current.Load()
}

func (s *snapshot) store(fm *model.FeatureManagement) {
	s.current.Store(fm)
	if s.onChange != nil {
		s.onChange()
	}
}
