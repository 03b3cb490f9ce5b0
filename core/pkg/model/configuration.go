package model

import (
	"encoding/json"
	"fmt"
)

// Document is the top-level configuration layout.
type Document struct {
	FeatureManagement *FeatureManagement `json:"feature_management" yaml:"feature_management"`
}

// FeatureManagement is one configuration snapshot. Loaders replace the whole value on refresh,
// so its address identifies the snapshot.
type FeatureManagement struct {
	FeatureFlags []json.RawMessage `json:"feature_flags"`
}

// Configuration is implemented by whatever owns the current snapshot.
type Configuration interface {
	FeatureManagement() *FeatureManagement
}

// StaticConfiguration serves a fixed snapshot.
type StaticConfiguration struct {
	Snapshot *FeatureManagement
}

func (s *StaticConfiguration) FeatureManagement() *FeatureManagement {
	return s.Snapshot
}

// ParseDocument decodes a JSON configuration document.
func ParseDocument(b []byte) (*FeatureManagement, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: unable to decode configuration: %v", ErrInvalidFlag, err)
	}
	if doc.FeatureManagement == nil {
		return &FeatureManagement{}, nil
	}
	return doc.FeatureManagement, nil
}

// Find returns the first raw flag whose id matches.
func (fm *FeatureManagement) Find(id string) (json.RawMessage, bool) {
	if fm == nil {
		return nil, false
	}
	for _, raw := range fm.FeatureFlags {
		if flagID, err := FlagID(raw); err == nil && flagID == id {
			return raw, true
		}
	}
	return nil, false
}

// IDs lists the ids of all well-formed flags in document order.
func (fm *FeatureManagement) IDs() []string {
	if fm == nil {
		return nil
	}
	ids := make([]string, 0, len(fm.FeatureFlags))
	for _, raw := range fm.FeatureFlags {
		if id, err := FlagID(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
