package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type rawFlag struct {
	Enabled    json.RawMessage `json:"enabled"`
	Conditions *rawConditions  `json:"conditions"`
	Allocation *rawAllocation  `json:"allocation"`
	Variants   []rawVariant    `json:"variants"`
	Telemetry  *rawTelemetry   `json:"telemetry"`
}

type rawConditions struct {
	RequirementType *string           `json:"requirement_type"`
	ClientFilters   []FilterReference `json:"client_filters"`
}

type rawAllocation struct {
	DefaultWhenEnabled  string                 `json:"default_when_enabled"`
	DefaultWhenDisabled string                 `json:"default_when_disabled"`
	User                []UserAllocation       `json:"user"`
	Group               []GroupAllocation      `json:"group"`
	Percentile          []PercentileAllocation `json:"percentile"`
	Seed                *string                `json:"seed"`
}

type rawVariant struct {
	Name               string `json:"name"`
	ConfigurationValue any    `json:"configuration_value"`
	StatusOverride     string `json:"status_override"`
}

type rawTelemetry struct {
	Enabled  bool     `json:"enabled"`
	Metadata Metadata `json:"metadata"`
}

// FlagID extracts the id of a raw flag without validating the rest of it.
func FlagID(raw json.RawMessage) (string, error) {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("%w: feature flag must be an object: %v", ErrInvalidFlag, err)
	}
	var id string
	if len(head.ID) == 0 || json.Unmarshal(head.ID, &id) != nil {
		return "", fmt.Errorf("%w: feature flag id field must be a string", ErrInvalidFlag)
	}
	if id == "" {
		return "", fmt.Errorf("%w: feature flag id field must not be empty", ErrInvalidFlag)
	}
	return id, nil
}

// ParseFlag converts one raw feature flag entry into a FlagDefinition, applying defaults
// and rejecting invalid shapes.
func ParseFlag(raw json.RawMessage) (*FlagDefinition, error) {
	id, err := FlagID(raw)
	if err != nil {
		return nil, err
	}

	var rf rawFlag
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("%w: feature flag %s: %v", ErrInvalidFlag, id, err)
	}

	enabled, err := parseEnabled(rf.Enabled)
	if err != nil {
		return nil, fmt.Errorf("%w: feature flag %s: %v", ErrInvalidFlag, id, err)
	}

	conditions, err := parseConditions(id, rf.Conditions)
	if err != nil {
		return nil, err
	}

	variants := make([]VariantReference, 0, len(rf.Variants))
	for _, v := range rf.Variants {
		ref, err := parseVariant(id, v)
		if err != nil {
			return nil, err
		}
		variants = append(variants, ref)
	}

	flag := &FlagDefinition{
		ID:         id,
		Enabled:    enabled,
		Conditions: conditions,
		Variants:   variants,
	}

	if rf.Allocation != nil {
		flag.Allocation = parseAllocation(id, rf.Allocation)
	}
	if rf.Telemetry != nil {
		flag.Telemetry = Telemetry{Enabled: rf.Telemetry.Enabled, Metadata: rf.Telemetry.Metadata}
	}
	if flag.Telemetry.Metadata == nil {
		flag.Telemetry.Metadata = Metadata{}
	}

	return flag, nil
}

func parseEnabled(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(s) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("enabled must be a boolean, got %s", string(raw))
}

func parseConditions(id string, rc *rawConditions) (Conditions, error) {
	conditions := Conditions{RequirementType: RequirementAny}
	if rc == nil {
		return conditions, nil
	}
	if rc.RequirementType != nil {
		switch RequirementType(*rc.RequirementType) {
		case RequirementAll, RequirementAny:
			conditions.RequirementType = RequirementType(*rc.RequirementType)
		default:
			return conditions, fmt.Errorf("%w: feature flag %s has invalid requirement type %q",
				ErrInvalidFlag, id, *rc.RequirementType)
		}
	}
	for i, f := range rc.ClientFilters {
		if f.Name == "" {
			return conditions, fmt.Errorf("%w: feature flag %s is missing filter name at client_filters[%d]",
				ErrInvalidFlag, id, i)
		}
	}
	conditions.ClientFilters = rc.ClientFilters
	return conditions, nil
}

func parseAllocation(id string, ra *rawAllocation) *Allocation {
	seed := "allocation\n" + id
	if ra.Seed != nil {
		seed = *ra.Seed
	}
	return &Allocation{
		DefaultWhenEnabled:  ra.DefaultWhenEnabled,
		DefaultWhenDisabled: ra.DefaultWhenDisabled,
		User:                ra.User,
		Group:               ra.Group,
		Percentile:          ra.Percentile,
		Seed:                seed,
	}
}

func parseVariant(id string, rv rawVariant) (VariantReference, error) {
	if rv.Name == "" {
		return VariantReference{}, fmt.Errorf("%w: feature flag %s has a variant without a name", ErrInvalidFlag, id)
	}
	ref := VariantReference{Name: rv.Name, ConfigurationValue: rv.ConfigurationValue}
	switch rv.StatusOverride {
	case "", "None":
		ref.StatusOverride = StatusOverrideNone
	case string(StatusOverrideEnabled), string(StatusOverrideDisabled):
		ref.StatusOverride = StatusOverride(rv.StatusOverride)
	default:
		return VariantReference{}, fmt.Errorf("%w: feature flag %s variant %s has invalid status_override %q",
			ErrInvalidFlag, id, rv.Name, rv.StatusOverride)
	}
	return ref, nil
}
