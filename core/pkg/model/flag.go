package model

import "encoding/json"

type RequirementType string

const (
	RequirementAny RequirementType = "Any"
	RequirementAll RequirementType = "All"
)

// StatusOverride lets a variant force the enabled state reported for a flag.
type StatusOverride string

const (
	StatusOverrideNone     StatusOverride = ""
	StatusOverrideEnabled  StatusOverride = "Enabled"
	StatusOverrideDisabled StatusOverride = "Disabled"
)

// FlagDefinition is the validated form of a single entry of feature_management.feature_flags.
// It is never mutated once parsed.
type FlagDefinition struct {
	ID         string
	Enabled    bool
	Conditions Conditions
	Allocation *Allocation
	Variants   []VariantReference
	Telemetry  Telemetry
}

type Conditions struct {
	RequirementType RequirementType
	ClientFilters   []FilterReference
}

// FilterReference names a filter and carries parameters only that filter interprets.
type FilterReference struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

type Allocation struct {
	DefaultWhenEnabled  string
	DefaultWhenDisabled string
	User                []UserAllocation
	Group               []GroupAllocation
	Percentile          []PercentileAllocation
	Seed                string
}

type UserAllocation struct {
	Variant string   `json:"variant"`
	Users   []string `json:"users"`
}

type GroupAllocation struct {
	Variant string   `json:"variant"`
	Groups  []string `json:"groups"`
}

// PercentileAllocation assigns Variant to the half-open band [From, To).
type PercentileAllocation struct {
	Variant string `json:"variant"`
	From    int    `json:"from"`
	To      int    `json:"to"`
}

type VariantReference struct {
	Name               string
	ConfigurationValue any
	StatusOverride     StatusOverride
}

type Telemetry struct {
	Enabled  bool
	Metadata Metadata
}

type Metadata = map[string]string

// HasVariants reports whether the flag serves variants at all.
func (f *FlagDefinition) HasVariants() bool {
	return len(f.Variants) > 0
}

// Variant looks up a variant reference by name.
func (f *FlagDefinition) Variant(name string) (VariantReference, bool) {
	if name == "" {
		return VariantReference{}, false
	}
	for _, v := range f.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return VariantReference{}, false
}
