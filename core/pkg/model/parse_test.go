package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const FullFlag = `{
  "id": "Alpha",
  "enabled": "TRUE",
  "conditions": {
    "requirement_type": "All",
    "client_filters": [
      {"name": "Microsoft.Targeting", "parameters": {"Audience": {"Users": ["Adam"]}}}
    ]
  },
  "variants": [
    {"name": "On", "configuration_value": {"color": "red"}},
    {"name": "Off", "configuration_value": false, "status_override": "Disabled"}
  ],
  "allocation": {
    "default_when_enabled": "On",
    "default_when_disabled": "Off",
    "percentile": [{"variant": "On", "from": 0, "to": 50}]
  },
  "telemetry": {"enabled": true, "metadata": {"etag": "abc"}}
}`

func TestParseFlag_Full_AllFieldsParsed(t *testing.T) {
	flag, err := ParseFlag(json.RawMessage(FullFlag))
	require.NoError(t, err)

	assert.Equal(t, "Alpha", flag.ID)
	assert.True(t, flag.Enabled)
	assert.Equal(t, RequirementAll, flag.Conditions.RequirementType)
	require.Len(t, flag.Conditions.ClientFilters, 1)
	assert.Equal(t, "Microsoft.Targeting", flag.Conditions.ClientFilters[0].Name)
	assert.JSONEq(t, `{"Audience": {"Users": ["Adam"]}}`, string(flag.Conditions.ClientFilters[0].Parameters))

	require.NotNil(t, flag.Allocation)
	assert.Equal(t, "On", flag.Allocation.DefaultWhenEnabled)
	assert.Equal(t, "Off", flag.Allocation.DefaultWhenDisabled)
	assert.Equal(t, "allocation\nAlpha", flag.Allocation.Seed)
	assert.Equal(t, []PercentileAllocation{{Variant: "On", From: 0, To: 50}}, flag.Allocation.Percentile)

	off, ok := flag.Variant("Off")
	require.True(t, ok)
	assert.Equal(t, StatusOverrideDisabled, off.StatusOverride)
	assert.Equal(t, false, off.ConfigurationValue)

	assert.True(t, flag.Telemetry.Enabled)
	assert.Equal(t, "abc", flag.Telemetry.Metadata["etag"])
}

func TestParseFlag_Minimal_Defaults(t *testing.T) {
	flag, err := ParseFlag(json.RawMessage(`{"id": "Beta"}`))
	require.NoError(t, err)

	assert.False(t, flag.Enabled)
	assert.Equal(t, RequirementAny, flag.Conditions.RequirementType)
	assert.Empty(t, flag.Conditions.ClientFilters)
	assert.Nil(t, flag.Allocation)
	assert.False(t, flag.HasVariants())
	assert.False(t, flag.Telemetry.Enabled)
	assert.NotNil(t, flag.Telemetry.Metadata)
}

func TestParseFlag_CustomSeed_Kept(t *testing.T) {
	flag, err := ParseFlag(json.RawMessage(`{"id": "Beta", "allocation": {"seed": "fixed"}}`))
	require.NoError(t, err)
	assert.Equal(t, "fixed", flag.Allocation.Seed)
}

func TestParseFlag_EnabledString_CaseInsensitive(t *testing.T) {
	flag, err := ParseFlag(json.RawMessage(`{"id": "Beta", "enabled": "fAlSe"}`))
	require.NoError(t, err)
	assert.False(t, flag.Enabled)
}

func TestParseFlag_Invalid_Error(t *testing.T) {
	tests := map[string]string{
		"missing id":           `{"enabled": true}`,
		"numeric id":           `{"id": 7}`,
		"empty id":             `{"id": ""}`,
		"not an object":        `[1, 2]`,
		"bad enabled string":   `{"id": "x", "enabled": "yes"}`,
		"bad enabled type":     `{"id": "x", "enabled": 1}`,
		"bad requirement type": `{"id": "x", "conditions": {"requirement_type": "all"}}`,
		"missing filter name":  `{"id": "x", "conditions": {"client_filters": [{"parameters": {}}]}}`,
		"unnamed variant":      `{"id": "x", "variants": [{"configuration_value": 1}]}`,
		"bad status override":  `{"id": "x", "variants": [{"name": "a", "status_override": "Maybe"}]}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFlag(json.RawMessage(raw))
			assert.ErrorIs(t, err, ErrInvalidFlag)
		})
	}
}

func TestParseFlag_Invalid_NamesFlag(t *testing.T) {
	_, err := ParseFlag(json.RawMessage(`{"id": "Gamma", "conditions": {"requirement_type": "Some"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gamma")
	assert.Contains(t, err.Error(), "requirement type")
}

func TestFeatureManagement_FindAndIDs(t *testing.T) {
	fm, err := ParseDocument([]byte(`{
	  "feature_management": {
	    "feature_flags": [
	      {"id": "one", "enabled": true},
	      {"id": 2},
	      {"id": "three"}
	    ]
	  }
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "three"}, fm.IDs())

	raw, ok := fm.Find("three")
	require.True(t, ok)
	assert.JSONEq(t, `{"id": "three"}`, string(raw))

	_, ok = fm.Find("missing")
	assert.False(t, ok)
}

func TestParseDocument_NoSection_Empty(t *testing.T) {
	fm, err := ParseDocument([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, fm.IDs())
}

func TestErrorCode_Mapping(t *testing.T) {
	assert.Equal(t, FlagNotFoundErrorCode, ErrorCode(ErrFlagNotFound))
	assert.Equal(t, ParseErrorCode, ErrorCode(ErrUnknownFilter))
	assert.Equal(t, ParseErrorCode, ErrorCode(ErrTargeting))
	assert.Equal(t, GeneralErrorCode, ErrorCode(assert.AnError))
}
