package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

const JSONLogicName = "JsonLogic"

type jsonLogicParameters struct {
	Rule json.RawMessage `json:"Rule"`
}

// JSONLogic evaluates parameters.Rule against {"flag", "user", "groups"} and enables the flag
// when the result is truthy.
type JSONLogic struct{}

func NewJSONLogic() *JSONLogic {
	return &JSONLogic{}
}

func (j *JSONLogic) Name() string {
	return JSONLogicName
}

func (j *JSONLogic) Evaluate(_ context.Context, ref model.FilterReference, fc Context) (bool, error) {
	var params jsonLogicParameters
	if len(ref.Parameters) > 0 {
		if err := json.Unmarshal(ref.Parameters, &params); err != nil {
			return false, fmt.Errorf("%w: feature flag %s: json logic parameters: %v", model.ErrInvalidFlag, fc.FlagID, err)
		}
	}
	if len(params.Rule) == 0 {
		return false, fmt.Errorf("%w: feature flag %s: json logic filter requires a Rule", model.ErrInvalidFlag, fc.FlagID)
	}

	groups := fc.Groups
	if groups == nil {
		groups = []string{}
	}
	data, err := json.Marshal(map[string]any{
		"flag":   fc.FlagID,
		"user":   fc.User,
		"groups": groups,
	})
	if err != nil {
		return false, fmt.Errorf("unable to marshal json logic data: %w", err)
	}

	var result bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(params.Rule), bytes.NewReader(data), &result); err != nil {
		return false, fmt.Errorf("%w: feature flag %s: json logic rule: %v", model.ErrInvalidFlag, fc.FlagID, err)
	}

	var value any
	if err := json.Unmarshal(result.Bytes(), &value); err != nil {
		return false, fmt.Errorf("unable to decode json logic result: %w", err)
	}
	return truthy(value), nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
