package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/open-feature/featuremanager/core/pkg/logger"
	"github.com/open-feature/featuremanager/core/pkg/model"
	"github.com/open-feature/featuremanager/core/pkg/targeting"
)

const TargetingName = "Microsoft.Targeting"

type targetingParameters struct {
	Audience *Audience `json:"Audience"`
}

// Audience selects who a targeted flag is on for.
type Audience struct {
	Users                    []string       `json:"Users"`
	Groups                   []GroupRollout `json:"Groups"`
	DefaultRolloutPercentage float64        `json:"DefaultRolloutPercentage"`
	Exclusion                Exclusion      `json:"Exclusion"`
}

type GroupRollout struct {
	Name              string  `json:"Name"`
	RolloutPercentage float64 `json:"RolloutPercentage"`
}

type Exclusion struct {
	Users  []string `json:"Users"`
	Groups []string `json:"Groups"`
}

// Targeting enables a flag for an audience of users, groups and a stable rollout percentage.
type Targeting struct {
	logger     *logger.Logger
	ignoreCase bool
}

// NewTargeting builds the targeting filter. With ignoreCase, audience group names match
// context groups case-insensitively.
func NewTargeting(log *logger.Logger, ignoreCase bool) *Targeting {
	if log == nil {
		log = logger.NewNop()
	}
	return &Targeting{logger: log, ignoreCase: ignoreCase}
}

func (t *Targeting) Name() string {
	return TargetingName
}

func (t *Targeting) Evaluate(_ context.Context, ref model.FilterReference, fc Context) (bool, error) {
	if fc.User == "" && len(fc.Groups) == 0 {
		t.logger.Warn("targeting filter requires a user or groups", zap.String("flag", fc.FlagID))
		return false, nil
	}

	var params targetingParameters
	if len(ref.Parameters) > 0 {
		if err := json.Unmarshal(ref.Parameters, &params); err != nil {
			return false, fmt.Errorf("%w: feature flag %s: %v", model.ErrTargeting, fc.FlagID, err)
		}
	}
	if params.Audience == nil {
		return false, fmt.Errorf("%w: feature flag %s: Audience is required", model.ErrTargeting, fc.FlagID)
	}
	audience := params.Audience
	if err := audience.validate(); err != nil {
		return false, fmt.Errorf("%w: feature flag %s: %v", model.ErrTargeting, fc.FlagID, err)
	}

	if slices.Contains(audience.Exclusion.Users, fc.User) {
		return false, nil
	}
	for _, g := range audience.Exclusion.Groups {
		if slices.Contains(fc.Groups, g) {
			return false, nil
		}
	}

	if slices.Contains(audience.Users, fc.User) {
		return true, nil
	}

	for _, group := range audience.Groups {
		for _, contextGroup := range fc.Groups {
			name := group.Name
			if t.ignoreCase {
				name = strings.ToLower(name)
				contextGroup = strings.ToLower(contextGroup)
			}
			if name != contextGroup {
				continue
			}
			if targeting.IsTargeted(targeting.ContextID(fc.User, fc.FlagID, contextGroup), group.RolloutPercentage) {
				return true, nil
			}
		}
	}

	return targeting.IsTargeted(targeting.ContextID(fc.User, fc.FlagID), audience.DefaultRolloutPercentage), nil
}

func (a *Audience) validate() error {
	if a.DefaultRolloutPercentage < 0 || a.DefaultRolloutPercentage > 100 {
		return fmt.Errorf("DefaultRolloutPercentage needs to be between [0, 100]")
	}
	for _, g := range a.Groups {
		if g.RolloutPercentage < 0 || g.RolloutPercentage > 100 {
			return fmt.Errorf("RolloutPercentage of group %s needs to be between [0, 100]", g.Name)
		}
	}
	return nil
}
