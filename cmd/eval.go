package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/open-feature/featuremanager/core/pkg/eval"
	"github.com/open-feature/featuremanager/core/pkg/filter"
	"github.com/open-feature/featuremanager/core/pkg/model"
	"github.com/open-feature/featuremanager/pkg/provider"
)

const (
	userFlagName  = "user"
	groupFlagName = "group"
)

var evalCmd = &cobra.Command{
	Use:   "eval <flag>",
	Short: "Evaluate one flag and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := coreLogger()
		if err != nil {
			return err
		}

		providerImpl, err := findProvider(
			viper.GetString(syncProviderFlagName),
			viper.GetString(uriFlagName),
			provider.DefaultPollSchedule,
			nil,
		)
		if err != nil {
			return err
		}
		if err := providerImpl.Initialize(); err != nil {
			return err
		}

		groups, err := cmd.Flags().GetStringSlice(groupFlagName)
		if err != nil {
			return err
		}
		tc := &model.TargetingContext{UserID: viper.GetString(userFlagName), Groups: groups}

		evaluator := eval.NewFeatureManager(providerImpl,
			eval.WithLogger(l),
			eval.WithIgnoreCase(viper.GetBool(ignoreCaseFlagName)),
			eval.WithFilters(filter.NewJSONLogic()),
		)
		event, err := evaluator.Evaluate(cmd.Context(), args[0], tc)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(event, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	evalCmd.Flags().StringP(syncProviderFlagName, "y", fileSyncProvider, "Set a sync provider, file or http")
	evalCmd.Flags().StringP(uriFlagName, "f", "", "Set a sync provider uri to read data from, a filepath or url")
	evalCmd.Flags().StringP(userFlagName, "u", "", "Targeting user id")
	evalCmd.Flags().StringSliceP(groupFlagName, "g", nil, "Targeting groups")
	rootCmd.AddCommand(evalCmd)
}
