package cmd

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/dimiro1/banner"
	"github.com/mattn/go-colorable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/open-feature/featuremanager/core/pkg/eval"
	"github.com/open-feature/featuremanager/core/pkg/filter"
	"github.com/open-feature/featuremanager/pkg/provider"
	"github.com/open-feature/featuremanager/pkg/runtime"
	"github.com/open-feature/featuremanager/pkg/service"
	"github.com/open-feature/featuremanager/pkg/sync"
	"github.com/open-feature/featuremanager/pkg/telemetry"
)

const (
	portFlagName         = "port"
	syncProviderFlagName = "sync-provider"
	uriFlagName          = "uri"
	pollScheduleFlagName = "poll-schedule"
)

const bannerTemplate = `{{ .AnsiColor.BrightCyan }}featuremanager{{ .AnsiColor.Default }} {{ .GoVersion }} {{ .GOOS }}/{{ .GOARCH }}
started at {{ .Now "2006-01-02 15:04:05" }}
`

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Serve feature flag evaluations over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		l, err := coreLogger()
		if err != nil {
			return err
		}
		banner.Init(colorable.NewColorableStdout(), true, viper.GetString(logFormatFlagName) != "json",
			strings.NewReader(bannerTemplate))

		var mux *sync.Multiplexer
		providerImpl, err := findProvider(
			viper.GetString(syncProviderFlagName),
			viper.GetString(uriFlagName),
			viper.GetString(pollScheduleFlagName),
			func() {
				if err := mux.Publish(); err != nil {
					log.Error(err)
				}
			},
		)
		if err != nil {
			return err
		}
		mux, err = sync.NewMux(providerImpl, []string{providerImpl.URI()})
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		publisher, err := telemetry.NewPublisher(reg)
		if err != nil {
			return err
		}

		evaluator := eval.NewFeatureManager(providerImpl,
			eval.WithLogger(l),
			eval.WithIgnoreCase(viper.GetBool(ignoreCaseFlagName)),
			eval.WithFilters(filter.NewJSONLogic()),
			eval.WithTelemetry(publisher.Publish),
		)

		serviceImpl := &service.HTTPService{
			HTTPServiceConfiguration: &service.HTTPServiceConfiguration{
				Port: viper.GetInt32(portFlagName),
			},
			Mux:      mux,
			Gatherer: reg,
		}

		if err := runtime.Start(ctx, serviceImpl, providerImpl, evaluator); err != nil {
			log.Error(err)
			return err
		}
		log.Info("shut down")
		return nil
	},
}

func init() {
	startCmd.Flags().Int32P(portFlagName, "p", 8080, "Port to listen on")
	startCmd.Flags().StringP(syncProviderFlagName, "y", fileSyncProvider, "Set a sync provider, file or http")
	startCmd.Flags().StringP(uriFlagName, "f", "", "Set a sync provider uri to read data from, a filepath or url")
	startCmd.Flags().String(pollScheduleFlagName, provider.DefaultPollSchedule, "Cron schedule for the http sync provider")
	rootCmd.AddCommand(startCmd)
}
