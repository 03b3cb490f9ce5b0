package runtime

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/open-feature/featuremanager/core/pkg/eval"
	"github.com/open-feature/featuremanager/pkg/provider"
	"github.com/open-feature/featuremanager/pkg/service"
)

// Start loads the initial configuration, then runs the provider watch and the service until
// ctx is done or either of them fails.
func Start(ctx context.Context, server service.IService, provider provider.IProvider, evaluator eval.IEvaluator) error {
	if err := provider.Initialize(); err != nil {
		return fmt.Errorf("unable to load %s: %w", provider.URI(), err)
	}
	log.WithField("uri", provider.URI()).Infof("loaded %d feature flags", len(evaluator.ListFlagNames()))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return provider.Watch(gCtx)
	})
	g.Go(func() error {
		return server.Serve(gCtx, evaluator)
	})
	return g.Wait()
}
