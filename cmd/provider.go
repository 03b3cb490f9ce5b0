package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/open-feature/featuremanager/pkg/provider"
)

const (
	fileSyncProvider = "file"
	httpSyncProvider = "http"
)

func findProvider(name, uri, schedule string, onChange func()) (provider.IProvider, error) {
	if uri == "" {
		return nil, fmt.Errorf("no uri set")
	}
	switch name {
	case fileSyncProvider:
		log.Debugf("using %s sync-provider", name)
		return provider.NewFilePathProvider(uri, onChange), nil
	case httpSyncProvider:
		log.Debugf("using %s sync-provider", name)
		return provider.NewHTTPProvider(uri, schedule, nil, onChange), nil
	}
	return nil, fmt.Errorf("unknown sync-provider %q", name)
}
