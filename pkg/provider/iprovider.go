package provider

import (
	"context"

	"github.com/open-feature/featuremanager/core/pkg/model"
)

// IProvider owns a configuration snapshot and replaces it when its source changes.
type IProvider interface {
	model.Configuration
	Initialize() error
	Watch(ctx context.Context) error
	URI() string
}
