package service

import (
	"context"

	"github.com/open-feature/featuremanager/core/pkg/eval"
)

type IService interface {
	Serve(ctx context.Context, eval eval.IEvaluator) error
}
