package consumer

import (
	"context"

	"github.com/giobyte8/gallerist/internal/models"
)

type MessageConsumer interface {
	Start(ctx context.Context) error

	Stop()
}

// BuildRequestProcessor publishes the gallery described by a build request.
type BuildRequestProcessor interface {
	ProcessBuildRequest(ctx context.Context, req models.BuildRequest) error
}
