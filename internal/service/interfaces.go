package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"

	"driftwood/internal/gateway"
)

type Gateway interface {
	Invoke(ctx context.Context, command gateway.Command, args gateway.Args) (json.RawMessage, error)
}

// ImageChecker verifies that a post's header image is reachable.
type ImageChecker interface {
	Check(ctx context.Context, url string) error
}
