package model

import (
	"context"

	"github.com/harunnryd/toolbridge/internal/model/contract"
)

// StreamProvider opens streaming completions against one model vendor.
type StreamProvider interface {
	Name() string
	Stream(ctx context.Context, req contract.CompletionRequest) (contract.ChunkStream, error)
}

type ChunkStream = contract.ChunkStream
