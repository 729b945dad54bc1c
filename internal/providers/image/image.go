// Package image generates illustrations for job results: cartoonized
// portraits, standalone images and storybook page art.
package image

import "context"

// GenerateRequest describes one image to produce.
type GenerateRequest struct {
	Prompt         string
	Style          string
	SourceImageURL string
	JobID          string
	Index          int
}

// Asset is a generated image held in memory until the processor persists it.
type Asset struct {
	Data   []byte
	Format string
}

// Generator produces image assets. Implementations must honor the context.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
