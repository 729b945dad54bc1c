// Package story generates narrative text for storybook, auto-story and
// scenes jobs. The OpenAI-backed generator degrades to a deterministic
// synthetic generator when no API key is configured.
package story

import "context"

// StoryRequest asks for a full paged story.
type StoryRequest struct {
	Title     string
	Prompt    string
	Audience  string
	Style     string
	PageCount int
}

// PremiseRequest asks for a story premise to be invented from a genre.
type PremiseRequest struct {
	Genre     string
	Character string
	Audience  string
}

// GeneratedStory is a titled sequence of page texts.
type GeneratedStory struct {
	Title string   `json:"title"`
	Pages []string `json:"pages"`
}

// GeneratedScene is one panel description derived from an existing story.
type GeneratedScene struct {
	Description string `json:"description"`
	ImagePrompt string `json:"image_prompt"`
}

// SceneRequest asks for a story to be split into illustratable scenes.
type SceneRequest struct {
	Story    string
	Audience string
}

// Generator produces story text. Implementations must honor the context.
type Generator interface {
	Story(ctx context.Context, req StoryRequest) (*GeneratedStory, error)
	Premise(ctx context.Context, req PremiseRequest) (*StoryRequest, error)
	Scenes(ctx context.Context, req SceneRequest) ([]GeneratedScene, error)
}

// DefaultPageCount is used when a request does not specify one.
const DefaultPageCount = 6

// MaxPageCount caps a single storybook.
const MaxPageCount = 12

func normalizePageCount(n int) int {
	if n <= 0 {
		return DefaultPageCount
	}
	if n > MaxPageCount {
		return MaxPageCount
	}
	return n
}
