package story

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var genreCaser = cases.Title(language.English)

// SyntheticGenerator produces deterministic placeholder stories. It backs
// development and test environments where no OpenAI key is configured.
type SyntheticGenerator struct{}

func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{}
}

func (s *SyntheticGenerator) Story(ctx context.Context, req StoryRequest) (*GeneratedStory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	count := normalizePageCount(req.PageCount)
	title := req.Title
	if title == "" {
		title = "The Tale of " + firstWords(req.Prompt, 4)
	}
	pages := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		pages = append(pages, fmt.Sprintf("Page %d: %s (part %d of %d).", i, req.Prompt, i, count))
	}
	return &GeneratedStory{Title: title, Pages: pages}, nil
}

func (s *SyntheticGenerator) Premise(ctx context.Context, req PremiseRequest) (*StoryRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	character := req.Character
	if character == "" {
		character = "a curious child"
	}
	return &StoryRequest{
		Title:    fmt.Sprintf("A %s Adventure", genreCaser.String(req.Genre)),
		Prompt:   fmt.Sprintf("A %s story about %s", req.Genre, character),
		Audience: req.Audience,
	}, nil
}

func (s *SyntheticGenerator) Scenes(ctx context.Context, req SceneRequest) ([]GeneratedScene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sentences := splitSentences(req.Story)
	if len(sentences) == 0 {
		sentences = []string{req.Story}
	}
	scenes := make([]GeneratedScene, 0, len(sentences))
	for _, sentence := range sentences {
		scenes = append(scenes, GeneratedScene{
			Description: sentence,
			ImagePrompt: "Comic panel: " + sentence,
		})
	}
	return scenes, nil
}

func splitSentences(text string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	if len(words) == 0 {
		return "an Unnamed Hero"
	}
	return strings.Join(words, " ")
}

var _ Generator = (*SyntheticGenerator)(nil)
