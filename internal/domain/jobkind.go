package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Phase is one checkpoint in a job's processing pipeline. Progress values
// are ascending and strictly below 100; completion is reported separately.
type Phase struct {
	Progress int
	Label    string
}

// JobKind bundles the per-type behavior that used to be scattered across
// switches: the phase plan a processor walks through and the shaping of
// the final result payload. A kind is resolved once when the job type is
// parsed and carried alongside the job from then on.
type JobKind struct {
	Type         JobType
	Phases       []Phase
	FormatResult func(raw json.RawMessage) (json.RawMessage, error)
}

var titleCaser = cases.Title(language.English)

var kinds = map[JobType]JobKind{
	JobTypeStorybook: {
		Type: JobTypeStorybook,
		Phases: []Phase{
			{Progress: 10, Label: "Analyzing story prompt"},
			{Progress: 30, Label: "Writing pages"},
			{Progress: 60, Label: "Illustrating pages"},
			{Progress: 90, Label: "Assembling storybook"},
		},
		FormatResult: formatStoryResult,
	},
	JobTypeAutoStory: {
		Type: JobTypeAutoStory,
		Phases: []Phase{
			{Progress: 10, Label: "Drafting premise"},
			{Progress: 35, Label: "Writing pages"},
			{Progress: 70, Label: "Illustrating pages"},
			{Progress: 90, Label: "Assembling storybook"},
		},
		FormatResult: formatStoryResult,
	},
	JobTypeScenes: {
		Type: JobTypeScenes,
		Phases: []Phase{
			{Progress: 20, Label: "Analyzing story"},
			{Progress: 60, Label: "Splitting into scenes"},
			{Progress: 90, Label: "Describing panels"},
		},
		FormatResult: formatSceneResult,
	},
	JobTypeCartoonize: {
		Type: JobTypeCartoonize,
		Phases: []Phase{
			{Progress: 25, Label: "Preparing image prompt"},
			{Progress: 60, Label: "Generating cartoon style"},
			{Progress: 90, Label: "Saving result"},
		},
		FormatResult: formatImageResult,
	},
	JobTypeImageGeneration: {
		Type: JobTypeImageGeneration,
		Phases: []Phase{
			{Progress: 25, Label: "Preparing prompt"},
			{Progress: 70, Label: "Generating image"},
			{Progress: 90, Label: "Saving result"},
		},
		FormatResult: formatImageResult,
	},
}

// KindFor resolves the variant for a job type.
func KindFor(t JobType) (JobKind, bool) {
	k, ok := kinds[t]
	return k, ok
}

// StoryPage is one illustrated page of a finished storybook.
type StoryPage struct {
	Number   int    `json:"number"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// StoryResult is the result payload for storybook and auto-story jobs.
type StoryResult struct {
	Title    string      `json:"title"`
	Audience string      `json:"audience,omitempty"`
	Style    string      `json:"style,omitempty"`
	Pages    []StoryPage `json:"pages"`
}

// Scene is one panel description produced by a scenes job.
type Scene struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
	ImagePrompt string `json:"image_prompt,omitempty"`
}

// SceneResult is the result payload for scenes jobs.
type SceneResult struct {
	Scenes []Scene `json:"scenes"`
}

// ImageResult is the result payload for cartoonize and image-generation jobs.
type ImageResult struct {
	URL   string   `json:"url"`
	URLs  []string `json:"urls,omitempty"`
	Style string   `json:"style,omitempty"`
}

func formatStoryResult(raw json.RawMessage) (json.RawMessage, error) {
	var res StoryResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode story result: %w", err)
	}
	if strings.TrimSpace(res.Title) == "" {
		return nil, fmt.Errorf("story result missing title")
	}
	res.Title = titleCaser.String(strings.TrimSpace(res.Title))
	for i := range res.Pages {
		if res.Pages[i].Number == 0 {
			res.Pages[i].Number = i + 1
		}
	}
	return json.Marshal(res)
}

func formatSceneResult(raw json.RawMessage) (json.RawMessage, error) {
	var res SceneResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode scene result: %w", err)
	}
	if len(res.Scenes) == 0 {
		return nil, fmt.Errorf("scene result is empty")
	}
	for i := range res.Scenes {
		if res.Scenes[i].Number == 0 {
			res.Scenes[i].Number = i + 1
		}
	}
	return json.Marshal(res)
}

func formatImageResult(raw json.RawMessage) (json.RawMessage, error) {
	var res ImageResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode image result: %w", err)
	}
	if res.URL == "" && len(res.URLs) > 0 {
		res.URL = res.URLs[0]
	}
	if res.URL == "" {
		return nil, fmt.Errorf("image result missing url")
	}
	return json.Marshal(res)
}

// StorybookInput is the creation payload for storybook jobs.
type StorybookInput struct {
	Title     string `json:"title"`
	Prompt    string `json:"prompt"`
	Audience  string `json:"audience,omitempty"`
	Style     string `json:"style,omitempty"`
	PageCount int    `json:"page_count,omitempty"`
}

// AutoStoryInput is the creation payload for auto-story jobs.
type AutoStoryInput struct {
	Genre     string `json:"genre"`
	Character string `json:"character_description,omitempty"`
	Audience  string `json:"audience,omitempty"`
	Style     string `json:"style,omitempty"`
}

// ScenesInput is the creation payload for scenes jobs.
type ScenesInput struct {
	Story    string `json:"story"`
	Audience string `json:"audience,omitempty"`
}

// CartoonizeInput is the creation payload for cartoonize jobs.
type CartoonizeInput struct {
	Prompt         string `json:"prompt"`
	Style          string `json:"style,omitempty"`
	SourceImageURL string `json:"source_image_url,omitempty"`
}

// ImageGenerationInput is the creation payload for image-generation jobs.
type ImageGenerationInput struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// ValidateInput checks that the creation payload decodes into the shape the
// processor for the given type will eventually consume. Payloads are stored
// verbatim; this only rejects requests that could never be processed.
func ValidateInput(t JobType, raw json.RawMessage) error {
	if len(raw) == 0 {
		return ErrInvalidInput
	}
	switch t {
	case JobTypeStorybook:
		var in StorybookInput
		if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Prompt) == "" {
			return ErrInvalidInput
		}
	case JobTypeAutoStory:
		var in AutoStoryInput
		if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Genre) == "" {
			return ErrInvalidInput
		}
	case JobTypeScenes:
		var in ScenesInput
		if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Story) == "" {
			return ErrInvalidInput
		}
	case JobTypeCartoonize:
		var in CartoonizeInput
		if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Prompt) == "" {
			return ErrInvalidInput
		}
	case JobTypeImageGeneration:
		var in ImageGenerationInput
		if err := json.Unmarshal(raw, &in); err != nil || strings.TrimSpace(in.Prompt) == "" {
			return ErrInvalidInput
		}
	default:
		return ErrInvalidJobType
	}
	return nil
}
