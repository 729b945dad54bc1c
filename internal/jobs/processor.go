package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
	"storybook/internal/providers/image"
	"storybook/internal/providers/story"
	"storybook/internal/storage"
)

// ProcessorStats counts outcomes since process start.
type ProcessorStats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Processor advances exactly one job to completion, reporting progress and
// the final outcome through the Manager. Implementations must poll for
// cancellation at their checkpoints; cancellation is cooperative, an
// in-flight generation call is never interrupted.
type Processor interface {
	Process(ctx context.Context, job *domain.Job) error
	Healthy() bool
	Stats() ProcessorStats
}

// GenerationProcessor drives the story and image providers for every job
// type and persists generated assets to the file store.
type GenerationProcessor struct {
	manager   *Manager
	stories   story.Generator
	images    image.Generator
	store     *storage.FileStore
	baseURL   string
	logger    zerolog.Logger
	processed atomic.Int64
	failed    atomic.Int64
}

// NewGenerationProcessor wires the default processor.
func NewGenerationProcessor(manager *Manager, stories story.Generator, images image.Generator, store *storage.FileStore, baseURL string, logger zerolog.Logger) *GenerationProcessor {
	return &GenerationProcessor{
		manager: manager,
		stories: stories,
		images:  images,
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Process runs the job to completion. A domain.ErrJobCancelled return means
// the job was cancelled at a checkpoint and no failure should be recorded.
func (p *GenerationProcessor) Process(ctx context.Context, job *domain.Job) error {
	kind, ok := domain.KindFor(job.Type)
	if !ok {
		p.failed.Add(1)
		return fmt.Errorf("%w: %q", domain.ErrInvalidJobType, job.Type)
	}

	result, err := p.run(ctx, job, kind)
	if err != nil {
		if !errors.Is(err, domain.ErrJobCancelled) {
			p.failed.Add(1)
		}
		return err
	}
	if err := p.manager.MarkJobCompleted(ctx, job.ID, result); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("record completion: %w", err)
	}
	p.processed.Add(1)
	return nil
}

func (p *GenerationProcessor) run(ctx context.Context, job *domain.Job, kind domain.JobKind) (json.RawMessage, error) {
	switch job.Type {
	case domain.JobTypeStorybook:
		var in domain.StorybookInput
		if err := json.Unmarshal(job.InputData, &in); err != nil {
			return nil, fmt.Errorf("decode storybook input: %w", err)
		}
		return p.buildStorybook(ctx, job, kind, story.StoryRequest{
			Title:     in.Title,
			Prompt:    in.Prompt,
			Audience:  in.Audience,
			Style:     in.Style,
			PageCount: in.PageCount,
		}, 0)

	case domain.JobTypeAutoStory:
		var in domain.AutoStoryInput
		if err := json.Unmarshal(job.InputData, &in); err != nil {
			return nil, fmt.Errorf("decode auto-story input: %w", err)
		}
		if err := p.advance(ctx, job.ID, kind.Phases[0]); err != nil {
			return nil, err
		}
		req, err := p.stories.Premise(ctx, story.PremiseRequest{
			Genre:     in.Genre,
			Character: in.Character,
			Audience:  in.Audience,
		})
		if err != nil {
			return nil, fmt.Errorf("draft premise: %w", err)
		}
		req.Style = in.Style
		return p.buildStorybook(ctx, job, kind, *req, 1)

	case domain.JobTypeScenes:
		return p.buildScenes(ctx, job, kind)

	case domain.JobTypeCartoonize:
		var in domain.CartoonizeInput
		if err := json.Unmarshal(job.InputData, &in); err != nil {
			return nil, fmt.Errorf("decode cartoonize input: %w", err)
		}
		return p.buildImages(ctx, job, kind, in.Prompt, in.Style, in.SourceImageURL, 1)

	case domain.JobTypeImageGeneration:
		var in domain.ImageGenerationInput
		if err := json.Unmarshal(job.InputData, &in); err != nil {
			return nil, fmt.Errorf("decode image input: %w", err)
		}
		count := in.Count
		if count <= 0 {
			count = 1
		}
		return p.buildImages(ctx, job, kind, in.Prompt, in.Style, "", count)
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrInvalidJobType, job.Type)
}

// buildStorybook covers storybook and auto-story jobs; phaseOffset skips
// phases a caller already reported.
func (p *GenerationProcessor) buildStorybook(ctx context.Context, job *domain.Job, kind domain.JobKind, req story.StoryRequest, phaseOffset int) (json.RawMessage, error) {
	phases := kind.Phases[phaseOffset:]
	// The last three phases bracket writing, illustration and assembly.
	// Leading phases (storybook's prompt analysis) are reported first.
	for _, ph := range phases[:len(phases)-3] {
		if err := p.advance(ctx, job.ID, ph); err != nil {
			return nil, err
		}
	}
	tail := phases[len(phases)-3:]
	if err := p.advance(ctx, job.ID, tail[0]); err != nil {
		return nil, err
	}
	generated, err := p.stories.Story(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("write story: %w", err)
	}

	if err := p.advance(ctx, job.ID, tail[1]); err != nil {
		return nil, err
	}
	pages := make([]domain.StoryPage, 0, len(generated.Pages))
	for i, text := range generated.Pages {
		asset, err := p.images.Generate(ctx, image.GenerateRequest{
			Prompt: text,
			Style:  req.Style,
			JobID:  job.ID,
			Index:  i,
		})
		if err != nil {
			return nil, fmt.Errorf("illustrate page %d: %w", i+1, err)
		}
		url, err := p.persistAsset(ctx, job.ID, fmt.Sprintf("page-%02d", i+1), asset)
		if err != nil {
			return nil, err
		}
		pages = append(pages, domain.StoryPage{Number: i + 1, Text: text, ImageURL: url})
	}

	if err := p.advance(ctx, job.ID, tail[2]); err != nil {
		return nil, err
	}
	return json.Marshal(domain.StoryResult{
		Title:    generated.Title,
		Audience: req.Audience,
		Style:    req.Style,
		Pages:    pages,
	})
}

func (p *GenerationProcessor) buildScenes(ctx context.Context, job *domain.Job, kind domain.JobKind) (json.RawMessage, error) {
	var in domain.ScenesInput
	if err := json.Unmarshal(job.InputData, &in); err != nil {
		return nil, fmt.Errorf("decode scenes input: %w", err)
	}
	if err := p.advance(ctx, job.ID, kind.Phases[0]); err != nil {
		return nil, err
	}
	if err := p.advance(ctx, job.ID, kind.Phases[1]); err != nil {
		return nil, err
	}
	generated, err := p.stories.Scenes(ctx, story.SceneRequest{Story: in.Story, Audience: in.Audience})
	if err != nil {
		return nil, fmt.Errorf("split scenes: %w", err)
	}
	if err := p.advance(ctx, job.ID, kind.Phases[2]); err != nil {
		return nil, err
	}
	scenes := make([]domain.Scene, 0, len(generated))
	for i, s := range generated {
		scenes = append(scenes, domain.Scene{Number: i + 1, Description: s.Description, ImagePrompt: s.ImagePrompt})
	}
	return json.Marshal(domain.SceneResult{Scenes: scenes})
}

func (p *GenerationProcessor) buildImages(ctx context.Context, job *domain.Job, kind domain.JobKind, prompt, style, sourceURL string, count int) (json.RawMessage, error) {
	if err := p.advance(ctx, job.ID, kind.Phases[0]); err != nil {
		return nil, err
	}
	if err := p.advance(ctx, job.ID, kind.Phases[1]); err != nil {
		return nil, err
	}
	urls := make([]string, 0, count)
	for i := 0; i < count; i++ {
		asset, err := p.images.Generate(ctx, image.GenerateRequest{
			Prompt:         prompt,
			Style:          style,
			SourceImageURL: sourceURL,
			JobID:          job.ID,
			Index:          i,
		})
		if err != nil {
			return nil, fmt.Errorf("generate image %d: %w", i+1, err)
		}
		url, err := p.persistAsset(ctx, job.ID, fmt.Sprintf("image-%02d", i+1), asset)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	if err := p.advance(ctx, job.ID, kind.Phases[2]); err != nil {
		return nil, err
	}
	return json.Marshal(domain.ImageResult{URL: urls[0], URLs: urls, Style: style})
}

// advance is the cooperative cancellation checkpoint: it re-reads the row
// before each progress write and aborts when the job was cancelled.
func (p *GenerationProcessor) advance(ctx context.Context, jobID string, phase domain.Phase) error {
	current, err := p.manager.GetJobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if current.Status == domain.JobStatusCancelled {
		p.logger.Info().Str("job_id", jobID).Msg("processor: cancellation observed, aborting")
		return domain.ErrJobCancelled
	}
	if current.Status.Terminal() {
		return domain.ErrTerminalState
	}
	return p.manager.UpdateJobProgress(ctx, jobID, phase.Progress, phase.Label)
}

func (p *GenerationProcessor) persistAsset(ctx context.Context, jobID, name string, asset *image.Asset) (string, error) {
	key := fmt.Sprintf("generated/%s/%s%s", jobID, name, extensionForMIME(asset.Format))
	saved, err := p.store.Write(ctx, key, asset.Data)
	if err != nil {
		return "", fmt.Errorf("persist asset %s: %w", name, err)
	}
	if p.baseURL == "" {
		return saved, nil
	}
	return p.baseURL + "/" + saved, nil
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	default:
		return ".bin"
	}
}

// Healthy reports whether the processor's collaborators are wired.
func (p *GenerationProcessor) Healthy() bool {
	return p.stories != nil && p.images != nil && p.store != nil
}

// Stats returns outcome counters since process start.
func (p *GenerationProcessor) Stats() ProcessorStats {
	return ProcessorStats{Processed: p.processed.Load(), Failed: p.failed.Load()}
}

var _ Processor = (*GenerationProcessor)(nil)
