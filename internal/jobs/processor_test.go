package jobs

import (
	"context"
	"testing"

	"storybook/internal/domain"
	"storybook/internal/providers/image"
	"storybook/internal/providers/story"
	"storybook/internal/storage"
)

func newTestProcessor(t *testing.T, repo *fakeJobRepo) (*GenerationProcessor, *Manager) {
	t.Helper()
	m := NewManager(repo, testConfig(), testLogger())
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	p := NewGenerationProcessor(m, story.NewSyntheticGenerator(), image.NewSyntheticGenerator(),
		store, "http://localhost:8080/static", testLogger())
	return p, m
}

func assertPhaseSequence(t *testing.T, got []progressUpdate, want []domain.Phase) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("progress updates = %d, want %d: %v", len(got), len(want), got)
	}
	for i, phase := range want {
		if got[i].progress != phase.Progress || got[i].step != phase.Label {
			t.Fatalf("update %d = {%d %q}, want {%d %q}",
				i, got[i].progress, got[i].step, phase.Progress, phase.Label)
		}
	}
}

func TestProcessStorybookWalksEveryPhase(t *testing.T) {
	repo := newFakeJobRepo()
	p, m := newTestProcessor(t, repo)
	job := createTestJob(t, m, domain.JobTypeStorybook, storybookInput(t))

	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	kind, _ := domain.KindFor(domain.JobTypeStorybook)
	assertPhaseSequence(t, repo.progress, kind.Phases)

	final := repo.jobs[job.ID]
	if final.Status != domain.JobStatusCompleted || final.Progress != 100 {
		t.Fatalf("job settled as %s/%d, want completed/100", final.Status, final.Progress)
	}
	if final.CurrentStep != "Assembling storybook" {
		t.Fatalf("last step = %q, want the assembly phase", final.CurrentStep)
	}
	if len(final.ResultData) == 0 {
		t.Fatal("completed job has no result payload")
	}
}

func TestProcessAutoStoryWalksEveryPhase(t *testing.T) {
	repo := newFakeJobRepo()
	p, m := newTestProcessor(t, repo)
	job := createTestJob(t, m, domain.JobTypeAutoStory,
		[]byte(`{"genre":"adventure","character_description":"a brave snail"}`))

	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	kind, _ := domain.KindFor(domain.JobTypeAutoStory)
	assertPhaseSequence(t, repo.progress, kind.Phases)

	if final := repo.jobs[job.ID]; final.Status != domain.JobStatusCompleted {
		t.Fatalf("job settled as %s, want completed", final.Status)
	}
}
