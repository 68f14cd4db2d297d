package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"glaspolitics.ie/pulse/internal/triage"
)

func TestExecuteStages_ContinuesPastFailure(t *testing.T) {
	t.Parallel()

	thirdRan := false
	stages := []stage{
		{name: "first", run: func(context.Context) (any, error) {
			return triage.Report{Assessed: 2, Selected: 1}, nil
		}},
		{name: "second", run: func(context.Context) (any, error) {
			return nil, errors.New("feed down")
		}},
		{name: "third", run: func(context.Context) (any, error) {
			thirdRan = true
			return nil, nil
		}},
	}

	report := executeStages(context.Background(), stages, zerolog.Nop())

	if !thirdRan {
		t.Fatal("stage after a failure did not run")
	}
	if report.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", report.Failed)
	}
	if len(report.Stages) != 3 {
		t.Fatalf("stages recorded = %d, want 3", len(report.Stages))
	}
	if report.Stages[0].Status != StageOK || report.Stages[1].Status != StageFailed || report.Stages[2].Status != StageOK {
		t.Fatalf("statuses = %s/%s/%s", report.Stages[0].Status, report.Stages[1].Status, report.Stages[2].Status)
	}
	if report.Stages[1].Error != "feed down" {
		t.Fatalf("failed stage error = %q", report.Stages[1].Error)
	}
}

func TestExecuteStages_SkippedStageNeverRuns(t *testing.T) {
	t.Parallel()

	stages := []stage{
		{name: "fetch", skip: true, run: func(context.Context) (any, error) {
			t.Fatal("skipped stage was invoked")
			return nil, nil
		}},
		{name: "triage", run: func(context.Context) (any, error) { return nil, nil }},
	}

	report := executeStages(context.Background(), stages, zerolog.Nop())

	if report.Failed != 0 {
		t.Fatalf("Failed = %d, want 0", report.Failed)
	}
	if report.Stages[0].Status != StageSkipped {
		t.Fatalf("status = %q, want skipped", report.Stages[0].Status)
	}
	if len(report.Stages[0].Counts) != 0 {
		t.Fatalf("skipped stage has counts: %s", report.Stages[0].Counts)
	}
}

func TestExecuteStages_KeepsPartialCountsOnFailure(t *testing.T) {
	t.Parallel()

	stages := []stage{
		{name: "triage", run: func(context.Context) (any, error) {
			return triage.Report{Assessed: 3}, errors.New("model unavailable")
		}},
	}

	report := executeStages(context.Background(), stages, zerolog.Nop())

	got := report.Stages[0]
	if got.Status != StageFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if !strings.Contains(string(got.Counts), `"assessed":3`) {
		t.Fatalf("partial counts lost on failure: %s", got.Counts)
	}
}

func TestBuildStages_SequenceAndSkipFlags(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(nil, Stages{}, Config{}, zerolog.Nop())
	stages := o.buildStages()

	want := []string{"fetch", "triage", "extract", "score", "sync", "aggregate", "cache"}
	if len(stages) != len(want) {
		t.Fatalf("stage count = %d, want %d", len(stages), len(want))
	}
	for i, name := range want {
		if stages[i].name != name {
			t.Fatalf("stage %d = %q, want %q", i, stages[i].name, name)
		}
	}
	for _, st := range stages[:6] {
		if !st.skip {
			t.Fatalf("stage %q should be skipped when its service is nil", st.name)
		}
	}
	if stages[6].skip {
		t.Fatal("cache bump should never be skipped")
	}
}

func TestLockKey_StableAndDistinct(t *testing.T) {
	t.Parallel()

	if lockKey(processLockName) != lockKey(processLockName) {
		t.Fatal("lock key is not deterministic")
	}
	if lockKey(processLockName) == lockKey("pulse.other") {
		t.Fatal("distinct names should map to distinct keys")
	}
}
