package state

import (
	"testing"
	"time"

	"github.com/ShayCichocki/quorum/pkg/models"
)

func testPlan(id string) *models.Plan {
	return &models.Plan{
		ID:     id,
		Mode:   models.ModePipeline,
		Prompt: "add a button",
		Steps: []models.Step{
			{ID: "analyze", Agent: models.AgentClaude, Prompt: "{{prompt}}", OutputAs: "analysis"},
			{ID: "code", Agent: models.AgentCodex, Prompt: "{{analysis}}", DependsOn: []string{"analyze"}},
		},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testResult(planID string) *models.ExecutionResult {
	start := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)
	return &models.ExecutionResult{
		PlanID: planID,
		Status: models.RunStatusPartial,
		Results: []models.StepResult{
			{StepID: "analyze", Status: models.StepStatusCompleted, Content: "plan", Agent: models.AgentClaude,
				StartedAt: start, CompletedAt: start.Add(2 * time.Second)},
			{StepID: "code", Status: models.StepStatusFailed, Error: "boom", Agent: models.AgentCodex,
				StartedAt: start.Add(2 * time.Second), CompletedAt: start.Add(3 * time.Second)},
		},
		FinalOutput: "plan",
		Duration:    3 * time.Second,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := db.SaveRun("run-1", testPlan("plan-1"), started, testResult("plan-1")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	run, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run == nil {
		t.Fatal("expected run, got nil")
	}
	if run.Plan.ID != "plan-1" || len(run.Plan.Steps) != 2 || run.Plan.Steps[1].DependsOn[0] != "analyze" {
		t.Errorf("plan did not round-trip: %+v", run.Plan)
	}
	if run.Status != models.RunStatusPartial || run.FinalOutput != "plan" || run.Duration != 3*time.Second {
		t.Errorf("unexpected run fields: %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, started)
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(run.Results))
	}
	if run.Results[0].StepID != "analyze" || run.Results[1].Error != "boom" {
		t.Errorf("results out of order or incomplete: %+v", run.Results)
	}
	if run.Results[0].Duration() != 2*time.Second {
		t.Errorf("step duration = %v, want 2s", run.Results[0].Duration())
	}
}

func TestGetRun_Missing(t *testing.T) {
	db := setupTestDB(t)

	run, err := db.GetRun("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil run, got %+v", run)
	}
}

func TestBeginAndFinishRun(t *testing.T) {
	db := setupTestDB(t)

	if err := db.BeginRun("run-1", testPlan("plan-1"), time.Now()); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	run, _ := db.GetRun("run-1")
	if run.Status != StatusRunning || len(run.Results) != 0 {
		t.Errorf("expected a running run without results, got %+v", run)
	}

	if err := db.FinishRun("run-1", testResult("plan-1")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	run, _ = db.GetRun("run-1")
	if run.Status != models.RunStatusPartial || len(run.Results) != 2 {
		t.Errorf("expected finished run, got %+v", run)
	}
}

func TestFinishRun_Unknown(t *testing.T) {
	db := setupTestDB(t)

	if err := db.FinishRun("ghost", testResult("plan-1")); err == nil {
		t.Error("expected error finishing an unknown run")
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := db.SaveRun(id, testPlan("plan-"+id), base.Add(time.Duration(i)*time.Hour), testResult("plan-"+id)); err != nil {
			t.Fatalf("SaveRun(%s) failed: %v", id, err)
		}
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("expected newest two runs, got %+v", runs)
	}
	if runs[0].Mode != models.ModePipeline || runs[0].Prompt != "add a button" {
		t.Errorf("unexpected summary %+v", runs[0])
	}

	all, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected all 3 runs, got %d", len(all))
	}
}

func TestMarkInterrupted(t *testing.T) {
	db := setupTestDB(t)

	if err := db.BeginRun("stuck", testPlan("p1"), time.Now()); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := db.SaveRun("done", testPlan("p2"), time.Now(), testResult("p2")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	n, err := db.MarkInterrupted()
	if err != nil {
		t.Fatalf("MarkInterrupted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 interrupted run, got %d", n)
	}

	stuck, _ := db.GetRun("stuck")
	if stuck.Status != models.RunStatusFailed || stuck.Error != interruptedError {
		t.Errorf("expected interrupted run to be failed, got %+v", stuck)
	}
	done, _ := db.GetRun("done")
	if done.Status != models.RunStatusPartial {
		t.Errorf("finished run should be untouched, got %s", done.Status)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)

	if err := db.SaveRun("ancient", testPlan("p1"), time.Now().Add(-48*time.Hour), testResult("p1")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := db.SaveRun("fresh", testPlan("p2"), time.Now(), testResult("p2")); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged run, got %d", n)
	}

	var orphans int
	if err := db.queryRow("SELECT COUNT(*) FROM step_results WHERE run_id = 'ancient'").Scan(&orphans); err != nil {
		t.Fatalf("count step results: %v", err)
	}
	if orphans != 0 {
		t.Errorf("expected step results of purged run to be removed, got %d", orphans)
	}
	if run, _ := db.GetRun("fresh"); run == nil {
		t.Error("fresh run should survive purge")
	}
}
