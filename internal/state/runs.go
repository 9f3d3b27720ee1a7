package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/quorum/pkg/models"
)

// StatusRunning marks a run that has begun but not finished.
// It is only ever stored; the scheduler reports models.RunStatus values.
const StatusRunning models.RunStatus = "running"

// interruptedError is recorded on runs found running at startup.
const interruptedError = "interrupted before completion"

// Run is one persisted execution of a plan.
type Run struct {
	ID          string              `json:"id"`
	Plan        models.Plan         `json:"plan"`
	Status      models.RunStatus    `json:"status"`
	FinalOutput string              `json:"final_output"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	Duration    time.Duration       `json:"duration"`
	Results     []models.StepResult `json:"results"`
}

// RunSummary is a row of the run history listing.
type RunSummary struct {
	ID        string
	PlanID    string
	Mode      models.Mode
	Prompt    string
	Status    models.RunStatus
	StartedAt time.Time
	Duration  time.Duration
}

// BeginRun records a run as started.
func (db *DB) BeginRun(id string, plan *models.Plan, startedAt time.Time) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = db.exec(`
		INSERT INTO runs (id, plan_id, mode, prompt, plan_json, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, plan.ID, string(plan.Mode), plan.Prompt, string(planJSON), string(StatusRunning), formatTime(startedAt))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run started with BeginRun.
func (db *DB) FinishRun(id string, result *models.ExecutionResult) error {
	return db.transaction(func(tx *sql.Tx) error {
		return finishRun(tx, id, result)
	})
}

// SaveRun stores a finished run in one transaction.
func (db *DB) SaveRun(id string, plan *models.Plan, startedAt time.Time, result *models.ExecutionResult) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return db.transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO runs (id, plan_id, mode, prompt, plan_json, status, started_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, plan.ID, string(plan.Mode), plan.Prompt, string(planJSON), string(StatusRunning), formatTime(startedAt)); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		return finishRun(tx, id, result)
	})
}

func finishRun(tx *sql.Tx, id string, result *models.ExecutionResult) error {
	res, err := tx.Exec(`
		UPDATE runs SET status = ?, final_output = ?, error = ?, duration_ms = ?
		WHERE id = ?
	`, string(result.Status), result.FinalOutput, result.Error, result.Duration.Milliseconds(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: unknown run %s", id)
	}

	if _, err := tx.Exec(`DELETE FROM step_results WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("clear step results: %w", err)
	}
	for seq, r := range result.Results {
		_, err := tx.Exec(`
			INSERT INTO step_results (run_id, seq, step_id, status, agent, model, content, error, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, seq, r.StepID, string(r.Status), string(r.Agent), r.Model, r.Content, r.Error,
			nullableTime(r.StartedAt), nullableTime(r.CompletedAt))
		if err != nil {
			return fmt.Errorf("save step result %s: %w", r.StepID, err)
		}
	}
	return nil
}

// GetRun retrieves a run with its step results.
// Returns nil, nil if the run does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.queryRow(`
		SELECT id, plan_json, status, final_output, error, started_at, duration_ms
		FROM runs WHERE id = ?
	`, id)

	var run Run
	var planJSON, startedAt string
	var durationMS int64
	err := row.Scan(&run.ID, &planJSON, &run.Status, &run.FinalOutput, &run.Error, &startedAt, &durationMS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	if err := json.Unmarshal([]byte(planJSON), &run.Plan); err != nil {
		return nil, fmt.Errorf("decode plan for run %s: %w", id, err)
	}
	run.StartedAt, _ = parseTime(startedAt)
	run.Duration = time.Duration(durationMS) * time.Millisecond

	results, err := db.stepResults(id)
	if err != nil {
		return nil, err
	}
	run.Results = results
	return &run, nil
}

func (db *DB) stepResults(runID string) ([]models.StepResult, error) {
	rows, err := db.query(`
		SELECT step_id, status, agent, model, content, error, started_at, completed_at
		FROM step_results WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list step results: %w", err)
	}
	defer rows.Close()

	var results []models.StepResult
	for rows.Next() {
		var r models.StepResult
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(&r.StepID, &r.Status, &r.Agent, &r.Model, &r.Content, &r.Error, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan step result: %w", err)
		}
		r.StartedAt = parseNullableTime(startedAt)
		r.CompletedAt = parseNullableTime(completedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListRuns returns the most recent runs, newest first.
// A limit of zero or less returns every run.
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.query(`
		SELECT id, plan_id, mode, prompt, status, started_at, duration_ms
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var startedAt string
		var durationMS int64
		if err := rows.Scan(&s.ID, &s.PlanID, &s.Mode, &s.Prompt, &s.Status, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.StartedAt, _ = parseTime(startedAt)
		s.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// MarkInterrupted fails every run still marked running, which happens when
// the process exits mid-run. Returns the number of runs updated.
func (db *DB) MarkInterrupted() (int64, error) {
	result, err := db.exec(`
		UPDATE runs SET status = ?, error = ? WHERE status = ?
	`, string(models.RunStatusFailed), interruptedError, string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return result.RowsAffected()
}
