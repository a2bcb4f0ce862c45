// Package history archives terminal jobs in SQLite. The archive is
// write-once per job and feeds the history listing; scheduling decisions
// never read from it.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"transvox/internal/config"
	"transvox/internal/jobs"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS job_history (
    id TEXT PRIMARY KEY,
    submitter_id TEXT NOT NULL,
    status TEXT NOT NULL,
    video_path TEXT NOT NULL,
    source_lang TEXT,
    target_lang TEXT NOT NULL,
    transcribe_engine TEXT,
    tts_engine TEXT,
    stage_label TEXT,
    percent INTEGER NOT NULL DEFAULT 0,
    error_kind TEXT,
    error_message TEXT,
    output_dir TEXT,
    final_video TEXT,
    created_at TEXT NOT NULL,
    started_at TEXT,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_history_submitter ON job_history (submitter_id, finished_at DESC);
`

// Record is one archived terminal job.
type Record struct {
	ID               string     `json:"id"`
	SubmitterID      string     `json:"submitterId"`
	Status           string     `json:"status"`
	VideoPath        string     `json:"videoPath"`
	SourceLang       string     `json:"sourceLang,omitempty"`
	TargetLang       string     `json:"targetLang"`
	TranscribeEngine string     `json:"transcribeEngine,omitempty"`
	TTSEngine        string     `json:"ttsEngine,omitempty"`
	StageLabel       string     `json:"stageLabel,omitempty"`
	Percent          int        `json:"percent"`
	ErrorKind        string     `json:"errorKind,omitempty"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	OutputDir        string     `json:"outputDir,omitempty"`
	FinalVideo       string     `json:"finalVideo,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	FinishedAt       time.Time  `json:"finishedAt"`
}

// Store persists the job archive.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the history database under the configured log directory
// and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) applySchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Archive stores a terminal job. Re-archiving the same identifier replaces
// the previous row, so retries after a partial write stay safe.
func (s *Store) Archive(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if !job.Status.IsTerminal() {
		return jobs.ErrNotTerminal
	}

	var errorKind, errorMessage any
	if job.Error != nil {
		errorKind = string(job.Error.Kind)
		errorMessage = job.Error.Message
	}
	var outputDir, finalVideo any
	if job.Result != nil {
		outputDir = nullableString(job.Result.OutputDir)
		finalVideo = nullableString(job.Result.FinalVideo)
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO job_history (
            id, submitter_id, status, video_path, source_lang, target_lang,
            transcribe_engine, tts_engine, stage_label, percent,
            error_kind, error_message, output_dir, final_video,
            created_at, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.SubmitterID,
		string(job.Status),
		job.Config.VideoPath,
		nullableString(job.Config.SourceLang),
		job.Config.TargetLang,
		nullableString(job.Config.TranscribeEngine),
		nullableString(job.Config.TTSEngine),
		nullableString(job.StageLabel),
		job.Percent,
		errorKind,
		errorMessage,
		outputDir,
		finalVideo,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		timeOrNow(job.FinishedAt).Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("archive job: %w", err)
	}
	return nil
}

// List returns archived jobs for a submitter, most recently finished first.
// limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, submitterID string, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM job_history WHERE submitter_id = ? ORDER BY finished_at DESC`
	args := []any{submitterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Get fetches one archived job.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM job_history WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history record: %w", err)
	}
	return &record, nil
}

// Delete removes one archived job, reporting whether a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_history WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete history record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const recordColumns = "id, submitter_id, status, video_path, source_lang, target_lang, transcribe_engine, tts_engine, stage_label, percent, error_kind, error_message, output_dir, final_video, created_at, started_at, finished_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		record      Record
		sourceLang  sql.NullString
		transcribe  sql.NullString
		tts         sql.NullString
		stageLabel  sql.NullString
		errorKind   sql.NullString
		errorMsg    sql.NullString
		outputDir   sql.NullString
		finalVideo  sql.NullString
		createdRaw  string
		startedRaw  sql.NullString
		finishedRaw string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.SubmitterID,
		&record.Status,
		&record.VideoPath,
		&sourceLang,
		&record.TargetLang,
		&transcribe,
		&tts,
		&stageLabel,
		&record.Percent,
		&errorKind,
		&errorMsg,
		&outputDir,
		&finalVideo,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Record{}, err
	}

	record.SourceLang = sourceLang.String
	record.TranscribeEngine = transcribe.String
	record.TTSEngine = tts.String
	record.StageLabel = stageLabel.String
	record.ErrorKind = errorKind.String
	record.ErrorMessage = errorMsg.String
	record.OutputDir = outputDir.String
	record.FinalVideo = finalVideo.String

	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		record.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := time.Parse(time.RFC3339Nano, startedRaw.String); err == nil {
			record.StartedAt = &started
		}
	}
	if finished, err := time.Parse(time.RFC3339Nano, finishedRaw); err == nil {
		record.FinishedAt = finished
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func timeOrNow(value *time.Time) time.Time {
	if value == nil {
		return time.Now().UTC()
	}
	return value.UTC()
}
