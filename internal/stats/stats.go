package stats

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultFileName 统计数据库在工作目录下的默认文件名
const DefaultFileName = ".loctree-stats.db"

const DefaultRecentRuns = 10

// 运行状态
const (
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// RunRecord 一次翻译运行的归档记录
type RunRecord struct {
	ID               string
	StartedAt        time.Time
	Duration         time.Duration
	OriginLanguage   string
	TargetLanguage   string
	FilesScanned     int
	FilesWritten     int
	UnitsTotal       int
	UnitsTranslated  int
	UnitsPassThrough int
	UnitsFallback    int
	Batches          int
	Retries          int
	TokensIn         int64
	TokensOut        int64
	Status           string
}

// Totals 全部历史运行的累计统计
type Totals struct {
	Runs            int64
	UnitsTranslated int64
	TokensIn        int64
	TokensOut       int64
	TotalDuration   time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	started_at         TEXT NOT NULL,
	duration_ms        INTEGER NOT NULL,
	origin_language    TEXT NOT NULL,
	target_language    TEXT NOT NULL,
	files_scanned      INTEGER NOT NULL,
	files_written      INTEGER NOT NULL,
	units_total        INTEGER NOT NULL,
	units_translated   INTEGER NOT NULL,
	units_pass_through INTEGER NOT NULL,
	units_fallback     INTEGER NOT NULL,
	batches            INTEGER NOT NULL,
	retries            INTEGER NOT NULL,
	tokens_in          INTEGER NOT NULL,
	tokens_out         INTEGER NOT NULL,
	status             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Database 运行历史数据库
type Database struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open 打开或创建运行历史数据库
func Open(filePath string, logger *zap.Logger) (*Database, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	// modernc 驱动并发写入会报 SQLITE_BUSY，串行化连接
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init stats schema: %w", err)
	}

	return &Database{db: db, logger: logger}, nil
}

// Close 关闭数据库
func (d *Database) Close() error {
	return d.db.Close()
}

// AddRun 归档一次运行
func (d *Database) AddRun(record *RunRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO runs (
			id, started_at, duration_ms, origin_language, target_language,
			files_scanned, files_written, units_total, units_translated,
			units_pass_through, units_fallback, batches, retries,
			tokens_in, tokens_out, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.Duration.Milliseconds(),
		record.OriginLanguage,
		record.TargetLanguage,
		record.FilesScanned,
		record.FilesWritten,
		record.UnitsTotal,
		record.UnitsTranslated,
		record.UnitsPassThrough,
		record.UnitsFallback,
		record.Batches,
		record.Retries,
		record.TokensIn,
		record.TokensOut,
		record.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}

	d.logger.Debug("run record archived",
		zap.String("run_id", record.ID),
		zap.String("status", record.Status))

	return nil
}

// RecentRuns 按开始时间倒序返回最近的运行记录
func (d *Database) RecentRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentRuns
	}

	rows, err := d.db.Query(`
		SELECT id, started_at, duration_ms, origin_language, target_language,
			files_scanned, files_written, units_total, units_translated,
			units_pass_through, units_fallback, batches, retries,
			tokens_in, tokens_out, status
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run records: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		var record RunRecord
		var startedAt string
		var durationMS int64
		if err := rows.Scan(
			&record.ID,
			&startedAt,
			&durationMS,
			&record.OriginLanguage,
			&record.TargetLanguage,
			&record.FilesScanned,
			&record.FilesWritten,
			&record.UnitsTotal,
			&record.UnitsTranslated,
			&record.UnitsPassThrough,
			&record.UnitsFallback,
			&record.Batches,
			&record.Retries,
			&record.TokensIn,
			&record.TokensOut,
			&record.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp %q: %w", startedAt, err)
		}
		record.StartedAt = ts
		record.Duration = time.Duration(durationMS) * time.Millisecond

		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run records: %w", err)
	}

	return records, nil
}

// AggregateTotals 返回全部历史运行的累计统计
func (d *Database) AggregateTotals() (*Totals, error) {
	row := d.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(units_translated), 0),
			COALESCE(SUM(tokens_in), 0),
			COALESCE(SUM(tokens_out), 0),
			COALESCE(SUM(duration_ms), 0)
		FROM runs`)

	var totals Totals
	var durationMS int64
	if err := row.Scan(&totals.Runs, &totals.UnitsTranslated, &totals.TokensIn, &totals.TokensOut, &durationMS); err != nil {
		return nil, fmt.Errorf("failed to aggregate run records: %w", err)
	}
	totals.TotalDuration = time.Duration(durationMS) * time.Millisecond

	return &totals, nil
}
