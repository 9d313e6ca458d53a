package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"carb-estimator/internal/core/carb"
	"carb-estimator/internal/pkg/common"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// createdAtLayout 固定寬度的 UTC 時間，created_at 以文字排序
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound 紀錄不存在
var ErrNotFound = errors.New("analysis not found")

// DefaultListLimit List 未指定數量時的上限
const DefaultListLimit = 20

// Entry 一筆分析紀錄
type Entry struct {
	ID         string               `json:"id"`
	Profile    string               `json:"profile"`
	Model      string               `json:"model,omitempty"`
	Result     *carb.AnalysisResult `json:"result"`
	CreatedAt  time.Time            `json:"createdAt"`
	ResultJSON string               `json:"-"`
}

// Store 以 SQLite 保存分析結果
type Store struct {
	db *sql.DB
}

// Open 開啟（必要時建立）資料庫
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 單一連線避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	common.LogInfo("History store opened", zap.String("path", path))
	return s, nil
}

// Ping 檢查資料庫連線
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 關閉資料庫
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS analyses (
        id TEXT PRIMARY KEY,
        profile TEXT NOT NULL,
        model TEXT NOT NULL DEFAULT '',
        summary TEXT NOT NULL,
        total_carb_grams INTEGER NOT NULL,
        confidence INTEGER NOT NULL,
        portions_count INTEGER NOT NULL DEFAULT 0,
        result_json TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS analysis_components (
        analysis_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        description TEXT NOT NULL,
        estimated_weight_grams INTEGER NOT NULL,
        carb_percentage INTEGER NOT NULL,
        carb_content_grams INTEGER NOT NULL,
        PRIMARY KEY (analysis_id, position),
        FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_analyses_profile_created ON analyses(profile, created_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save 寫入一筆紀錄；ID 與時間為空時自動產生
func (s *Store) Save(ctx context.Context, e *Entry) error {
	if e.Result == nil {
		return fmt.Errorf("history entry without result")
	}
	if e.ID == "" {
		e.ID = common.GenerateUUID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	encoded, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	e.ResultJSON = string(encoded)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO analyses (id, profile, model, summary, total_carb_grams, confidence, portions_count, result_json, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Profile, e.Model, e.Result.SummaryText, e.Result.TotalCarbGrams,
		e.Result.Confidence, e.Result.PortionsCount, e.ResultJSON, e.CreatedAt.UTC().Format(createdAtLayout))
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	for i, c := range e.Result.Components {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO analysis_components (analysis_id, position, description, estimated_weight_grams, carb_percentage, carb_content_grams)
            VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, i, c.Description, c.EstimatedWeightGrams, c.CarbPercentage, c.CarbContentGrams)
		if err != nil {
			return fmt.Errorf("failed to insert component: %w", err)
		}
	}

	return tx.Commit()
}

const selectAnalysis = `
    SELECT id, profile, model, summary, total_carb_grams, confidence, portions_count, result_json, created_at
    FROM analyses`

// Get 依 ID 取得紀錄
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectAnalysis+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadComponents(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List 依時間新到舊列出；profile 為空時不篩選
func (s *Store) List(ctx context.Context, profile string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := selectAnalysis + ` WHERE 1=1`
	args := []interface{}{}
	if profile != "" {
		query += " AND profile = ?"
		args = append(args, profile)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}

	entries := make([]*Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read analyses: %w", err)
	}
	rows.Close()

	// 單一連線下需先關閉 rows 再查元件
	for _, e := range entries {
		if err := s.loadComponents(ctx, e); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	e := &Entry{Result: &carb.AnalysisResult{}}
	var createdAt string
	err := row.Scan(&e.ID, &e.Profile, &e.Model, &e.Result.SummaryText, &e.Result.TotalCarbGrams,
		&e.Result.Confidence, &e.Result.PortionsCount, &e.ResultJSON, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan analysis: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return e, nil
}

func (s *Store) loadComponents(ctx context.Context, e *Entry) error {
	rows, err := s.db.QueryContext(ctx, `
        SELECT description, estimated_weight_grams, carb_percentage, carb_content_grams
        FROM analysis_components
        WHERE analysis_id = ?
        ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to query components: %w", err)
	}
	defer rows.Close()

	components := make([]carb.Component, 0)
	for rows.Next() {
		var c carb.Component
		if err := rows.Scan(&c.Description, &c.EstimatedWeightGrams, &c.CarbPercentage, &c.CarbContentGrams); err != nil {
			return fmt.Errorf("failed to scan component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read components: %w", err)
	}

	e.Result.Components = components
	return nil
}
