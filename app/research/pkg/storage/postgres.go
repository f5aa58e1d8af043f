package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/research_report/app/research/pkg/config"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// 运行状态
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run 一次研报生成记录
type Run struct {
	ID           int
	Kind         model.Kind
	Subject      string
	Title        string
	Status       string
	Error        string
	Markdown     string
	MarkdownPath string
	DocxPath     string
	SectionCount int
	CreatedAt    time.Time
	FinishedAt   *time.Time
}

// RunDetail 运行记录及章节、引用
type RunDetail struct {
	Run
	Sections   []model.Section
	References []model.Reference
}

// RunResult 运行结束时回写的内容
type RunResult struct {
	Status       string
	Title        string
	Markdown     string
	MarkdownPath string
	DocxPath     string
	Err          error
}

type Storage struct {
	db *sql.DB
}

func NewStorage(cfg config.DBConfig) (*Storage, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewWithDB(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB 复用已有连接
func NewWithDB(ctx context.Context, db *sql.DB) (*Storage, error) {
	s := &Storage{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// DB 底层连接，供检索存储共享
func (s *Storage) DB() *sql.DB {
	return s.db
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS report_runs (
			id SERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			subject TEXT NOT NULL,
			title TEXT,
			status TEXT NOT NULL DEFAULT 'running',
			error TEXT,
			markdown TEXT,
			markdown_path TEXT,
			docx_path TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS report_sections (
			id SERIAL PRIMARY KEY,
			run_id INTEGER REFERENCES report_runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			content TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS report_references (
			id SERIAL PRIMARY KEY,
			run_id INTEGER REFERENCES report_runs(id) ON DELETE CASCADE,
			title TEXT,
			link TEXT,
			source TEXT,
			pub_date TEXT,
			content TEXT
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// CreateRun 创建运行记录
func (s *Storage) CreateRun(ctx context.Context, kind model.Kind, subject string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO report_runs (kind, subject, status) VALUES ($1, $2, $3) RETURNING id`,
		string(kind), subject, StatusRunning).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// SaveSections 保存章节
func (s *Storage) SaveSections(ctx context.Context, runID int, sections []model.Section) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for i, sec := range sections {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO report_sections (run_id, seq, name, content) VALUES ($1, $2, $3, $4)`,
				runID, i, sanitize(sec.Name), sanitize(sec.Content)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveReferences 保存引用资料
func (s *Storage) SaveReferences(ctx context.Context, runID int, refs []model.Reference) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, ref := range refs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO report_references (run_id, title, link, source, pub_date, content) VALUES ($1, $2, $3, $4, $5, $6)`,
				runID, sanitize(ref.Title), ref.Link, ref.Source, ref.PubDate, sanitize(ref.Content)); err != nil {
				return err
			}
		}
		return nil
	})
}

// FinishRun 回写结果
func (s *Storage) FinishRun(ctx context.Context, runID int, res RunResult) error {
	status := res.Status
	if status == "" {
		status = StatusSucceeded
		if res.Err != nil {
			status = StatusFailed
		}
	}
	var errMsg string
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE report_runs SET status = $1, title = $2, markdown = $3, markdown_path = $4, docx_path = $5, error = $6, finished_at = CURRENT_TIMESTAMP WHERE id = $7`,
		status, sanitize(res.Title), sanitize(res.Markdown), res.MarkdownPath, res.DocxPath, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

// ListRuns 按创建时间倒序分页
func (s *Storage) ListRuns(ctx context.Context, page, pageSize int) ([]*Run, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.kind, r.subject, COALESCE(r.title, ''), r.status, COALESCE(r.error, ''),
			COALESCE(r.markdown_path, ''), COALESCE(r.docx_path, ''), r.created_at, r.finished_at,
			(SELECT COUNT(*) FROM report_sections s WHERE s.run_id = r.id)
		FROM report_runs r
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $1 OFFSET $2`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var kind string
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &kind, &r.Subject, &r.Title, &r.Status, &r.Error,
			&r.MarkdownPath, &r.DocxPath, &r.CreatedAt, &finished, &r.SectionCount); err != nil {
			return nil, 0, err
		}
		r.Kind = model.Kind(kind)
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// GetRun 获取运行详情
func (s *Storage) GetRun(ctx context.Context, id int) (*RunDetail, error) {
	d := &RunDetail{}
	var kind string
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, subject, COALESCE(title, ''), status, COALESCE(error, ''), COALESCE(markdown, ''),
			COALESCE(markdown_path, ''), COALESCE(docx_path, ''), created_at, finished_at
		FROM report_runs WHERE id = $1`, id).
		Scan(&d.ID, &kind, &d.Subject, &d.Title, &d.Status, &d.Error, &d.Markdown,
			&d.MarkdownPath, &d.DocxPath, &d.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Kind = model.Kind(kind)
	if finished.Valid {
		d.FinishedAt = &finished.Time
	}

	secRows, err := s.db.QueryContext(ctx,
		`SELECT name, COALESCE(content, '') FROM report_sections WHERE run_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer secRows.Close()
	for secRows.Next() {
		var sec model.Section
		if err := secRows.Scan(&sec.Name, &sec.Content); err != nil {
			return nil, err
		}
		d.Sections = append(d.Sections, sec)
	}
	if err := secRows.Err(); err != nil {
		return nil, err
	}
	d.SectionCount = len(d.Sections)

	refRows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(title, ''), COALESCE(link, ''), COALESCE(source, ''), COALESCE(pub_date, '') FROM report_references WHERE run_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer refRows.Close()
	for refRows.Next() {
		var ref model.Reference
		if err := refRows.Scan(&ref.Title, &ref.Link, &ref.Source, &ref.PubDate); err != nil {
			return nil, err
		}
		d.References = append(d.References, ref)
	}
	return d, refRows.Err()
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %v", err, rerr)
		}
		return err
	}
	return tx.Commit()
}

// sanitize 移除无效的 UTF-8 字符和 NULL 字节，PostgreSQL 文本字段不支持 NULL 字节
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}
