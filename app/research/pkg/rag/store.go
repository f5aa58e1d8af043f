package rag

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	_ "github.com/lib/pq"
)

// Chunk 检索单元
type Chunk struct {
	Collection string
	Title      string
	URL        string
	Source     string
	Seq        int
	Content    string
}

// Store 文本块存储
type Store interface {
	Add(ctx context.Context, collection string, chunks []Chunk) error
	Chunks(ctx context.Context, collection string) ([]Chunk, error)
	Clear(ctx context.Context, collection string) error
}

// MemoryStore 进程内存储
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]Chunk
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]Chunk)}
}

func (s *MemoryStore) Add(ctx context.Context, collection string, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		c.Collection = collection
		s.data[collection] = append(s.data[collection], c)
	}
	return nil
}

func (s *MemoryStore) Chunks(ctx context.Context, collection string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chunk, len(s.data[collection]))
	copy(out, s.data[collection])
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, collection)
	return nil
}

// PostgresStore 基于 PostgreSQL 的存储，按集合整体取出后在内存中排序
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore 使用已有连接并初始化表结构
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize rag schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rag_chunks (
			id SERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			title TEXT,
			url TEXT,
			source TEXT,
			seq INTEGER,
			content TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rag_chunks_collection ON rag_chunks(collection)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, collection string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rag_chunks (collection, title, url, source, seq, content) VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, collection, sanitize(c.Title), c.URL, c.Source, c.Seq, sanitize(c.Content)); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = fmt.Errorf("%w: %v", err, rerr)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Chunks(ctx context.Context, collection string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, url, source, seq, content FROM rag_chunks WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		c := Chunk{Collection: collection}
		var title, url, source sql.NullString
		var seq sql.NullInt64
		if err := rows.Scan(&title, &url, &source, &seq, &c.Content); err != nil {
			return nil, err
		}
		c.Title, c.URL, c.Source, c.Seq = title.String, url.String, source.String, int(seq.Int64)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Clear(ctx context.Context, collection string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rag_chunks WHERE collection = $1`, collection)
	return err
}

// sanitize 移除无效 UTF-8 与 NULL 字节，PostgreSQL 文本字段不支持
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}
