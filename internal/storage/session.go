package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound 表示记录不存在
var ErrNotFound = errors.New("not found")

// Session 会话实体
type Session struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Model     string          `json:"model"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// execer is satisfied by both *DB and *Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// CreateSession 创建新会话
func (db *DB) CreateSession(title, model string) (*Session, error) {
	return createSession(db, uuid.New().String(), title, model)
}

// CreateSessionWithID 使用指定 ID 创建新会话
func (db *DB) CreateSessionWithID(id, title, model string) (*Session, error) {
	return createSession(db, id, title, model)
}

// CreateSession 在事务中创建会话
func (tx *Tx) CreateSession(title, model string) (*Session, error) {
	return createSession(tx, uuid.New().String(), title, model)
}

func createSession(ex execer, id, title, model string) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:        id,
		Title:     title,
		Model:     model,
		Metadata:  json.RawMessage("{}"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := ex.Exec(
		"INSERT INTO sessions (id, title, model, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		s.ID, s.Title, s.Model, string(s.Metadata), now, now,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

const sessionColumns = "id, title, model, metadata, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var metadata string
	if err := row.Scan(&s.ID, &s.Title, &s.Model, &metadata, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Metadata = json.RawMessage(metadata)
	return &s, nil
}

// GetSession 获取会话
func (db *DB) GetSession(id string) (*Session, error) {
	s, err := scanSession(db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// UpdateSessionTitle 更新会话标题
func (db *DB) UpdateSessionTitle(id, title string) error {
	return expectOne(db.Exec(
		"UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?",
		title, time.Now().UTC(), id,
	))
}

// UpdateSessionMetadata 覆盖会话元数据
func (db *DB) UpdateSessionMetadata(id string, metadata json.RawMessage) error {
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	return expectOne(db.Exec(
		"UPDATE sessions SET metadata = ?, updated_at = ? WHERE id = ?",
		string(metadata), time.Now().UTC(), id,
	))
}

// DeleteSession 删除会话，消息随外键级联删除
func (db *DB) DeleteSession(id string) error {
	return expectOne(db.Exec("DELETE FROM sessions WHERE id = ?", id))
}

// ListSessions 按最近更新排序列出会话，limit <= 0 表示不限制
func (db *DB) ListSessions(limit, offset int) ([]*Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions ORDER BY updated_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// expectOne maps a zero-row update or delete to ErrNotFound.
func expectOne(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
