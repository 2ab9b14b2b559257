package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"chatkit/internal/provider"
)

// Message 消息实体
type Message struct {
	ID         string              `json:"id"`
	SessionID  string              `json:"session_id"`
	Role       string              `json:"role"`
	Content    string              `json:"content"`
	ToolCalls  []provider.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
	Name       string              `json:"name,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Provider converts the stored row back into a conversation message.
func (m *Message) Provider() provider.Message {
	return provider.Message{
		Role:       m.Role,
		Content:    m.Content,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}
}

// AppendMessage 添加消息并刷新会话的 updated_at
func (db *DB) AppendMessage(sessionID string, msg provider.Message) (*Message, error) {
	var out *Message
	err := db.WithTx(func(tx *Tx) error {
		var err error
		out, err = tx.AppendMessage(sessionID, msg)
		return err
	})
	return out, err
}

// AppendMessages 在同一事务中按顺序写入多条消息
func (db *DB) AppendMessages(sessionID string, msgs []provider.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return db.WithTx(func(tx *Tx) error {
		for _, msg := range msgs {
			if _, err := tx.AppendMessage(sessionID, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendMessage 在事务中添加消息
func (tx *Tx) AppendMessage(sessionID string, msg provider.Message) (*Message, error) {
	m := &Message{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCalls:  msg.ToolCalls,
		ToolCallID: msg.ToolCallID,
		Name:       msg.Name,
		CreatedAt:  time.Now().UTC(),
	}

	var toolCalls *string
	if len(m.ToolCalls) > 0 {
		data, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return nil, err
		}
		s := string(data)
		toolCalls = &s
	}

	_, err := tx.Exec(
		"INSERT INTO messages (id, session_id, role, content, tool_calls, tool_call_id, name, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, sessionID, m.Role, m.Content, toolCalls, nullable(m.ToolCallID), nullable(m.Name), m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := expectOne(tx.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", m.CreatedAt, sessionID)); err != nil {
		return nil, err
	}
	return m, nil
}

const messageColumns = "id, session_id, role, content, tool_calls, tool_call_id, name, created_at"

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var toolCalls, toolCallID, name sql.NullString
	if err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &toolCalls, &toolCallID, &name, &m.CreatedAt); err != nil {
		return nil, err
	}
	if toolCalls.Valid && toolCalls.String != "" {
		if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
			return nil, err
		}
	}
	m.ToolCallID = toolCallID.String
	m.Name = name.String
	return &m, nil
}

// GetMessages 按写入顺序返回会话消息；limit > 0 时只取最近的 limit 条
func (db *DB) GetMessages(sessionID string, limit int) ([]*Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE session_id = ? ORDER BY seq ASC"
	args := []any{sessionID}
	if limit > 0 {
		query = "SELECT " + messageColumns + " FROM (SELECT * FROM messages WHERE session_id = ? ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// GetMessage 获取单条消息
func (db *DB) GetMessage(id string) (*Message, error) {
	m, err := scanMessage(db.QueryRow("SELECT "+messageColumns+" FROM messages WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// History returns the stored transcript of a session as provider messages.
// An unknown session yields ErrNotFound.
func (db *DB) History(sessionID string) ([]provider.Message, error) {
	if _, err := db.GetSession(sessionID); err != nil {
		return nil, err
	}
	stored, err := db.GetMessages(sessionID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]provider.Message, 0, len(stored))
	for _, m := range stored {
		out = append(out, m.Provider())
	}
	return out, nil
}

// CountMessages 统计会话消息数
func (db *DB) CountMessages(sessionID string) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID).Scan(&count)
	return count, err
}

// DeleteMessage 删除消息
func (db *DB) DeleteMessage(id string) error {
	return expectOne(db.Exec("DELETE FROM messages WHERE id = ?", id))
}

// ClearMessages 清空会话消息，返回删除条数
func (db *DB) ClearMessages(sessionID string) (int64, error) {
	result, err := db.Exec("DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
