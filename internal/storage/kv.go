package storage

import (
	"database/sql"
	"errors"
	"time"
)

// lastSessionKey remembers the session `chat --continue` resumes.
const lastSessionKey = "chat.last_session"

// KVSet 设置键值，ttl 为 0 表示永不过期
func (db *DB) KVSet(key, value string, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().UTC().Add(ttl)
		expiresAt = &t
	}
	_, err := db.Exec(
		"INSERT OR REPLACE INTO kv_store (key, value, expires_at) VALUES (?, ?, ?)",
		key, value, expiresAt,
	)
	return err
}

// KVGet 获取键值，过期键视为不存在并顺手删除
func (db *DB) KVGet(key string) (string, error) {
	var value string
	var expiresAt sql.NullTime
	err := db.QueryRow("SELECT value, expires_at FROM kv_store WHERE key = ?", key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if expired(expiresAt, time.Now()) {
		_, _ = db.Exec("DELETE FROM kv_store WHERE key = ?", key)
		return "", ErrNotFound
	}
	return value, nil
}

// KVDelete 删除键值
func (db *DB) KVDelete(key string) error {
	return expectOne(db.Exec("DELETE FROM kv_store WHERE key = ?", key))
}

// KVList 按前缀列出未过期的键值对
func (db *DB) KVList(prefix string) (map[string]string, error) {
	rows, err := db.Query("SELECT key, value, expires_at FROM kv_store WHERE key LIKE ? || '%'", prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		var expiresAt sql.NullTime
		if err := rows.Scan(&key, &value, &expiresAt); err != nil {
			return nil, err
		}
		if expired(expiresAt, now) {
			continue
		}
		out[key] = value
	}
	return out, rows.Err()
}

// KVCleanExpired 清理过期的键值对
func (db *DB) KVCleanExpired() (int64, error) {
	result, err := db.Exec(
		"DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at < ?",
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SetLastSession records the most recently used chat session.
func (db *DB) SetLastSession(id string) error {
	return db.KVSet(lastSessionKey, id, 0)
}

// LastSession returns the most recently used session if it still exists.
func (db *DB) LastSession() (*Session, error) {
	id, err := db.KVGet(lastSessionKey)
	if err != nil {
		return nil, err
	}
	s, err := db.GetSession(id)
	if errors.Is(err, ErrNotFound) {
		_, _ = db.Exec("DELETE FROM kv_store WHERE key = ?", lastSessionKey)
	}
	return s, err
}

func expired(expiresAt sql.NullTime, now time.Time) bool {
	return expiresAt.Valid && expiresAt.Time.Before(now)
}
