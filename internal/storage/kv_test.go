package storage

import (
	"errors"
	"testing"
	"time"
)

func TestKV(t *testing.T) {
	db := openTest(t)

	if err := db.KVSet("key1", "value1", 0); err != nil {
		t.Fatalf("KVSet failed: %v", err)
	}
	if err := db.KVSet("key1", "value2", 0); err != nil {
		t.Fatalf("KVSet overwrite failed: %v", err)
	}
	if v, err := db.KVGet("key1"); err != nil || v != "value2" {
		t.Errorf("KVGet = %q, %v", v, err)
	}

	if err := db.KVDelete("key1"); err != nil {
		t.Fatalf("KVDelete: %v", err)
	}
	if _, err := db.KVGet("key1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("KVGet after delete err = %v", err)
	}
	if err := db.KVDelete("key1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("KVDelete missing err = %v", err)
	}
}

func TestKV_Expiry(t *testing.T) {
	db := openTest(t)

	_ = db.KVSet("short", "x", time.Millisecond)
	_ = db.KVSet("long", "y", time.Hour)
	time.Sleep(10 * time.Millisecond)

	if _, err := db.KVGet("short"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired key err = %v, want ErrNotFound", err)
	}
	if v, err := db.KVGet("long"); err != nil || v != "y" {
		t.Errorf("KVGet long = %q, %v", v, err)
	}

	_ = db.KVSet("short2", "x", time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	n, err := db.KVCleanExpired()
	if err != nil || n != 1 {
		t.Errorf("KVCleanExpired = %d, %v", n, err)
	}
}

func TestKVList(t *testing.T) {
	db := openTest(t)

	_ = db.KVSet("pref.a", "1", 0)
	_ = db.KVSet("pref.b", "2", 0)
	_ = db.KVSet("other", "3", 0)

	got, err := db.KVList("pref.")
	if err != nil {
		t.Fatalf("KVList: %v", err)
	}
	if len(got) != 2 || got["pref.a"] != "1" || got["pref.b"] != "2" {
		t.Errorf("KVList = %v", got)
	}
}

func TestLastSession(t *testing.T) {
	db := openTest(t)

	if _, err := db.LastSession(); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty LastSession err = %v", err)
	}

	s, _ := db.CreateSession("resume me", "")
	if err := db.SetLastSession(s.ID); err != nil {
		t.Fatalf("SetLastSession: %v", err)
	}
	got, err := db.LastSession()
	if err != nil || got.ID != s.ID {
		t.Fatalf("LastSession = %+v, %v", got, err)
	}

	_ = db.DeleteSession(s.ID)
	if _, err := db.LastSession(); !errors.Is(err, ErrNotFound) {
		t.Errorf("LastSession after delete err = %v", err)
	}
	if _, err := db.KVGet(lastSessionKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale pointer should be removed, err = %v", err)
	}
}
