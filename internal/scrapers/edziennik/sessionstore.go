package edziennik

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"edziennik-backend/internal/components/telemetry"

	"github.com/dgraph-io/badger/v4"
)

var ErrSessionNotFound = errors.New("edziennik: session not found")

type StoredCookie struct {
	Name  string
	Value string
}

// SessionState is everything needed to resume a user's portal session.
type SessionState struct {
	Sid      string
	AjaxHash string
	Cookies  []StoredCookie
}

// SessionStore persists SessionState keyed by LoginKey.
//
// note: fault injection point
type SessionStore interface {
	Load(ctx context.Context, key string) (SessionState, error)
	Save(ctx context.Context, key string, state SessionState) error
	Delete(ctx context.Context, key string) error
}

// MemorySessionStore keeps sessions for the lifetime of the process.
type MemorySessionStore struct {
	mutex    sync.Mutex
	sessions map[string]SessionState
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]SessionState{}}
}

func (m *MemorySessionStore) Load(_ context.Context, key string) (SessionState, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	state, ok := m.sessions[key]
	if !ok {
		return SessionState{}, ErrSessionNotFound
	}
	return state, nil
}

func (m *MemorySessionStore) Save(_ context.Context, key string, state SessionState) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[key] = state
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, key)
	return nil
}

const sessionKeyPrefix = "session:"

// BadgerSessionStore persists sessions on disk, entries expire after ttl
// since the portal forgets them eventually anyway.
type BadgerSessionStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerSessionStore opens (or creates) the store in dir, an empty dir
// keeps everything in memory.
func OpenBadgerSessionStore(dir string, ttl time.Duration, tel telemetry.API) (BadgerSessionStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{tel: telemetry.NewScopedAPI("badger", tel)})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return BadgerSessionStore{}, fmt.Errorf("open session store: %w", err)
	}
	return BadgerSessionStore{db: db, ttl: ttl}, nil
}

func (s BadgerSessionStore) Close() error {
	return s.db.Close()
}

func (s BadgerSessionStore) Load(_ context.Context, key string) (SessionState, error) {
	var state SessionState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return SessionState{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionState{}, err
	}
	return state, nil
}

func (s BadgerSessionStore) Save(_ context.Context, key string, state SessionState) error {
	serialized := bytes.NewBuffer(nil)
	err := gob.NewEncoder(serialized).Encode(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(sessionKeyPrefix+key), serialized.Bytes())
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s BadgerSessionStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKeyPrefix + key))
	})
}

type badgerLogger struct {
	tel telemetry.API
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.tel.ReportBroken("store", fmt.Errorf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.tel.ReportWarning("store", fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.tel.ReportDebug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.tel.ReportDebug(fmt.Sprintf(format, args...))
}
