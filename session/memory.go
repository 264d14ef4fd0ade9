package session

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goPortal/model"
)

const memorySubscriberBuffer = 16

// MemoryStore keeps the session in process memory. Several clients may
// share one MemoryStore; it then also fans out sync messages between them.
type MemoryStore struct {
	mu     sync.RWMutex
	fields map[string]string

	subMu  sync.Mutex
	subs   map[int]chan SyncMessage
	nextID int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fields: map[string]string{},
		subs:   map[int]chan SyncMessage{},
	}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	fields, err := encodeSession(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.fields = fields
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(context.Context) (*Session, error) {
	m.mu.RLock()
	fields := make(map[string]string, len(m.fields))
	for k, v := range m.fields {
		fields[k] = v
	}
	m.mu.RUnlock()
	return decodeSession(fields)
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.fields = map[string]string{}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SaveTokens(_ context.Context, t Tokens) error {
	m.mu.Lock()
	for k, v := range encodeTokens(t) {
		m.fields[k] = v
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SaveUser(_ context.Context, u *model.User) error {
	raw, err := encodeUser(u)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.fields[KeyUser] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, at time.Time) error {
	m.mu.Lock()
	if _, ok := m.fields[KeyToken]; ok {
		m.fields[KeyLastActivity] = encodeTime(at)
	}
	m.mu.Unlock()
	return nil
}

// Keys returns the keys currently stored.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.fields))
	for k := range m.fields {
		keys = append(keys, k)
	}
	return keys
}

// Publish delivers msg to every subscriber without blocking; a full
// subscriber misses the message.
func (m *MemoryStore) Publish(_ context.Context, msg SyncMessage) error {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (m *MemoryStore) Subscribe(context.Context) (<-chan SyncMessage, func(), error) {
	ch := make(chan SyncMessage, memorySubscriberBuffer)

	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}
