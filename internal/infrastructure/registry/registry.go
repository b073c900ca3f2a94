package registry

import (
	"fmt"
	"hash/fnv"
	"sync"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
)

const shardCount = 16

// ShardedRegistry is the in-memory session store. Sessions are spread over
// fixed shards keyed by session id so that unrelated sessions never contend
// on one lock; per-session field mutation is handled by the session itself.
type ShardedRegistry struct {
	shards [shardCount]shard
}

type shard struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.StreamSession
}

func NewShardedRegistry() ports.SessionRegistry {
	r := &ShardedRegistry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[domain.SessionID]*domain.StreamSession)
	}
	return r
}

func (r *ShardedRegistry) shardFor(id domain.SessionID) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &r.shards[h.Sum32()%shardCount]
}

func (r *ShardedRegistry) Put(session *domain.StreamSession) error {
	s := r.shardFor(session.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session already registered: %s", session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

func (r *ShardedRegistry) Get(id domain.SessionID) (*domain.StreamSession, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (r *ShardedRegistry) Remove(id domain.SessionID) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (r *ShardedRegistry) List() []*domain.StreamSession {
	var out []*domain.StreamSession
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, session := range s.sessions {
			out = append(out, session)
		}
		s.mu.RUnlock()
	}
	return out
}

func (r *ShardedRegistry) ListByCamera(cameraID domain.CameraID) []*domain.StreamSession {
	var out []*domain.StreamSession
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, session := range s.sessions {
			if session.CameraID == cameraID {
				out = append(out, session)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

func (r *ShardedRegistry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.sessions)
		s.mu.RUnlock()
	}
	return n
}
