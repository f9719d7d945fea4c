package sessions

import (
	"sort"
	"sync"
	"time"
)

const (
	maxSessions        = 100
	maxTranscriptTotal = 10000
)

// Store provides thread-safe in-memory storage for sessions and transcripts.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	transcript []TranscriptEntry
}

// NewStore creates a new Store instance.
func NewStore() *Store {
	return &Store{
		sessions:   make(map[string]*Session),
		transcript: make([]TranscriptEntry, 0, maxTranscriptTotal),
	}
}

// Create adds a new session to the store.
func (s *Store) Create(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	s.evictOldSessions()
}

// Get retrieves a copy of a session by ID. The copy is safe to read while
// other goroutines update the stored session.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return session.clone(), true
}

// List returns copies of all sessions sorted by StartedAt descending.
func (s *Store) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session.clone())
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})

	return sessions
}

// Update performs a thread-safe update on a session.
func (s *Store) Update(id string, fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		fn(session)
	}
}

// Delete removes a session from the store.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}

// GetStats computes and returns aggregate statistics.
func (s *Store) GetStats() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		TotalSessions: len(s.sessions),
	}

	var totalDuration time.Duration
	var completedCount int

	for _, session := range s.sessions {
		switch session.Status {
		case StatusRunning, StatusPending:
			stats.ActiveSessions++
		case StatusCompleted:
			stats.CompletedSessions++
			completedCount++
			if session.CompletedAt != nil {
				totalDuration += session.CompletedAt.Sub(session.StartedAt)
			}
		case StatusFailed:
			stats.FailedSessions++
		}

		stats.TotalLLMCalls += session.LLMCalls
		stats.TotalTokens += session.TotalTokens
	}

	if completedCount > 0 {
		stats.AvgDuration = totalDuration.Seconds() / float64(completedCount)
	}

	if stats.TotalSessions > 0 {
		stats.SuccessRate = float64(stats.CompletedSessions) / float64(stats.TotalSessions)
	}

	return stats
}

// AddTranscript appends a transcript entry.
func (s *Store) AddTranscript(entry TranscriptEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, entry)

	// Evict old entries if we exceed the max
	if len(s.transcript) > maxTranscriptTotal {
		s.transcript = s.transcript[len(s.transcript)-maxTranscriptTotal:]
	}
}

// GetTranscript retrieves transcript entries for a session, most recent first.
func (s *Store) GetTranscript(sessionID string, limit int) []TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []TranscriptEntry
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].SessionID == sessionID {
			filtered = append(filtered, s.transcript[i])
			if limit > 0 && len(filtered) >= limit {
				break
			}
		}
	}

	return filtered
}

// evictOldSessions removes the oldest finished sessions if we exceed
// maxSessions. Must be called with lock held.
func (s *Store) evictOldSessions() {
	if len(s.sessions) <= maxSessions {
		return
	}

	type sessionTime struct {
		id   string
		time time.Time
	}

	var finished []sessionTime
	for id, session := range s.sessions {
		if session.Status == StatusCompleted || session.Status == StatusFailed {
			t := session.StartedAt
			if session.CompletedAt != nil {
				t = *session.CompletedAt
			}
			finished = append(finished, sessionTime{id: id, time: t})
		}
	}

	if len(finished) == 0 {
		return
	}

	// Sort oldest first
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].time.Before(finished[j].time)
	})

	// Delete oldest until we're under the limit
	toDelete := len(s.sessions) - maxSessions
	for i := 0; i < toDelete && i < len(finished); i++ {
		delete(s.sessions, finished[i].id)
	}
}
