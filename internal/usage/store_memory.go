package usage

import (
	"context"
	"sync"
	"time"
)

type recordKey struct {
	userID string
	period Period
}

// MemoryStore keeps usage records in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[recordKey]Record
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[recordKey]Record), now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, userID string, p Period) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[recordKey{userID, p}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Ensure(ctx context.Context, userID string, p Period) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowLocked(userID, p)
	return nil
}

func (s *MemoryStore) IncrementUsage(ctx context.Context, userID string, p Period, searches, apiCalls int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rowLocked(userID, p)
	rec.SearchesCount += searches
	rec.APICallsCount += apiCalls
	rec.UpdatedAt = s.now().UTC()
	s.data[recordKey{userID, p}] = rec
	return nil
}

func (s *MemoryStore) IncrementStorage(ctx context.Context, userID string, p Period, bytes int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rowLocked(userID, p)
	rec.StorageUsed += bytes
	rec.UpdatedAt = s.now().UTC()
	s.data[recordKey{userID, p}] = rec
	return nil
}

// rowLocked returns the row for (userID, p), inserting a zeroed one first. Caller holds mu.
func (s *MemoryStore) rowLocked(userID string, p Period) Record {
	key := recordKey{userID, p}
	rec, ok := s.data[key]
	if !ok {
		now := s.now().UTC()
		rec = emptyRecord(userID, p)
		rec.CreatedAt = now
		rec.UpdatedAt = now
		s.data[key] = rec
	}
	return rec
}

var _ Store = (*MemoryStore)(nil)
