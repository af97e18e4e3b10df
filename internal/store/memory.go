package store

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/resilience"
)

// MemoryStore implements Store in process memory. Values are deep-copied on
// the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]model.ExecutionBatch
	leads   map[string]*model.EnrichedLead
	order   []string
	dlq     map[string]resilience.DLQEntry
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		batches: make(map[string]model.ExecutionBatch),
		leads:   make(map[string]*model.EnrichedLead),
		dlq:     make(map[string]resilience.DLQEntry),
	}
}

func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) CreateBatch(_ context.Context, b *model.ExecutionBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if _, ok := s.batches[b.ID]; ok {
		return eris.Errorf("memory: batch %s already exists", b.ID)
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	s.batches[b.ID] = *b
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, id string) (*model.ExecutionBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, notFound("batch", id)
	}
	return &b, nil
}

func (s *MemoryStore) UpdateBatch(_ context.Context, b *model.ExecutionBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[b.ID]; !ok {
		return notFound("batch", b.ID)
	}
	b.UpdatedAt = time.Now().UTC()
	s.batches[b.ID] = *b
	return nil
}

func (s *MemoryStore) ListBatches(_ context.Context, limit int) ([]model.ExecutionBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ExecutionBatch, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) InsertLeads(_ context.Context, leads []*model.EnrichedLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range leads {
		if _, ok := s.leads[l.ID]; ok {
			return eris.Errorf("memory: lead %s already exists", l.ID)
		}
	}
	for _, l := range leads {
		c, err := cloneLead(l)
		if err != nil {
			return err
		}
		s.leads[l.ID] = c
		s.order = append(s.order, l.ID)
	}
	return nil
}

func (s *MemoryStore) GetLead(_ context.Context, id string) (*model.EnrichedLead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leads[id]
	if !ok {
		return nil, notFound("lead", id)
	}
	return cloneLead(l)
}

func (s *MemoryStore) ListLeads(_ context.Context, filter LeadFilter) ([]*model.EnrichedLead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.EnrichedLead
	skipped := 0
	for _, id := range s.order {
		l := s.leads[id]
		if !matches(l, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		c, err := cloneLead(l)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		if len(out) >= limitOrDefault(filter.Limit) {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) CountLeads(_ context.Context, filter LeadFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.leads {
		if matches(l, filter) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) PatchLead(_ context.Context, id string, patch LeadPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return notFound("lead", id)
	}
	// Patch slices may be reused by the caller.
	c, err := clonePatch(patch)
	if err != nil {
		return err
	}
	c.Apply(l)
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) EnqueueDLQ(_ context.Context, entry resilience.DLQEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	s.dlq[entry.ID] = entry
	return nil
}

func (s *MemoryStore) ListDLQ(_ context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []resilience.DLQEntry
	for _, e := range s.dlq {
		if filter.ErrorType != "" && e.ErrorType != filter.ErrorType {
			continue
		}
		if filter.BatchID != "" && e.BatchID != filter.BatchID {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b resilience.DLQEntry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) RemoveDLQ(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dlq, id)
	return nil
}

func (s *MemoryStore) CountDLQ(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dlq), nil
}

func matches(l *model.EnrichedLead, f LeadFilter) bool {
	if f.BatchID != "" && l.BatchID != f.BatchID {
		return false
	}
	if f.LeadStage != "" && l.LeadStage != f.LeadStage {
		return false
	}
	if f.ExecutionStage != "" && l.Meta.ExecutionStage != f.ExecutionStage {
		return false
	}
	return true
}

func cloneLead(l *model.EnrichedLead) (*model.EnrichedLead, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, eris.Wrap(err, "memory: marshal lead")
	}
	var c model.EnrichedLead
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "memory: unmarshal lead")
	}
	return &c, nil
}

func clonePatch(p LeadPatch) (LeadPatch, error) {
	meta := p.Meta
	data, err := json.Marshal(p)
	if err != nil {
		return LeadPatch{}, eris.Wrap(err, "memory: marshal patch")
	}
	var c LeadPatch
	if err := json.Unmarshal(data, &c); err != nil {
		return LeadPatch{}, eris.Wrap(err, "memory: unmarshal patch")
	}
	if meta != nil {
		m := *meta
		c.Meta = &m
	}
	return c, nil
}
