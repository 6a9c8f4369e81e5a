// Package memstore is an in-memory store.Store used by tests and local
// development. It honors the same contract as the SQL drivers, including
// atomic increments under concurrent callers.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]map[string]*model.Participant
	rosters map[string][]string
}

// New returns an empty in-memory store.
func New() store.Store {
	return &memStore{
		records: make(map[string]map[string]*model.Participant),
		rosters: make(map[string][]string),
	}
}

func (s *memStore) Participants() store.Participants { return &participants{s: s} }
func (s *memStore) Rosters() store.Rosters           { return &rosters{s: s} }

func (s *memStore) Ping(ctx context.Context) error { return ctx.Err() }
func (s *memStore) Close() error                   { return nil }

func (s *memStore) partition(name string) map[string]*model.Participant {
	p, ok := s.records[name]
	if !ok {
		p = make(map[string]*model.Participant)
		s.records[name] = p
	}
	return p
}

type participants struct{ s *memStore }

func (p *participants) Get(ctx context.Context, partition, email string) (*model.Participant, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	rec, ok := p.s.partition(partition)[email]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (p *participants) EnsurePresent(ctx context.Context, partition, email string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	part := p.s.partition(partition)
	if _, ok := part[email]; !ok {
		part[email] = &model.Participant{Email: email}
	}
	return nil
}

func (p *participants) SetDisplayName(ctx context.Context, partition, email, displayName string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	part := p.s.partition(partition)
	rec, ok := part[email]
	if !ok {
		rec = &model.Participant{Email: email}
		part[email] = rec
	}
	rec.DisplayName = displayName
	return nil
}

func (p *participants) IncrementWeight(ctx context.Context, partition, email string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	part := p.s.partition(partition)
	rec, ok := part[email]
	if !ok {
		rec = &model.Participant{Email: email}
		part[email] = rec
	}
	rec.Weight++
	return nil
}

func (p *participants) Weights(ctx context.Context, partition string, emails []string) (map[string]int64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	part := p.s.partition(partition)
	out := make(map[string]int64, len(emails))
	for _, e := range emails {
		if rec, ok := part[e]; ok {
			out[e] = rec.Weight
		}
	}
	return out, nil
}

func (p *participants) List(ctx context.Context, partition string) ([]*model.Participant, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	part := p.s.partition(partition)
	out := make([]*model.Participant, 0, len(part))
	for _, rec := range part {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (p *participants) Delete(ctx context.Context, partition, email string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	delete(p.s.partition(partition), email)
	return nil
}

type rosters struct{ s *memStore }

func (r *rosters) Get(ctx context.Context, partition string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	emails, ok := r.s.rosters[partition]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := make([]string, len(emails))
	copy(out, emails)
	return out, nil
}

func (r *rosters) Put(ctx context.Context, partition string, emails []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := make([]string, len(emails))
	copy(cp, emails)
	r.s.rosters[partition] = cp
	return nil
}
