package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store is the identity lookup contract used by scheduling.
type Store interface {
	FindPatientByName(ctx context.Context, lastName, firstName string) (*Patient, error)
	PatientByID(ctx context.Context, id int64) (*Patient, error)
	PatientsByIDs(ctx context.Context, ids []int64) (map[int64]*Patient, error)
	ProfessionalByID(ctx context.Context, id int64) (*Professional, error)
	ProfessionalsByIDs(ctx context.Context, ids []int64) (map[int64]*Professional, error)
	// ProfessionalsBySpecialty matches the specialty exactly, ordered by id.
	ProfessionalsBySpecialty(ctx context.Context, specialty string) ([]Professional, error)
	// Professionals returns every professional ordered by id.
	Professionals(ctx context.Context) ([]Professional, error)
}

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	patients      map[int64]Patient
	professionals map[int64]Professional
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:      make(map[int64]Patient),
		professionals: make(map[int64]Professional),
	}
}

// PutPatient inserts or replaces a patient.
func (s *MemoryStore) PutPatient(p Patient) {
	p.Role = RolePatient
	s.mu.Lock()
	s.patients[p.ID] = p
	s.mu.Unlock()
}

// PutProfessional inserts or replaces a professional.
func (s *MemoryStore) PutProfessional(p Professional) {
	p.Role = RoleProfessional
	s.mu.Lock()
	s.professionals[p.ID] = p
	s.mu.Unlock()
}

func (s *MemoryStore) FindPatientByName(ctx context.Context, lastName, firstName string) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var match *Patient
	for _, p := range s.patients {
		if !strings.EqualFold(p.LastName, strings.TrimSpace(lastName)) ||
			!strings.EqualFold(p.FirstName, strings.TrimSpace(firstName)) {
			continue
		}
		// Lowest id wins when names collide, matching the SQL store.
		if match == nil || p.ID < match.ID {
			cp := p
			match = &cp
		}
	}
	if match == nil {
		return nil, ErrPatientNotFound
	}
	return match, nil
}

func (s *MemoryStore) PatientByID(ctx context.Context, id int64) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (s *MemoryStore) PatientsByIDs(ctx context.Context, ids []int64) (map[int64]*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]*Patient, len(ids))
	for _, id := range ids {
		if p, ok := s.patients[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (s *MemoryStore) ProfessionalByID(ctx context.Context, id int64) (*Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ProfessionalsByIDs(ctx context.Context, ids []int64) (map[int64]*Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]*Professional, len(ids))
	for _, id := range ids {
		if p, ok := s.professionals[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (s *MemoryStore) ProfessionalsBySpecialty(ctx context.Context, specialty string) ([]Professional, error) {
	all, _ := s.Professionals(ctx)
	out := all[:0]
	for _, p := range all {
		if p.Specialty == specialty {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) Professionals(ctx context.Context) ([]Professional, error) {
	s.mu.RLock()
	out := make([]Professional, 0, len(s.professionals))
	for _, p := range s.professionals {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
