package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Arbitrator - профиль арбитра.
type Arbitrator struct {
	Address          uuid.UUID
	ProfileRef       string
	Status           valueobject.ArbitratorStatus
	RegisteredAt     time.Time
	LastStatusChange time.Time
}

// Activate переводит профиль в Active, создавая его при первой регистрации.
func (a *Arbitrator) Activate(profileRef string, now time.Time) error {
	if a.Status == valueobject.ArbitratorStatusActive {
		return apperror.ErrArbitratorAlreadyActive
	}
	if a.RegisteredAt.IsZero() {
		a.RegisteredAt = now
	}
	a.ProfileRef = profileRef
	a.Status = valueobject.ArbitratorStatusActive
	a.LastStatusChange = now
	return nil
}

// Deactivate переводит профиль в Inactive.
func (a *Arbitrator) Deactivate(now time.Time) error {
	if a.Status != valueobject.ArbitratorStatusActive {
		return apperror.ErrArbitratorNotActive
	}
	a.Status = valueobject.ArbitratorStatusInactive
	a.LastStatusChange = now
	return nil
}

func (a *Arbitrator) IsActive() bool {
	return a.Status == valueobject.ArbitratorStatusActive
}

// ActiveSet - упорядоченный набор активных арбитров с удалением через swap-remove.
// Порядок элементов не имеет смысла и меняется после удаления.
type ActiveSet struct {
	members []uuid.UUID
	index   map[uuid.UUID]int
}

// NewActiveSet строит набор из сохранённой последовательности.
func NewActiveSet(members []uuid.UUID) *ActiveSet {
	s := &ActiveSet{
		members: make([]uuid.UUID, 0, len(members)),
		index:   make(map[uuid.UUID]int, len(members)),
	}
	for _, m := range members {
		s.Add(m)
	}
	return s
}

// Add добавляет адрес; возвращает false, если он уже есть.
func (s *ActiveSet) Add(addr uuid.UUID) bool {
	if _, ok := s.index[addr]; ok {
		return false
	}
	s.index[addr] = len(s.members)
	s.members = append(s.members, addr)
	return true
}

// Remove удаляет адрес, ставя на его место последний элемент.
func (s *ActiveSet) Remove(addr uuid.UUID) bool {
	pos, ok := s.index[addr]
	if !ok {
		return false
	}
	last := len(s.members) - 1
	moved := s.members[last]
	s.members[pos] = moved
	s.index[moved] = pos
	s.members = s.members[:last]
	delete(s.index, addr)
	return true
}

func (s *ActiveSet) Contains(addr uuid.UUID) bool {
	_, ok := s.index[addr]
	return ok
}

func (s *ActiveSet) Len() int {
	return len(s.members)
}

// At возвращает адрес по позиции.
func (s *ActiveSet) At(i int) uuid.UUID {
	return s.members[i]
}

// Members возвращает копию последовательности.
func (s *ActiveSet) Members() []uuid.UUID {
	return append([]uuid.UUID(nil), s.members...)
}
