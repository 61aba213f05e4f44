// Package store provides in-memory schedule.Repository implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/payment-schedule/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/CLI)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	contracts map[schedule.ContractID]schedule.Contract
	terms     map[schedule.ContractID][]schedule.PaymentTerm
}

var _ schedule.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		contracts: make(map[schedule.ContractID]schedule.Contract),
		terms:     make(map[schedule.ContractID][]schedule.PaymentTerm),
	}
}

// -----------------------------------------------------------------------------
// Contracts
// -----------------------------------------------------------------------------

func (m *Memory) GetContract(_ context.Context, id schedule.ContractID) (*schedule.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, schedule.ErrContractNotFound
	}
	return &c, nil
}

func (m *Memory) SaveContract(_ context.Context, c schedule.Contract) (schedule.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = schedule.ContractID(uuid.NewString())
	}
	if existing, ok := m.contracts[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.contracts[c.ID] = c
	return c, nil
}

func (m *Memory) ListContracts(_ context.Context) ([]schedule.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.Contract, 0, len(m.contracts))
	for _, c := range m.contracts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) IsContractCodeUnique(_ context.Context, code string, exclude schedule.ContractID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, c := range m.contracts {
		if id != exclude && strings.EqualFold(c.Code, code) {
			return false, nil
		}
	}
	return true, nil
}

// -----------------------------------------------------------------------------
// Schedules
// -----------------------------------------------------------------------------

func (m *Memory) GetPaymentSchedule(_ context.Context, contractID schedule.ContractID) ([]schedule.PaymentTerm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.contracts[contractID]; !ok {
		return nil, schedule.ErrContractNotFound
	}
	terms := m.terms[contractID]
	out := make([]schedule.PaymentTerm, len(terms))
	copy(out, terms)
	return out, nil
}

func (m *Memory) AddTerm(_ context.Context, contractID schedule.ContractID, term schedule.PaymentTerm) (schedule.PaymentTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[contractID]; !ok {
		return schedule.PaymentTerm{}, schedule.ErrContractNotFound
	}
	if term.ID == "" {
		term.ID = schedule.TermID(uuid.NewString())
	}
	m.terms[contractID] = append(m.terms[contractID], term)
	return term, nil
}

func (m *Memory) UpdateTerm(_ context.Context, contractID schedule.ContractID, term schedule.PaymentTerm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.indexLocked(contractID, term.ID)
	if err != nil {
		return err
	}
	m.terms[contractID][idx] = term
	return nil
}

func (m *Memory) DeleteTerm(_ context.Context, contractID schedule.ContractID, termID schedule.TermID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.indexLocked(contractID, termID)
	if err != nil {
		return err
	}
	terms := m.terms[contractID]
	m.terms[contractID] = append(terms[:idx:idx], terms[idx+1:]...)
	return nil
}

func (m *Memory) UpdateTermStatus(_ context.Context, contractID schedule.ContractID, termID schedule.TermID, u schedule.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.indexLocked(contractID, termID)
	if err != nil {
		return err
	}
	t := &m.terms[contractID][idx]
	t.Status = u.Status
	t.PaidDate = u.PaidDate
	t.PaidAmount = u.PaidAmount
	t.Notes = u.Notes
	return nil
}

func (m *Memory) ReplaceSchedule(_ context.Context, contractID schedule.ContractID, terms []schedule.PaymentTerm) ([]schedule.PaymentTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[contractID]; !ok {
		return nil, schedule.ErrContractNotFound
	}
	if err := schedule.CheckReplacementIDs(m.terms[contractID], terms); err != nil {
		return nil, err
	}
	out := make([]schedule.PaymentTerm, len(terms))
	copy(out, terms)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = schedule.TermID(uuid.NewString())
		}
	}
	m.terms[contractID] = out

	ret := make([]schedule.PaymentTerm, len(out))
	copy(ret, out)
	return ret, nil
}

func (m *Memory) indexLocked(contractID schedule.ContractID, termID schedule.TermID) (int, error) {
	if _, ok := m.contracts[contractID]; !ok {
		return -1, schedule.ErrContractNotFound
	}
	idx := schedule.IndexOf(m.terms[contractID], termID)
	if idx < 0 {
		return -1, schedule.ErrTermNotFound
	}
	return idx, nil
}
