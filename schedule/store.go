/*
store.go - Persistence interfaces for contracts and payment schedules

PURPOSE:
  The engine itself never persists anything. These interfaces describe the
  persistence collaborator it is wired to: the Service loads a snapshot,
  runs editor and validator functions over it, and only writes back when
  validation allows.

KEY INTERFACES:
  ScheduleStore: getPaymentSchedule plus term mutations
  ContractStore: contract records and code uniqueness
  Repository:    both, what the Service needs

CONCURRENCY:
  The engine validates whatever snapshot it is given. Serializing concurrent
  writers to one schedule is the store's job (the SQLite store holds a
  write lock per call).

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - schedule/store/memory.go: In-memory for tests and the CLI
*/
package schedule

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// StatusUpdate is the payload of UpdateTermStatus.
type StatusUpdate struct {
	Status     PaymentStatus
	PaidDate   string
	PaidAmount decimal.Decimal
	Notes      string
}

// ScheduleStore persists the ordered term list of a contract.
type ScheduleStore interface {
	// GetPaymentSchedule returns the terms of a contract in schedule order.
	GetPaymentSchedule(ctx context.Context, contractID ContractID) ([]PaymentTerm, error)

	// AddTerm appends a term, assigning an ID if it has none.
	AddTerm(ctx context.Context, contractID ContractID, term PaymentTerm) (PaymentTerm, error)

	// UpdateTerm overwrites a term identified by term.ID.
	UpdateTerm(ctx context.Context, contractID ContractID, term PaymentTerm) error

	// DeleteTerm removes a term. Returns ErrTermNotFound if absent.
	DeleteTerm(ctx context.Context, contractID ContractID, termID TermID) error

	// UpdateTermStatus writes the status fields of one term.
	UpdateTermStatus(ctx context.Context, contractID ContractID, termID TermID, update StatusUpdate) error

	// ReplaceSchedule atomically replaces every term of a contract and
	// returns them with IDs assigned.
	ReplaceSchedule(ctx context.Context, contractID ContractID, terms []PaymentTerm) ([]PaymentTerm, error)
}

// ContractStore persists contract records.
type ContractStore interface {
	// GetContract returns ErrContractNotFound if the contract doesn't exist.
	GetContract(ctx context.Context, id ContractID) (*Contract, error)

	// SaveContract inserts or updates, assigning an ID if it has none.
	SaveContract(ctx context.Context, c Contract) (Contract, error)

	ListContracts(ctx context.Context) ([]Contract, error)

	// IsContractCodeUnique reports whether no contract other than exclude uses code.
	IsContractCodeUnique(ctx context.Context, code string, exclude ContractID) (bool, error)
}

// Repository is everything the Service needs.
type Repository interface {
	ScheduleStore
	ContractStore
}

// CheckReplacementIDs verifies the IDs of a replacement schedule against the
// current one. Terms without an ID are new; every other ID must appear once
// and already belong to the contract.
func CheckReplacementIDs(current, next []PaymentTerm) error {
	known := make(map[TermID]bool, len(current))
	for _, t := range current {
		known[t.ID] = true
	}
	seen := make(map[TermID]bool, len(next))
	for i, t := range next {
		if t.ID == "" {
			continue
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: term %d repeats id %s", ErrInvalidTermID, i+1, t.ID)
		}
		if !known[t.ID] {
			return fmt.Errorf("%w: term %d has id %s, which is not on this contract", ErrInvalidTermID, i+1, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}
