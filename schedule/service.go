/*
service.go - Schedule lifecycle over a persistence collaborator

PURPOSE:
  Orchestrates load -> edit -> validate -> persist. The pure engine decides
  what is correct; the Service decides whether a write may happen:

    SubmitSchedule    whole schedule; blocked by any validation error
    AddTerm           appends a default term; always allowed
    UpdateTerm        blocked by inline errors on the edited row
    DeleteTerm        blocked by the contract-document refusal
    UpdateTermStatus  blocked by status lifecycle guards
    MoveTerm          reorder + renumber
    SweepOverdue      marks past-due terms overdue across all contracts

  Every mutating call also returns the fresh ValidationResult of the whole
  schedule, so callers never show a stale result.

EXAMPLE:
  svc := schedule.NewService(store, schedule.DefaultRules())
  terms, result, err := svc.SubmitSchedule(ctx, "c-1", terms, schedule.ModeCreate)
  var rejected *schedule.ScheduleRejectedError
  if errors.As(err, &rejected) {
      // rejected.Result.Errors
  }
*/
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Service struct {
	Repo Repository
	Now  func() time.Time

	mu    sync.RWMutex
	rules Rules
}

// NewService creates a service with the given repository and rules.
func NewService(repo Repository, rules Rules) *Service {
	return &Service{Repo: repo, Now: time.Now, rules: rules}
}

// Rules returns the active rule set.
func (s *Service) Rules() Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// SetRules swaps the active rule set after validating it.
func (s *Service) SetRules(r Rules) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = r
	return nil
}

// Validator returns a validator bound to the active rules and clock.
func (s *Service) Validator() *Validator {
	return &Validator{Rules: s.Rules(), Now: s.Now}
}

func (s *Service) today() Date {
	if s.Now == nil {
		return Today()
	}
	return DateOf(s.Now())
}

func (s *Service) load(ctx context.Context, id ContractID) (*Contract, []PaymentTerm, error) {
	c, err := s.Repo.GetContract(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	terms, err := s.Repo.GetPaymentSchedule(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	return c, DerivePercentages(terms, c.Amount), nil
}

// Schedule loads a contract's schedule and validates it.
func (s *Service) Schedule(ctx context.Context, id ContractID, mode Mode) (*Contract, []PaymentTerm, ValidationResult, error) {
	c, terms, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, ValidationResult{}, err
	}
	return c, terms, s.Validator().ValidateSchedule(c.Context(mode), terms), nil
}

// SubmitSchedule replaces the stored schedule if it has no blocking errors.
func (s *Service) SubmitSchedule(ctx context.Context, id ContractID, terms []PaymentTerm, mode Mode) ([]PaymentTerm, ValidationResult, error) {
	c, err := s.Repo.GetContract(ctx, id)
	if err != nil {
		return nil, ValidationResult{}, err
	}
	current, err := s.Repo.GetPaymentSchedule(ctx, id)
	if err != nil {
		return nil, ValidationResult{}, err
	}
	if err := CheckReplacementIDs(current, terms); err != nil {
		return nil, ValidationResult{}, err
	}
	terms = DerivePercentages(terms, c.Amount)

	result := s.Validator().ValidateSchedule(c.Context(mode), terms)
	if !result.IsValid() {
		return nil, result, &ScheduleRejectedError{Result: result}
	}

	saved, err := s.Repo.ReplaceSchedule(ctx, id, terms)
	if err != nil {
		return nil, result, fmt.Errorf("failed to save schedule: %w", err)
	}
	return saved, result, nil
}

// AddTerm appends a system-suggested term.
func (s *Service) AddTerm(ctx context.Context, id ContractID) (PaymentTerm, ValidationResult, error) {
	c, terms, err := s.load(ctx, id)
	if err != nil {
		return PaymentTerm{}, ValidationResult{}, err
	}

	next := AddDefaultTerm(terms, c.Amount, c.StartDate, s.today())
	added, err := s.Repo.AddTerm(ctx, id, next[len(next)-1])
	if err != nil {
		return PaymentTerm{}, ValidationResult{}, fmt.Errorf("failed to add term: %w", err)
	}
	next[len(next)-1] = added

	return added, s.Validator().ValidateSchedule(c.Context(ModeEdit), next), nil
}

// UpdateTerm applies patch to one term. Inline errors on the edited row
// reject the write with *TermRejectedError.
func (s *Service) UpdateTerm(ctx context.Context, id ContractID, termID TermID, patch TermPatch, mode Mode) (PaymentTerm, ValidationResult, error) {
	c, terms, err := s.load(ctx, id)
	if err != nil {
		return PaymentTerm{}, ValidationResult{}, err
	}
	idx := IndexOf(terms, termID)
	if idx < 0 {
		return PaymentTerm{}, ValidationResult{}, ErrTermNotFound
	}

	next, err := EditTerm(terms, idx, patch, c.Amount)
	if err != nil {
		return PaymentTerm{}, ValidationResult{}, err
	}

	v := s.Validator()
	cctx := c.Context(mode)
	edited := next[idx]
	if errs := v.ValidateSingleTerm(cctx, next, idx, edited.DueDate, edited.Amount); len(errs) > 0 {
		return PaymentTerm{}, v.ValidateSchedule(cctx, next), &TermRejectedError{Index: idx, Errors: errs}
	}

	if err := s.Repo.UpdateTerm(ctx, id, edited); err != nil {
		return PaymentTerm{}, ValidationResult{}, fmt.Errorf("failed to update term: %w", err)
	}
	return edited, v.ValidateSchedule(cctx, next), nil
}

// DeleteTerm removes one term unless the delete policy refuses it.
func (s *Service) DeleteTerm(ctx context.Context, id ContractID, termID TermID) (ValidationResult, error) {
	c, terms, err := s.load(ctx, id)
	if err != nil {
		return ValidationResult{}, err
	}
	idx := IndexOf(terms, termID)
	if idx < 0 {
		return ValidationResult{}, ErrTermNotFound
	}

	rules := s.Rules()
	next, err := DeleteTerm(terms, idx, rules)
	if err != nil {
		return ValidationResult{}, err
	}
	if err := s.Repo.DeleteTerm(ctx, id, termID); err != nil {
		return ValidationResult{}, fmt.Errorf("failed to delete term: %w", err)
	}
	return s.Validator().ValidateSchedule(c.Context(ModeEdit), next), nil
}

// UpdateTermStatus runs the status lifecycle for one term and persists it.
func (s *Service) UpdateTermStatus(ctx context.Context, id ContractID, termID TermID, to PaymentStatus, in TransitionInput) (PaymentTerm, error) {
	terms, err := s.Repo.GetPaymentSchedule(ctx, id)
	if err != nil {
		return PaymentTerm{}, err
	}
	idx := IndexOf(terms, termID)
	if idx < 0 {
		return PaymentTerm{}, ErrTermNotFound
	}

	current := terms[idx]
	next, errs := TransitionStatus(current, to, in)
	if len(errs) > 0 {
		return current, &TransitionError{From: current.Status, To: to, Errors: errs}
	}

	err = s.Repo.UpdateTermStatus(ctx, id, termID, StatusUpdate{
		Status:     next.Status,
		PaidDate:   next.PaidDate,
		PaidAmount: next.PaidAmount,
		Notes:      next.Notes,
	})
	if err != nil {
		return PaymentTerm{}, fmt.Errorf("failed to update status: %w", err)
	}
	return next, nil
}

// MoveTerm reorders the schedule and renumbers it.
func (s *Service) MoveTerm(ctx context.Context, id ContractID, from, to int) ([]PaymentTerm, ValidationResult, error) {
	c, terms, err := s.load(ctx, id)
	if err != nil {
		return nil, ValidationResult{}, err
	}
	moved, err := MoveTerm(terms, from, to)
	if err != nil {
		return nil, ValidationResult{}, err
	}
	moved = Renumber(moved)

	saved, err := s.Repo.ReplaceSchedule(ctx, id, moved)
	if err != nil {
		return nil, ValidationResult{}, fmt.Errorf("failed to reorder schedule: %w", err)
	}
	return saved, s.Validator().ValidateSchedule(c.Context(ModeEdit), saved), nil
}

// SweepOverdue marks past-due unpaid and invoiced terms overdue across all
// contracts. Returns the number of terms changed.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	contracts, err := s.Repo.ListContracts(ctx)
	if err != nil {
		return 0, err
	}

	today := s.today()
	total := 0
	for _, c := range contracts {
		terms, err := s.Repo.GetPaymentSchedule(ctx, c.ID)
		if err != nil {
			return total, fmt.Errorf("contract %s: %w", c.ID, err)
		}
		marked, n := MarkOverdue(terms, today)
		if n == 0 {
			continue
		}
		for i, t := range marked {
			if t.Status == terms[i].Status {
				continue
			}
			err := s.Repo.UpdateTermStatus(ctx, c.ID, t.ID, StatusUpdate{
				Status: t.Status,
				Notes:  t.Notes,
			})
			if err != nil {
				return total, fmt.Errorf("contract %s term %s: %w", c.ID, t.ID, err)
			}
			total++
		}
	}
	return total, nil
}
