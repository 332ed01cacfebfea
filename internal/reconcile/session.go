package reconcile

import (
	"context"
	"fmt"

	"affidamento/internal"
)

type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateAwaitingChoice SessionState = "awaiting_choice"
	StateResolved       SessionState = "resolved"
	StateCancelled      SessionState = "cancelled"
)

// Session holds the human choices for one match that needs input. It is
// stored with the quote and carries no lock on the registry record.
type Session struct {
	State        SessionState             `json:"state"`
	SupplierID   string                   `json:"supplierId"`
	Match        SupplierMatch            `json:"match"`
	Choices      map[internal.Field]Side  `json:"choices"`
	PersistNovel bool                     `json:"persistNovel"`
	Ambiguous    []internal.Field         `json:"ambiguous,omitempty"`
	Final        *internal.SupplierFields `json:"final,omitempty"`
}

func NewSession(match SupplierMatch) *Session {
	return &Session{
		State:        StateIdle,
		SupplierID:   match.MatchedID,
		Match:        match,
		Choices:      map[internal.Field]Side{},
		PersistNovel: true,
	}
}

// Open moves the session to awaiting_choice. Only registry matches that
// need input can be opened.
func (s *Session) Open() error {
	if s.State != StateIdle {
		return fmt.Errorf("open from %s: %w", s.State, ErrSessionState)
	}
	if !s.Match.IsFromDatabase || !s.Match.NeedsUserInput() {
		return fmt.Errorf("match needs no input: %w", ErrSessionState)
	}
	if s.SupplierID == "" {
		return ErrMissingSupplierID
	}
	s.State = StateAwaitingChoice
	return nil
}

// Choose records the side for a conflicting field. Choices for fields that
// are not in conflict are ignored and reported as false.
func (s *Session) Choose(field internal.Field, side Side) (bool, error) {
	if s.State != StateAwaitingChoice {
		return false, fmt.Errorf("choose in %s: %w", s.State, ErrSessionState)
	}
	if _, ok := s.conflict(field); !ok {
		s.Ambiguous = append(s.Ambiguous, field)
		return false, nil
	}
	if side != SideExtraction {
		side = SideRegistry
	}
	s.Choices[field] = side
	return true, nil
}

func (s *Session) SetPersistNovel(persist bool) error {
	if s.State != StateAwaitingChoice {
		return fmt.Errorf("set persist in %s: %w", s.State, ErrSessionState)
	}
	s.PersistNovel = persist
	return nil
}

func (s *Session) Conflicts() []Conflict {
	return s.Match.Conflicts()
}

func (s *Session) NovelData() []NovelDatum {
	return s.Match.NovelData()
}

func (s *Session) conflict(field internal.Field) (Conflict, bool) {
	for _, c := range s.Match.Conflicts() {
		if c.Field == field {
			return c, true
		}
	}
	return Conflict{}, false
}

func (s *Session) side(field internal.Field) Side {
	if side, ok := s.Choices[field]; ok {
		return side
	}
	return ConflictDefaultPolicy
}

// ResolvedFields is the set of values that Confirm writes to the registry.
func (s *Session) ResolvedFields() map[internal.Field]string {
	out := map[internal.Field]string{}
	for _, c := range s.Match.Conflicts() {
		out[c.Field] = c.Value(s.side(c.Field))
	}
	if s.PersistNovel {
		for _, n := range s.Match.NovelData() {
			out[n.Field] = n.Value
		}
	}
	return out
}

// Confirm persists the resolved fields and fixes the final record.
func (s *Session) Confirm(ctx context.Context, gateway *Gateway) (internal.SupplierFields, error) {
	if s.State != StateAwaitingChoice {
		return internal.SupplierFields{}, fmt.Errorf("confirm in %s: %w", s.State, ErrSessionState)
	}
	resolved := s.ResolvedFields()
	if err := gateway.ApplyResolution(ctx, s.SupplierID, resolved); err != nil {
		return internal.SupplierFields{}, err
	}

	final := s.Match.Merged.Clone()
	for _, c := range s.Match.Conflicts() {
		v := resolved[c.Field]
		final.Set(c.Field, &v)
	}
	if !s.PersistNovel {
		for _, n := range s.Match.NovelData() {
			final.Set(n.Field, nil)
		}
	}

	s.State = StateResolved
	s.Final = &final
	return final, nil
}

// Cancel closes the session without writing anything. The final record is
// the provisional merge.
func (s *Session) Cancel() (internal.SupplierFields, error) {
	if s.State == StateResolved || s.State == StateCancelled {
		return internal.SupplierFields{}, fmt.Errorf("cancel in %s: %w", s.State, ErrSessionState)
	}
	final := s.Match.Merged.Clone()
	s.State = StateCancelled
	s.Final = &final
	return final, nil
}
