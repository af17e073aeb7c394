// Package memory is an in-process implementation of repository.Store used
// when no database is configured and by tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/repository"
)

type state struct {
	tickets  map[string]domain.Ticket
	order    []string
	comments map[string][]domain.Comment
	timeline map[string][]domain.TimelineEntry
}

// Store keeps every row in memory. Transactions are serialized by a
// store-wide writer lock and stage their writes until commit.
type Store struct {
	mu     sync.RWMutex
	data   state
	closed bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: state{
		tickets:  map[string]domain.Ticket{},
		comments: map[string][]domain.Comment{},
		timeline: map[string][]domain.TimelineEntry{},
	}}
}

var errClosed = errors.New("memory store closed")

func (s *Store) Repositories() repository.Repositories {
	v := &view{store: s}
	return repository.Repositories{Tickets: ticketRepo{v}, Comments: commentRepo{v}, Timeline: timelineRepo{v}}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &txState{
		tickets:  map[string]domain.Ticket{},
		comments: map[string][]domain.Comment{},
		timeline: map[string][]domain.TimelineEntry{},
	}
	v := &view{store: s, tx: tx}
	if err := fn(ctx, repository.Repositories{Tickets: ticketRepo{v}, Comments: commentRepo{v}, Timeline: timelineRepo{v}}); err != nil {
		return err
	}
	s.apply(tx)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return ctx.Err()
}

func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// DeleteTicket removes a ticket together with its comments and timeline,
// mirroring the ON DELETE CASCADE of the relational schema.
func (s *Store) DeleteTicket(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.tickets, id)
	delete(s.data.comments, id)
	delete(s.data.timeline, id)
	for i, tid := range s.data.order {
		if tid == id {
			s.data.order = append(s.data.order[:i:i], s.data.order[i+1:]...)
			break
		}
	}
}

// txState holds writes staged by an open transaction.
type txState struct {
	tickets    map[string]domain.Ticket
	newTickets []string
	comments   map[string][]domain.Comment
	timeline   map[string][]domain.TimelineEntry
}

func (s *Store) apply(tx *txState) {
	for id, t := range tx.tickets {
		s.data.tickets[id] = t
	}
	s.data.order = append(s.data.order, tx.newTickets...)
	for id, cs := range tx.comments {
		s.data.comments[id] = append(s.data.comments[id], cs...)
	}
	for id, es := range tx.timeline {
		s.data.timeline[id] = append(s.data.timeline[id], es...)
	}
}

// view reads committed state overlaid with staged writes. When tx is nil
// the view takes the read lock itself.
type view struct {
	store *Store
	tx    *txState
}

func (v *view) rlock() func() {
	if v.tx != nil {
		return func() {}
	}
	v.store.mu.RLock()
	return v.store.mu.RUnlock
}

func (v *view) ticket(id string) (domain.Ticket, bool) {
	if v.tx != nil {
		if t, ok := v.tx.tickets[id]; ok {
			return t, true
		}
	}
	t, ok := v.store.data.tickets[id]
	return t, ok
}

func (v *view) ticketIDs() []string {
	ids := append([]string{}, v.store.data.order...)
	if v.tx != nil {
		ids = append(ids, v.tx.newTickets...)
	}
	return ids
}

func (v *view) commentsOf(id string) []domain.Comment {
	out := append([]domain.Comment{}, v.store.data.comments[id]...)
	if v.tx != nil {
		out = append(out, v.tx.comments[id]...)
	}
	return out
}

func (v *view) timelineOf(id string) []domain.TimelineEntry {
	out := append([]domain.TimelineEntry{}, v.store.data.timeline[id]...)
	if v.tx != nil {
		out = append(out, v.tx.timeline[id]...)
	}
	return out
}

func (v *view) write(fn func(tx *txState)) error {
	if v.tx != nil {
		fn(v.tx)
		return nil
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if v.store.closed {
		return errClosed
	}
	tx := &txState{
		tickets:  map[string]domain.Ticket{},
		comments: map[string][]domain.Comment{},
		timeline: map[string][]domain.TimelineEntry{},
	}
	fn(tx)
	v.store.apply(tx)
	return nil
}

type ticketRepo struct{ v *view }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	unlock := r.v.rlock()
	_, exists := r.v.ticket(ticket.ID)
	unlock()
	if exists {
		return errors.New("duplicate ticket id")
	}
	return r.v.write(func(tx *txState) {
		tx.tickets[ticket.ID] = cloneTicket(*ticket)
		tx.newTickets = append(tx.newTickets, ticket.ID)
	})
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	defer r.v.rlock()()
	if r.v.store.closed {
		return nil, errClosed
	}
	t, ok := r.v.ticket(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneTicket(t)
	return &out, nil
}

// GetForUpdate needs no extra locking: the transaction already holds the
// store-wide writer lock.
func (r ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r ticketRepo) UpdateVersioned(_ context.Context, ticket *domain.Ticket, expectedVersion int) error {
	unlock := r.v.rlock()
	current, ok := r.v.ticket(ticket.ID)
	unlock()
	if !ok || current.Version != expectedVersion {
		return repository.ErrVersionMismatch
	}
	return r.v.write(func(tx *txState) {
		tx.tickets[ticket.ID] = cloneTicket(*ticket)
	})
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	filter = filter.Normalize()
	defer r.v.rlock()()
	if r.v.store.closed {
		return nil, errClosed
	}

	matched := []domain.Ticket{}
	for _, id := range r.v.ticketIDs() {
		t, ok := r.v.ticket(id)
		if !ok {
			continue
		}
		if !filter.Match(t, latestBody(r.v.commentsOf(id))) {
			continue
		}
		matched = append(matched, cloneTicket(t))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.Offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

// latestBody returns the body of the comment with the greatest created_at;
// on ties the later-inserted comment wins.
func latestBody(comments []domain.Comment) string {
	if len(comments) == 0 {
		return ""
	}
	latest := comments[0]
	for _, c := range comments[1:] {
		if !c.CreatedAt.Before(latest.CreatedAt) {
			latest = c
		}
	}
	return latest.Body
}

type commentRepo struct{ v *view }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	unlock := r.v.rlock()
	_, ok := r.v.ticket(comment.TicketID)
	unlock()
	if !ok {
		return errors.New("comment references unknown ticket")
	}
	c := *comment
	c.ParentID = cloneString(comment.ParentID)
	return r.v.write(func(tx *txState) {
		tx.comments[c.TicketID] = append(tx.comments[c.TicketID], c)
	})
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	defer r.v.rlock()()
	if r.v.store.closed {
		return nil, errClosed
	}
	comments := r.v.commentsOf(ticketID)
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

type timelineRepo struct{ v *view }

func (r timelineRepo) Append(_ context.Context, entry *domain.TimelineEntry) error {
	e := *entry
	return r.v.write(func(tx *txState) {
		tx.timeline[e.TicketID] = append(tx.timeline[e.TicketID], e)
	})
}

func (r timelineRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	defer r.v.rlock()()
	if r.v.store.closed {
		return nil, errClosed
	}
	entries := r.v.timelineOf(ticketID)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.Description = cloneString(t.Description)
	t.AssignTo = cloneString(t.AssignTo)
	return t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
