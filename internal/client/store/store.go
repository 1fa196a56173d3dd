// Package store holds the in-app notification state of one recipient.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abytech-hub/notification-core/internal/domain"
)

// NotificationAPI is the notification backend as the store consumes it.
type NotificationAPI interface {
	List(ctx context.Context, q domain.NotificationQuery) (*domain.NotificationPage, error)
	MarkAsRead(ctx context.Context, notificationID string) error
	MarkAllAsRead(ctx context.Context) error
	Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error)
}

// Notifier receives badge signals; *badge.Notifier satisfies it.
type Notifier interface {
	UpdateBadge(ctx context.Context, count int)
	NotificationRead(ctx context.Context)
}

type Pagination struct {
	Page               int    `json:"page"`
	Limit              int    `json:"limit"`
	Search             string `json:"search"`
	TotalPages         int    `json:"totalPages"`
	TotalNotifications int    `json:"totalNotifications"`
}

func (p Pagination) Query() domain.NotificationQuery {
	return domain.NotificationQuery{Page: p.Page, Limit: p.Limit, Search: p.Search}
}

// Snapshot is a consistent copy of the store handed to listeners.
type Snapshot struct {
	Recipient     *domain.Recipient
	Notifications []domain.Notification
	Pagination    Pagination
	UnreadCount   int
	Loading       bool
	Err           error
}

// Store keeps notification content and read state separately. Read state is a
// single map of notification id to recipient key to read flag; the flat and
// nested views returned to callers are both derived from it.
type Store struct {
	api      NotificationAPI
	notifier Notifier

	mu        sync.Mutex
	recipient *domain.Recipient
	order     []string
	items     map[string]domain.Notification
	read      map[string]map[string]bool
	page      Pagination
	err       error
	inFlight  int
	seq       uint64

	listenerSeq int
	listeners   map[int]func(Snapshot)
}

// New returns an unbound store. notifier may be nil.
func New(api NotificationAPI, notifier Notifier) *Store {
	return &Store{
		api:       api,
		notifier:  notifier,
		items:     map[string]domain.Notification{},
		read:      map[string]map[string]bool{},
		page:      Pagination{Page: 1, Limit: domain.DefaultPageLimit},
		listeners: map[int]func(Snapshot){},
	}
}

// SetRecipient binds the store. Switching to another recipient drops the list
// and the query; the first bind keeps a query prepared before it.
func (s *Store) SetRecipient(r domain.Recipient) {
	s.mu.Lock()
	if s.recipient != nil && *s.recipient == r {
		s.mu.Unlock()
		return
	}
	s.resetLocked(s.recipient == nil)
	rc := r
	s.recipient = &rc
	s.mu.Unlock()
	s.changed(context.Background())
}

// ClearRecipient is the logout path. Responses to calls still in flight are discarded.
func (s *Store) ClearRecipient() {
	s.mu.Lock()
	s.resetLocked(false)
	s.recipient = nil
	s.mu.Unlock()
	s.changed(context.Background())
}

func (s *Store) resetLocked(keepQuery bool) {
	s.order = nil
	s.items = map[string]domain.Notification{}
	s.read = map[string]map[string]bool{}
	if keepQuery {
		s.page = Pagination{Page: s.page.Page, Limit: s.page.Limit, Search: s.page.Search}
	} else {
		s.page = Pagination{Page: 1, Limit: s.page.Limit}
	}
	s.err = nil
	s.seq++
}

// FetchNotifications replaces the list with the page selected by Pagination.
// Without a recipient it logs and returns nil. When fetches overlap only the
// most recently issued one is applied.
func (s *Store) FetchNotifications(ctx context.Context) error {
	s.mu.Lock()
	if s.recipient == nil {
		s.mu.Unlock()
		slog.Warn("fetch notifications skipped: no recipient set")
		return nil
	}
	s.seq++
	seq := s.seq
	q := s.page.Query()
	s.inFlight++
	s.mu.Unlock()
	s.changed(ctx)

	page, err := s.api.List(ctx, q)

	s.mu.Lock()
	s.inFlight--
	if seq != s.seq {
		s.mu.Unlock()
		s.changed(ctx)
		return nil
	}
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.changed(ctx)
		return err
	}
	s.err = nil
	s.order = s.order[:0]
	s.items = make(map[string]domain.Notification, len(page.Data))
	s.read = make(map[string]map[string]bool, len(page.Data))
	for _, n := range page.Data {
		if _, dup := s.items[n.NotificationID]; dup {
			continue
		}
		s.ingestLocked(n)
		s.order = append(s.order, n.NotificationID)
	}
	s.page.TotalPages = page.Meta.TotalPages
	s.page.TotalNotifications = page.Meta.Total
	s.mu.Unlock()
	s.changed(ctx)
	return nil
}

// ingestLocked records n's content and read state. A recipient is unread if
// either the nested entry or the flat field says so.
func (s *Store) ingestLocked(n domain.Notification) {
	state := make(map[string]bool, len(n.Recipients)+1)
	for _, nr := range n.Recipients {
		state[nr.Recipient().Key()] = nr.Read
	}
	if s.recipient != nil {
		key := s.recipient.Key()
		nested, hasNested := state[key]
		switch {
		case n.Read != nil && hasNested:
			state[key] = nested && *n.Read
		case n.Read != nil:
			state[key] = *n.Read
		case !hasNested:
			state[key] = false
		}
	}
	n.Recipients = append([]domain.NotificationRecipient(nil), n.Recipients...)
	s.items[n.NotificationID] = n
	s.read[n.NotificationID] = state
}

// viewLocked derives the flat and nested shapes for the current recipient.
func (s *Store) viewLocked(id string) domain.Notification {
	n := s.items[id]
	state := s.read[id]
	out := n
	out.Recipients = make([]domain.NotificationRecipient, len(n.Recipients))
	for i, nr := range n.Recipients {
		nr.Read = state[nr.Recipient().Key()]
		out.Recipients[i] = nr
	}
	out.Read, out.Link = nil, nil
	if s.recipient != nil {
		r := state[s.recipient.Key()]
		out.Read = &r
		out.Link = n.Link
		if i := n.RecipientIndex(*s.recipient); i >= 0 && n.Recipients[i].Link != nil {
			out.Link = n.Recipients[i].Link
		}
	}
	return out
}

func (s *Store) isUnreadLocked(id string) bool {
	if s.recipient == nil {
		return false
	}
	read, ok := s.read[id][s.recipient.Key()]
	return ok && !read
}

func (s *Store) filterLocked(unread bool) []domain.Notification {
	out := []domain.Notification{}
	for _, id := range s.order {
		if s.isUnreadLocked(id) == unread {
			out = append(out, s.viewLocked(id))
		}
	}
	return out
}

func (s *Store) unreadCountLocked() int {
	n := 0
	for _, id := range s.order {
		if s.isUnreadLocked(id) {
			n++
		}
	}
	return n
}

// setReadLocked marks id read for the current recipient and reports whether it changed.
func (s *Store) setReadLocked(id string) bool {
	state, ok := s.read[id]
	if !ok || s.recipient == nil {
		return false
	}
	key := s.recipient.Key()
	if state[key] {
		return false
	}
	state[key] = true
	return true
}

// MarkAsRead applies the read state locally before calling the backend.
// A backend failure is kept in Err and the local state is not reverted.
func (s *Store) MarkAsRead(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	if s.recipient == nil {
		s.mu.Unlock()
		slog.Warn("mark as read skipped: no recipient set", "notification_id", notificationID)
		return nil
	}
	s.setReadLocked(notificationID)
	s.mu.Unlock()
	s.changed(ctx)

	if err := s.api.MarkAsRead(ctx, notificationID); err != nil {
		s.fail(ctx, err)
		return err
	}
	s.readConfirmed(ctx)
	return nil
}

// MarkAllAsRead is MarkAsRead over every notification currently held.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	s.mu.Lock()
	if s.recipient == nil {
		s.mu.Unlock()
		slog.Warn("mark all as read skipped: no recipient set")
		return nil
	}
	for _, id := range s.order {
		s.setReadLocked(id)
	}
	s.mu.Unlock()
	s.changed(ctx)

	if err := s.api.MarkAllAsRead(ctx); err != nil {
		s.fail(ctx, err)
		return err
	}
	s.readConfirmed(ctx)
	return nil
}

// CreateNotification submits req and prepends the result when the current
// recipient is one of its targets.
func (s *Store) CreateNotification(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	n, err := s.api.Create(ctx, req)
	if err != nil {
		s.fail(ctx, err)
		return nil, err
	}
	s.Receive(*n)
	return n, nil
}

// Receive prepends n if it targets the current recipient and is not already
// held. It reports whether the list changed.
func (s *Store) Receive(n domain.Notification) bool {
	s.mu.Lock()
	if s.recipient == nil || !n.Targets(*s.recipient) {
		s.mu.Unlock()
		return false
	}
	if _, ok := s.items[n.NotificationID]; ok {
		s.mu.Unlock()
		return false
	}
	s.ingestLocked(n)
	s.order = append([]string{n.NotificationID}, s.order...)
	s.mu.Unlock()
	s.changed(context.Background())
	return true
}

// ApplyRead marks the event's notification read when the event is for the
// current recipient. It reports whether anything changed.
func (s *Store) ApplyRead(ev domain.NotificationRead) bool {
	s.mu.Lock()
	if s.recipient == nil || !ev.Matches(*s.recipient) {
		s.mu.Unlock()
		return false
	}
	changed := s.setReadLocked(ev.NotificationID)
	s.mu.Unlock()
	if changed {
		s.changed(context.Background())
	}
	return changed
}

// UpdatePagination moves to page and/or changes limit; zero leaves a value
// as is. A new limit always returns to page 1.
func (s *Store) UpdatePagination(page, limit int) {
	s.mu.Lock()
	switch {
	case limit > 0 && limit != s.page.Limit:
		s.page.Limit = limit
		s.page.Page = 1
	case page > 0:
		s.page.Page = page
	}
	s.mu.Unlock()
	s.changed(context.Background())
}

// UpdateSearch sets the search term and returns to page 1. Callers debounce
// keystrokes, see SearchDebouncer.
func (s *Store) UpdateSearch(term string) {
	s.mu.Lock()
	s.page.Search = term
	s.page.Page = 1
	s.mu.Unlock()
	s.changed(context.Background())
}

func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.viewLocked(id))
	}
	return out
}

func (s *Store) UnreadNotifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(true)
}

func (s *Store) ReadNotifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(false)
}

// UnreadCount is derived from the held list on every call.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadCountLocked()
}

func (s *Store) Pagination() Pagination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

func (s *Store) Recipient() (domain.Recipient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recipient == nil {
		return domain.Recipient{}, false
	}
	return *s.recipient, true
}

// Err is the last backend failure; a successful fetch clears it.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// Snapshot copies the whole state under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Notifications: make([]domain.Notification, 0, len(s.order)),
		Pagination:    s.page,
		UnreadCount:   s.unreadCountLocked(),
		Loading:       s.inFlight > 0,
		Err:           s.err,
	}
	if s.recipient != nil {
		rc := *s.recipient
		snap.Recipient = &rc
	}
	for _, id := range s.order {
		snap.Notifications = append(snap.Notifications, s.viewLocked(id))
	}
	return snap
}

// Subscribe registers fn for every state change and returns its removal.
// fn runs on the goroutine that made the change and must not block.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	s.listenerSeq++
	id := s.listenerSeq
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Reconcile refetches every interval until ctx ends, pulling back any
// optimistic state the backend did not accept.
func (s *Store) Reconcile(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.FetchNotifications(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("notification reconcile failed", "error", err)
			}
		}
	}
}

func (s *Store) fail(ctx context.Context, err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.changed(ctx)
}

func (s *Store) readConfirmed(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.NotificationRead(ctx)
	}
}

// changed pushes the unread count to the badge and the snapshot to listeners.
func (s *Store) changed(ctx context.Context) {
	s.mu.Lock()
	snap := s.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.UpdateBadge(ctx, snap.UnreadCount)
	}
	for _, fn := range listeners {
		fn(snap)
	}
}
