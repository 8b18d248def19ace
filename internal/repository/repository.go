// Package repository provides typed read/write operations for every entity
// kind. Each mutation of a syncable entity commits the entity row and exactly
// one outbox record in the same transaction, then notifies subscribers.
package repository

import (
	"context"
	"sync"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
	"github.com/kimhsiao/shopfloor/backend/internal/uuid"
)

// Change describes a committed mutation.
type Change struct {
	Entity string `json:"entity"` // machine, downtime, maintenance, alert, session
	ID     string `json:"id"`
	Action string `json:"action"`
}

// Notifier fans committed changes out to in-memory subscribers.
type Notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Change)
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Change))}
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn func(Change)) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
		})
	}
}

// Publish delivers c to every subscriber synchronously.
func (n *Notifier) Publish(c Change) {
	n.mu.RLock()
	subs := make([]func(Change), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.RUnlock()

	for _, fn := range subs {
		fn(c)
	}
}

// CheckRecordID rejects an id that this package could not have generated.
// Downtime events and alerts are keyed by UUID v4; machines and maintenance
// items keep their seeded codes and are not checked.
func CheckRecordID(entity, id string) error {
	if err := uuid.Validate(id); err != nil {
		return apperrors.Newf(apperrors.ErrValidation, "invalid %s id %q", entity, id)
	}
	return nil
}

// base is shared by the entity repositories.
type base struct {
	store   *db.DB
	outbox  *queue.Outbox
	notify  *Notifier
	session *Users
	log     *logging.Logger
}

// mutate runs write and enqueues the payload it returns in one transaction.
// If either step fails nothing is committed.
func (b *base) mutate(ctx context.Context, write func(q db.Querier) (queue.Payload, error)) error {
	return b.store.WithTx(ctx, func(q db.Querier) error {
		p, err := write(q)
		if err != nil {
			return err
		}
		_, err = b.outbox.Enqueue(ctx, q, p)
		return err
	})
}

func (b *base) publish(entity, id, action string) {
	b.notify.Publish(Change{Entity: entity, ID: id, Action: action})
}

// Repositories groups every repository over one store.
type Repositories struct {
	Users       *Users
	Machines    *Machines
	Downtime    *Downtime
	Maintenance *Maintenance
	Alerts      *Alerts
	Changes     *Notifier
}

// New wires the repositories. tenantID is stamped on records created while
// no user is signed in.
func New(store *db.DB, outbox *queue.Outbox, tenantID string, log *logging.Logger) *Repositories {
	log = logging.OrNop(log).Named("repository")
	notify := NewNotifier()
	users := &Users{store: store, notify: notify, tenantID: tenantID}
	b := base{store: store, outbox: outbox, notify: notify, session: users, log: log}

	return &Repositories{
		Users:       users,
		Machines:    &Machines{base: b},
		Downtime:    &Downtime{base: b},
		Maintenance: &Maintenance{base: b},
		Alerts:      &Alerts{base: b, tenantID: tenantID},
		Changes:     notify,
	}
}
