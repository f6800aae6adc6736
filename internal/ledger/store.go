// Package ledger holds the authoritative list of transactions and keeps
// its persisted copy in sync.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
)

var (
	// ErrCorruptState marks persisted data that could not be decoded. Load
	// recovers from it by starting empty.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrPersistenceWrite is returned alongside a mutation that took effect
	// in memory but could not be written to the slot.
	ErrPersistenceWrite = errors.New("persistence write failed")
)

// DefaultRecentLimit is how many transactions the widget lists.
const DefaultRecentLimit = 10

// Change operations carried by snapshots.
const (
	OpLoad   = "load"
	OpAdd    = "add"
	OpDelete = "delete"
)

// Candidate is an unvalidated transaction as received from a form, a
// request body or the command line.
type Candidate struct {
	Name     string
	Amount   string
	Type     string
	Category string
	Date     string
}

// Change describes the mutation that produced a snapshot.
type Change struct {
	Op string `json:"op"`
	ID int64  `json:"id,omitempty"`
}

// Snapshot is a read-only copy of the store.
type Snapshot struct {
	Version      uint64             `json:"version"`
	Change       Change             `json:"change"`
	Transactions []core.Transaction `json:"transactions"` // date descending
	Totals       core.Totals        `json:"totals"`
}

// Recent returns at most n transactions from the head of the snapshot.
func (s Snapshot) Recent(n int) []core.Transaction {
	if n < 0 || n >= len(s.Transactions) {
		return s.Transactions
	}
	return s.Transactions[:n]
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to default missing dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentLedger) }
}

type subscription struct {
	id int
	fn Subscriber
}

// Store is the ledger. All methods are safe for concurrent use; each
// operation completes before the next one observes the state.
type Store struct {
	mu      sync.Mutex
	slot    Slot
	items   []core.Transaction // insertion order
	lastID  int64
	version uint64

	synced  []byte // slot contents as last read or written
	unsaved bool   // memory is ahead of the slot after a failed write

	subMu   sync.Mutex
	subs    []subscription
	nextSub int

	now    func() time.Time
	logger *log.Logger
}

// New creates an empty store backed by slot. Call Load to read persisted
// data.
func New(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot:   slot,
		now:    time.Now,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory list with the persisted one. Missing or
// corrupt data yields an empty list; corruption is logged, not returned.
// Loading again re-reads the slot.
func (s *Store) Load(ctx context.Context) []core.Transaction {
	data, txs := s.read(ctx)

	s.mu.Lock()
	s.adoptLocked(data, txs)
	s.version++
	snap := s.snapshotLocked(Change{Op: OpLoad})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldTxCount, len(txs),
		log.FieldVersion, snap.Version)

	s.notify(snap)
	return snap.Transactions
}

// Refresh picks up writes made to the slot by another process, such as
// ledgerctl next to a running server. It reports whether the list changed;
// a change notifies subscribers as a load. Unsaved local mutations are
// never replaced.
func (s *Store) Refresh(ctx context.Context) bool {
	s.mu.Lock()
	changed := s.refreshLocked(ctx)
	var snap Snapshot
	if changed {
		snap = s.snapshotLocked(Change{Op: OpLoad})
	}
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
	return changed
}

// read returns the raw slot bytes and the decoded list, empty when the
// slot is unreadable or corrupt.
func (s *Store) read(ctx context.Context) ([]byte, []core.Transaction) {
	data, err := s.slot.Read(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read ledger slot, starting empty",
			log.FieldOperation, log.OpLoad, log.FieldError, err)
		return nil, []core.Transaction{}
	}
	txs, renumbered, err := Decode(data)
	if err != nil {
		s.logger.WarnContext(ctx, "Discarding corrupt ledger data",
			log.FieldOperation, log.OpLoad, log.FieldError, err)
		return data, []core.Transaction{}
	}
	if renumbered > 0 {
		s.logger.WarnContext(ctx, "Renumbered transactions with duplicate ids",
			log.FieldOperation, log.OpLoad, "renumbered", renumbered)
	}
	return data, txs
}

// refreshLocked re-reads the slot before a mutation so that records written
// by another process are merged in rather than overwritten. The id counter
// only moves forward. Nothing is re-read while a local write is pending.
func (s *Store) refreshLocked(ctx context.Context) bool {
	if s.unsaved {
		return false
	}
	data, err := s.slot.Read(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to re-read ledger slot",
			log.FieldOperation, log.OpLoad, log.FieldError, err)
		return false
	}
	if bytes.Equal(data, s.synced) {
		return false
	}
	txs, renumbered, err := Decode(data)
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring corrupt ledger data written elsewhere",
			log.FieldOperation, log.OpLoad, log.FieldError, err)
		s.synced = data
		return false
	}
	if renumbered > 0 {
		s.logger.WarnContext(ctx, "Renumbered transactions with duplicate ids",
			log.FieldOperation, log.OpLoad, "renumbered", renumbered)
	}
	s.adoptLocked(data, txs)
	s.version++
	s.logger.InfoContext(ctx, "Ledger changed in storage, reloaded",
		log.FieldOperation, log.OpLoad,
		log.FieldTxCount, len(txs),
		log.FieldVersion, s.version)
	return true
}

func (s *Store) adoptLocked(data []byte, txs []core.Transaction) {
	s.items = txs
	for _, tx := range txs {
		s.lastID = max(s.lastID, tx.ID)
	}
	s.synced = data
	s.unsaved = false
}

// Validate turns a candidate into a transaction without an id.
func (s *Store) Validate(c Candidate) (core.Transaction, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return core.Transaction{}, core.ErrEmptyName
	}
	amount, err := core.ParseAmount(c.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseTransactionType(c.Type)
	if err != nil {
		return core.Transaction{}, err
	}

	date := core.DateOf(s.now())
	if strings.TrimSpace(c.Date) != "" {
		if date, err = core.ParseDate(c.Date); err != nil {
			return core.Transaction{}, err
		}
	}

	tx := core.Transaction{
		Name:     name,
		Amount:   amount,
		Type:     typ,
		Category: strings.TrimSpace(c.Category),
		Date:     date,
	}
	return tx, tx.Validate()
}

// Add validates c, assigns a fresh id, appends and persists.
//
// A validation failure returns an error matching core.ErrInvalidInput and
// leaves the store untouched. A write failure returns the new transaction
// together with an error matching ErrPersistenceWrite; the transaction is
// kept in memory and subscribers are still notified.
func (s *Store) Add(ctx context.Context, c Candidate) (core.Transaction, error) {
	tx, err := s.Validate(c)
	if err != nil {
		s.logger.DebugContext(ctx, "Rejected transaction",
			log.FieldOperation, log.OpAdd, log.FieldError, err)
		return core.Transaction{}, err
	}

	s.mu.Lock()
	s.refreshLocked(ctx)
	s.lastID++
	tx.ID = s.lastID
	s.items = append(s.items, tx)
	s.version++
	werr := s.persistLocked(ctx)
	snap := s.snapshotLocked(Change{Op: OpAdd, ID: tx.ID})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Transaction added", log.NewFields().
		WithTransaction(tx.ID, tx.Name, string(tx.Type), tx.Amount.String(), tx.Category, tx.Date.String()).
		WithOperation(log.OpAdd).
		ToSlice()...)

	s.notify(snap)
	return tx, werr
}

// Delete removes the transaction with the given id. An unknown id is a
// no-op: nothing is written and no subscriber is called.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	s.refreshLocked(ctx)
	idx := slices.IndexFunc(s.items, func(tx core.Transaction) bool { return tx.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Delete of unknown transaction ignored",
			log.FieldOperation, log.OpDelete, log.FieldTxID, id)
		return false, nil
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	s.version++
	werr := s.persistLocked(ctx)
	snap := s.snapshotLocked(Change{Op: OpDelete, ID: id})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete, log.FieldTxID, id)

	s.notify(snap)
	return true, werr
}

// List returns every transaction, most recent date first.
func (s *Store) List() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Recent returns the n most recent transactions.
func (s *Store) Recent(n int) []core.Transaction {
	return s.Snapshot().Recent(n)
}

// Totals aggregates the current list.
func (s *Store) Totals() core.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.ComputeTotals(s.items)
}

// Snapshot returns a consistent copy of list, totals and version.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(Change{})
}

// Version increases with every load and mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.id == id })
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()
	for _, sub := range subs {
		sub.fn(snap)
	}
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := Encode(s.items)
	if err == nil {
		err = s.slot.Write(ctx, data)
	}
	if err == nil {
		s.synced = data
		s.unsaved = false
		return nil
	}
	s.unsaved = true
	s.logger.ErrorContext(ctx, "Failed to persist ledger",
		log.FieldOperation, log.OpPersist,
		log.FieldTxCount, len(s.items),
		log.FieldError, err)
	return fmt.Errorf("%w: %w", ErrPersistenceWrite, err)
}

func (s *Store) sortedLocked() []core.Transaction {
	out := slices.Clone(s.items)
	if out == nil {
		out = []core.Transaction{}
	}
	core.SortByDateDesc(out)
	return out
}

func (s *Store) snapshotLocked(change Change) Snapshot {
	return Snapshot{
		Version:      s.version,
		Change:       change,
		Transactions: s.sortedLocked(),
		Totals:       core.ComputeTotals(s.items),
	}
}
