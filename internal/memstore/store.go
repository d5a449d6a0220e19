// Package memstore is an in-memory assignment.Store with an optional
// append-only journal file. A commit is appended to the journal before it is
// applied, and the journal is periodically compacted into a single entry.
package memstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/assignment"
	"github.com/rpggio/annotask/internal/repository"
)

// defaultCompactEvery is the number of journal entries written between compactions.
const defaultCompactEvery = 1024

// Store implements assignment.Store and assignment.Settings.
type Store struct {
	mu           sync.Mutex
	state        state
	path         string
	entries      int
	compactEvery int
	closed       bool
}

type state struct {
	BatchSize   int
	Annotations map[string]annotation.Annotation
	Leases      map[string]assignment.Lease
	Batches     map[string]assignment.Batch
}

func newState() state {
	return state{
		Annotations: make(map[string]annotation.Annotation),
		Leases:      make(map[string]assignment.Lease),
		Batches:     make(map[string]assignment.Batch),
	}
}

// entry is one journal line: the keys a commit changed. Nil leases and
// batches are deletions. A compacted journal is a single entry holding
// everything.
type entry struct {
	BatchSize   int                              `json:"batch_size,omitempty"`
	Annotations map[string]annotation.Annotation `json:"annotations,omitempty"`
	Leases      map[string]*assignment.Lease     `json:"leases,omitempty"`
	Batches     map[string]*assignment.Batch     `json:"batches,omitempty"`
}

// apply writes only the keys in e.
func (st *state) apply(e entry) {
	if e.BatchSize > 0 {
		st.BatchSize = e.BatchSize
	}
	for k, v := range e.Annotations {
		st.Annotations[k] = v
	}
	for k, v := range e.Leases {
		if v == nil {
			delete(st.Leases, k)
		} else {
			st.Leases[k] = *v
		}
	}
	for k, v := range e.Batches {
		if v == nil {
			delete(st.Batches, k)
		} else {
			st.Batches[k] = *v
		}
	}
}

func (st *state) full() entry {
	e := entry{
		BatchSize:   st.BatchSize,
		Annotations: st.Annotations,
		Leases:      make(map[string]*assignment.Lease, len(st.Leases)),
		Batches:     make(map[string]*assignment.Batch, len(st.Batches)),
	}
	for k, v := range st.Leases {
		e.Leases[k] = &v
	}
	for k, v := range st.Batches {
		e.Batches[k] = &v
	}
	return e
}

// New creates an empty store without persistence.
func New(batchSize int) *Store {
	s := &Store{state: newState(), compactEvery: defaultCompactEvery}
	s.state.BatchSize = batchSize
	return s
}

// Open replays the journal at path if it exists and appends every commit to
// it. batchSize seeds the setting when the journal has none.
func Open(path string, batchSize int) (*Store, error) {
	s := New(0)
	s.path = path

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		s.state.BatchSize = batchSize
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	n, err := replay(f, &s.state)
	f.Close()
	if err != nil {
		return nil, err
	}
	if s.state.BatchSize == 0 {
		s.state.BatchSize = batchSize
	}
	if n > 1 {
		if err := s.compact(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// replay applies every journal line to st. A final line without a newline
// that does not parse is a torn write and is ignored.
func replay(r io.Reader, st *state) (int, error) {
	br := bufio.NewReader(r)
	n := 0
	for line := 1; ; line++ {
		data, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("read journal: %w", err)
		}
		torn := errors.Is(err, io.EOF)
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 {
			var e entry
			if uerr := json.Unmarshal(trimmed, &e); uerr != nil {
				if torn {
					return n, nil
				}
				return n, fmt.Errorf("parse journal line %d: %w", line, uerr)
			}
			st.apply(e)
			n++
		}
		if torn {
			return n, nil
		}
	}
}

// Update runs fn under the store lock and commits its writes if fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx assignment.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repository.ErrClosed
	}

	tx := newTx(&s.state)
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty() {
		return nil
	}
	return s.commit(tx.entry())
}

// View runs fn under the store lock; writes are discarded.
func (s *Store) View(ctx context.Context, fn func(tx assignment.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repository.ErrClosed
	}
	return fn(newTx(&s.state))
}

// Close rejects further calls. Committed state is already in the journal.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// BatchSize returns the stored batch size.
func (s *Store) BatchSize(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, repository.ErrClosed
	}
	if s.state.BatchSize == 0 {
		return 0, repository.ErrNotFound
	}
	return s.state.BatchSize, nil
}

// SetBatchSize stores the batch size.
func (s *Store) SetBatchSize(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return repository.ErrClosed
	}
	return s.commit(entry{BatchSize: n})
}

// commit must be called with mu held. The entry reaches the journal before
// memory, so a failed append leaves state untouched.
func (s *Store) commit(e entry) error {
	if err := s.append(e); err != nil {
		return err
	}
	s.state.apply(e)

	if s.path == "" {
		return nil
	}
	s.entries++
	if s.entries >= s.compactEvery {
		// A failed compaction leaves a valid journal; retry on the next commit.
		if err := s.compact(); err == nil {
			s.entries = 0
		}
	}
	return nil
}

func (s *Store) append(e entry) error {
	if s.path == "" {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat journal: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Truncate(info.Size())
		f.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Truncate(info.Size())
		f.Close()
		return fmt.Errorf("sync journal: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}

// compact replaces the journal with one entry holding the whole state,
// written to a temp file and renamed into place.
func (s *Store) compact() error {
	data, err := json.Marshal(s.state.full())
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace journal: %w", err)
	}
	return nil
}

// tx reads through to base and buffers writes. A nil pointer in the lease or
// batch overlay marks a deletion.
type tx struct {
	base        *state
	annotations map[string]annotation.Annotation
	leases      map[string]*assignment.Lease
	batches     map[string]*assignment.Batch
}

func newTx(base *state) *tx {
	return &tx{
		base:        base,
		annotations: make(map[string]annotation.Annotation),
		leases:      make(map[string]*assignment.Lease),
		batches:     make(map[string]*assignment.Batch),
	}
}

func (t *tx) dirty() bool {
	return len(t.annotations) > 0 || len(t.leases) > 0 || len(t.batches) > 0
}

func (t *tx) entry() entry {
	return entry{Annotations: t.annotations, Leases: t.leases, Batches: t.batches}
}

func (t *tx) annotation(recordID string) (annotation.Annotation, bool) {
	if a, ok := t.annotations[recordID]; ok {
		return a, true
	}
	a, ok := t.base.Annotations[recordID]
	return a, ok
}

// eachAnnotation visits every annotation visible to the transaction.
func (t *tx) eachAnnotation(fn func(a annotation.Annotation)) {
	for id, a := range t.base.Annotations {
		if _, overridden := t.annotations[id]; !overridden {
			fn(a)
		}
	}
	for _, a := range t.annotations {
		fn(a)
	}
}

func (t *tx) GetAnnotation(ctx context.Context, recordID string) (*annotation.Annotation, error) {
	a, ok := t.annotation(recordID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.Correction = cloneCorrection(a.Correction)
	return &a, nil
}

func (t *tx) PutAnnotation(ctx context.Context, a *annotation.Annotation) error {
	stored := *a
	stored.Correction = cloneCorrection(a.Correction)
	t.annotations[a.RecordID] = stored
	return nil
}

func (t *tx) AnnotationOwners(ctx context.Context) (map[string]string, error) {
	owners := make(map[string]string, len(t.base.Annotations)+len(t.annotations))
	t.eachAnnotation(func(a annotation.Annotation) {
		owners[a.RecordID] = a.UserID
	})
	return owners, nil
}

func (t *tx) CountAnnotations(ctx context.Context, userID string) (int, error) {
	n := 0
	t.eachAnnotation(func(a annotation.Annotation) {
		if a.UserID == userID {
			n++
		}
	})
	return n, nil
}

func (t *tx) ListAnnotations(ctx context.Context) ([]annotation.Annotation, error) {
	out := make([]annotation.Annotation, 0, len(t.base.Annotations)+len(t.annotations))
	t.eachAnnotation(func(a annotation.Annotation) {
		a.Correction = cloneCorrection(a.Correction)
		out = append(out, a)
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].RecordID < out[j].RecordID
	})
	return out, nil
}

func (t *tx) GetLease(ctx context.Context, recordID string) (*assignment.Lease, error) {
	if l, ok := t.leases[recordID]; ok {
		if l == nil {
			return nil, repository.ErrNotFound
		}
		lease := *l
		return &lease, nil
	}
	lease, ok := t.base.Leases[recordID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &lease, nil
}

func (t *tx) PutLease(ctx context.Context, lease *assignment.Lease) error {
	l := *lease
	t.leases[lease.RecordID] = &l
	return nil
}

func (t *tx) DeleteLease(ctx context.Context, recordID string) error {
	t.leases[recordID] = nil
	return nil
}

func (t *tx) ListLeases(ctx context.Context) ([]assignment.Lease, error) {
	var leases []assignment.Lease
	for id, l := range t.base.Leases {
		if _, overridden := t.leases[id]; !overridden {
			leases = append(leases, l)
		}
	}
	for _, l := range t.leases {
		if l != nil {
			leases = append(leases, *l)
		}
	}
	return leases, nil
}

func (t *tx) GetBatch(ctx context.Context, userID string) (*assignment.Batch, error) {
	if b, ok := t.batches[userID]; ok {
		if b == nil {
			return nil, repository.ErrNotFound
		}
		return cloneBatch(*b), nil
	}
	b, ok := t.base.Batches[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneBatch(b), nil
}

func (t *tx) PutBatch(ctx context.Context, b *assignment.Batch) error {
	t.batches[b.UserID] = cloneBatch(*b)
	return nil
}

func (t *tx) DeleteBatch(ctx context.Context, userID string) error {
	t.batches[userID] = nil
	return nil
}

func cloneBatch(b assignment.Batch) *assignment.Batch {
	b.RecordIDs = slices.Clone(b.RecordIDs)
	return &b
}

func cloneCorrection(c *annotation.Correction) *annotation.Correction {
	if c == nil {
		return nil
	}
	out := &annotation.Correction{Conversations: slices.Clone(c.Conversations)}
	if c.Translation != nil {
		s := *c.Translation
		out.Translation = &s
	}
	return out
}
