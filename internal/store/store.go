// Package store owns the ordered list of invoice records. Metadata is written
// to a durable key-value backend after every mutation; the PDF bytes live in
// the shared attachment registry and are never persisted.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDesk/internal/attachment"
	"github.com/dharsanguruparan/InvoiceDesk/internal/kvstore"
	"github.com/dharsanguruparan/InvoiceDesk/internal/model"
)

// DefaultKey is the fixed key the invoice list is stored under.
const DefaultKey = "invoice-demo-data-v1"

var (
	// ErrNotFound is returned when an id does not exist.
	ErrNotFound = errors.New("invoice not found")
)

// Invoice is a record enriched with its current attachment, if any.
type Invoice struct {
	model.Invoice
	HasAttachment bool             `json:"hasAttachment"`
	Attachment    *attachment.File `json:"-"`
}

// NewInvoice carries the caller-supplied metadata for Add.
type NewInvoice struct {
	// CaseName defaults to File when empty.
	CaseName string
	File     string
	Pages    int
}

// Patch lists the fields Update merges. Nil fields are left unchanged.
type Patch struct {
	CaseName *string
	Pages    *int
	Status   *model.Status
	// Data replaces the whole data map when non-nil.
	Data  map[string]string
	Boxes *[]model.BoundingBox
}

// Store is one view of the invoice list. Several instances may share the
// same kvstore and registry; each keeps its own in-memory copy and can
// Reload to pick up writes made by the others. Every mutation re-reads the
// persisted list first, so writes from other instances are never lost and
// ids stay unique across them.
type Store struct {
	mu       sync.RWMutex
	records  []model.Invoice
	counts   map[model.Status]int
	scopes   map[int]*attachment.Scope
	kv       kvstore.Store
	registry *attachment.Registry
	shared   *shared
	key      string
	now      func() time.Time
	log      zerolog.Logger
}

// shared is the state every Store on one backend key has in common within
// the process: the write lock and the highest id ever handed out.
type shared struct {
	mu      sync.Mutex
	highest int
}

type sharedKey struct {
	kv  kvstore.Store
	key string
}

var sharedState sync.Map // sharedKey -> *shared

func sharedFor(kv kvstore.Store, key string) *shared {
	v, _ := sharedState.LoadOrStore(sharedKey{kv: kv, key: key}, &shared{})
	return v.(*shared)
}

// Option customises a Store.
type Option func(*Store)

// WithKey overrides DefaultKey.
func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option { return func(s *Store) { s.log = log } }

// New builds a Store and loads the persisted list. A missing, unreadable or
// corrupt value starts the store empty.
func New(ctx context.Context, kv kvstore.Store, registry *attachment.Registry, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		registry: registry,
		key:      DefaultKey,
		now:      time.Now,
		log:      zerolog.Nop(),
		counts:   map[model.Status]int{},
		scopes:   map[int]*attachment.Scope{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shared = sharedFor(kv, s.key)
	if err := s.Reload(ctx); err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("could not read persisted invoices, starting empty")
	}
	return s
}

// Reload replaces the in-memory list with the persisted one. Missing or
// corrupt data empties the store; backend errors leave it untouched.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Store) reloadLocked(ctx context.Context) error {
	data, err := s.kv.Get(ctx, s.key)
	var records []model.Invoice
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		records = nil
	case err != nil:
		return fmt.Errorf("load invoices: %w", err)
	default:
		records, err = decodeRecords(data)
		if err != nil {
			s.log.Warn().Err(err).Str("key", s.key).Msg("persisted invoices are corrupt, starting empty")
			records = nil
		}
	}
	// References this instance minted survive a reload while the record does.
	kept := make(map[int]bool, len(records))
	for i := range records {
		if scope, ok := s.scopes[records[i].ID]; ok {
			records[i].FileURL = scope.Current()
			kept[records[i].ID] = true
		}
	}
	for id, scope := range s.scopes {
		if !kept[id] {
			scope.Close()
			delete(s.scopes, id)
		}
	}
	s.records = records
	s.recountLocked()
	return nil
}

// lockForWrite takes the shared write lock, then this instance's lock, and
// refreshes the list from the backend. A failed read keeps the in-memory
// list.
func (s *Store) lockForWrite(ctx context.Context) func() {
	s.shared.mu.Lock()
	s.mu.Lock()
	if err := s.reloadLocked(ctx); err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("could not refresh invoices before write")
	}
	return func() {
		s.mu.Unlock()
		s.shared.mu.Unlock()
	}
}

// List returns every record in insertion order.
func (s *Store) List() []model.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Invoice, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Search filters by case-insensitive case name or by id digits.
func (s *Store) Search(query string) []model.Invoice {
	q := strings.ToLower(strings.TrimSpace(query))
	all := s.List()
	if q == "" {
		return all
	}
	out := make([]model.Invoice, 0, len(all))
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.CaseName), q) || strings.Contains(strconv.Itoa(r.ID), q) {
			out = append(out, r)
		}
	}
	return out
}

// GetByID returns the record for id together with whatever the registry
// holds for it right now.
func (s *Store) GetByID(id int) (Invoice, bool) {
	s.mu.RLock()
	i := s.indexLocked(id)
	var rec model.Invoice
	if i >= 0 {
		rec = s.records[i].Clone()
	}
	s.mu.RUnlock()
	if i < 0 {
		return Invoice{}, false
	}
	out := Invoice{Invoice: rec}
	if f, ok := s.registry.Get(id); ok {
		out.Attachment = f
		out.HasAttachment = true
	}
	return out, true
}

// Add appends a Pending record and returns its id. When file is non-nil it is
// registered under the new id and an ephemeral reference is stored in FileURL.
func (s *Store) Add(ctx context.Context, meta NewInvoice, file *attachment.File) int {
	unlock := s.lockForWrite(ctx)
	defer unlock()

	id := s.nextIDLocked()
	stamp := model.Timestamp(s.now())
	rec := model.Invoice{
		ID:         id,
		CaseName:   meta.CaseName,
		Pages:      meta.Pages,
		UploadedAt: stamp,
		ModifiedAt: stamp,
		Status:     model.StatusPending,
		File:       meta.File,
		Data:       model.EmptyForm(),
		Boxes:      []model.BoundingBox{},
	}
	if rec.CaseName == "" {
		rec.CaseName = meta.File
	}
	if rec.Pages < 1 {
		rec.Pages = 1
	}
	if file != nil {
		s.registry.Set(id, file)
		ref, err := s.scopeLocked(id).Show(id)
		if err != nil {
			s.log.Warn().Err(err).Int("id", id).Msg("could not mint attachment reference")
		}
		rec.FileURL = ref
	}
	s.records = append(s.records, rec)
	s.changedLocked(ctx)
	s.log.Info().Int("id", id).Str("file", rec.File).Bool("attached", file != nil).Msg("invoice added")
	return id
}

// Attach replaces the attachment of an existing record and returns the new
// ephemeral reference. The previous reference is released.
func (s *Store) Attach(ctx context.Context, id int, file *attachment.File) (string, error) {
	unlock := s.lockForWrite(ctx)
	defer unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return "", fmt.Errorf("attach %d: %w", id, ErrNotFound)
	}
	rec := &s.records[i]
	s.registry.Set(id, file)
	ref, err := s.scopeLocked(id).Show(id)
	if err != nil {
		return "", fmt.Errorf("attach %d: %w", id, err)
	}
	rec.FileURL = ref
	rec.File = file.Name
	rec.ModifiedAt = s.stampLocked(rec.UploadedAt)
	s.changedLocked(ctx)
	return ref, nil
}

// Update merges p into the record and refreshes ModifiedAt.
func (s *Store) Update(ctx context.Context, id int, p Patch) error {
	unlock := s.lockForWrite(ctx)
	defer unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("update %d: %w", id, ErrNotFound)
	}
	rec := &s.records[i]
	if p.CaseName != nil {
		rec.CaseName = *p.CaseName
	}
	if p.Pages != nil && *p.Pages >= 1 {
		rec.Pages = *p.Pages
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.Data != nil {
		rec.Data = model.NormalizeForm(p.Data)
	}
	if p.Boxes != nil {
		rec.Boxes = append([]model.BoundingBox{}, (*p.Boxes)...)
	}
	rec.ModifiedAt = s.stampLocked(rec.UploadedAt)
	s.changedLocked(ctx)
	return nil
}

// Delete removes the record and purges its attachment. Ids missing from the
// persisted list are ignored and their attachments left alone.
func (s *Store) Delete(ctx context.Context, id int) {
	unlock := s.lockForWrite(ctx)
	defer unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return
	}
	if scope, ok := s.scopes[id]; ok {
		scope.Close()
		delete(s.scopes, id)
	}
	s.registry.Delete(id)
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.changedLocked(ctx)
	s.log.Info().Int("id", id).Msg("invoice deleted")
}

// StatusCounts returns how many records carry each status.
func (s *Store) StatusCounts() map[model.Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Status]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Close releases the references this instance minted. Records and
// attachments stay in place for other instances.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, scope := range s.scopes {
		scope.Close()
		delete(s.scopes, id)
	}
	for i := range s.records {
		s.records[i].FileURL = ""
	}
}

func (s *Store) scopeLocked(id int) *attachment.Scope {
	scope, ok := s.scopes[id]
	if !ok {
		scope = attachment.NewScope(s.registry)
		s.scopes[id] = scope
	}
	return scope
}

func (s *Store) indexLocked(id int) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

// nextIDLocked is max(id)+1 over the freshly read list, never lower than an
// id already handed out for this key in the process, so deleting the newest
// record does not recycle its id. The caller holds the shared lock.
func (s *Store) nextIDLocked() int {
	highest := s.shared.highest
	for _, r := range s.records {
		if r.ID > highest {
			highest = r.ID
		}
	}
	s.shared.highest = highest + 1
	return highest + 1
}

// stampLocked keeps ModifiedAt >= UploadedAt even if the clock steps back.
func (s *Store) stampLocked(uploadedAt string) string {
	stamp := model.Timestamp(s.now())
	if stamp < uploadedAt {
		return uploadedAt
	}
	return stamp
}

func (s *Store) changedLocked(ctx context.Context) {
	s.recountLocked()
	data, err := encodeRecords(s.records)
	if err != nil {
		s.log.Error().Err(err).Msg("encode invoices")
		return
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("persist invoices failed")
	}
}

func (s *Store) recountLocked() {
	counts := make(map[model.Status]int)
	for _, r := range s.records {
		counts[r.Status]++
	}
	s.counts = counts
}

// encodeRecords serializes metadata only. FileURL is dropped: it would be a
// dead reference after a restart.
func encodeRecords(records []model.Invoice) ([]byte, error) {
	out := make([]model.Invoice, len(records))
	for i, r := range records {
		out[i] = r.Clone()
		out[i].FileURL = ""
	}
	return json.Marshal(out)
}

func decodeRecords(data []byte) ([]model.Invoice, error) {
	var records []model.Invoice
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode invoices: %w", err)
	}
	seen := make(map[int]bool, len(records))
	for i := range records {
		r := &records[i]
		if r.ID <= 0 || seen[r.ID] {
			return nil, fmt.Errorf("decode invoices: invalid or duplicate id %d", r.ID)
		}
		seen[r.ID] = true
		r.FileURL = ""
		r.Data = model.NormalizeForm(r.Data)
		if r.Boxes == nil {
			r.Boxes = []model.BoundingBox{}
		}
		if r.Pages < 1 {
			r.Pages = 1
		}
		if r.Status == "" {
			r.Status = model.StatusPending
		}
	}
	return records, nil
}
