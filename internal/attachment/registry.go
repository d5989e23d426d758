// Package attachment keeps uploaded PDF bytes in memory for the lifetime of
// the process. Nothing here is ever written to durable storage: a restart
// drops every file and invalidates every reference handed out before it.
package attachment

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/InvoiceDesk/internal/signing"
)

var (
	// ErrNotFound is returned when no file is registered for an invoice.
	ErrNotFound = errors.New("attachment not found")
	// ErrInvalidReference covers malformed, forged, expired, released and
	// stale (previous process) references alike.
	ErrInvalidReference = errors.New("invalid or expired attachment reference")
)

// ReferencePrefix is the path every ephemeral reference starts with.
const ReferencePrefix = "/attachments/"

// File is the binary content backing an invoice.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	AddedAt     time.Time
}

// Size returns the content length in bytes.
func (f *File) Size() int64 {
	return int64(len(f.Data))
}

type liveRef struct {
	id      int
	expires time.Time
}

// Registry maps invoice ids to in-memory files. A single Registry is shared
// by every store instance in the process.
type Registry struct {
	mu     sync.RWMutex
	files  map[int]*File
	refs   map[string]liveRef
	signer *signing.Signer
	ttl    time.Duration
	now    func() time.Time
}

// NewRegistry builds a Registry. References expire after ttl.
func NewRegistry(signer *signing.Signer, ttl time.Duration) *Registry {
	if signer == nil {
		signer = signing.NewSigner(nil)
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Registry{
		files:  make(map[int]*File),
		refs:   make(map[string]liveRef),
		signer: signer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Set registers f for id, replacing any previous file. References minted for
// the previous file are revoked.
func (r *Registry) Set(id int, f *File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.AddedAt.IsZero() {
		f.AddedAt = r.now().UTC()
	}
	r.files[id] = f
	r.revokeLocked(id)
}

// Get returns the file registered for id.
func (r *Registry) Get(id int) (*File, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	return f, ok
}

// Delete drops the file for id and revokes its references. Deleting an
// unknown id is a no-op.
func (r *Registry) Delete(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
	r.revokeLocked(id)
}

// Acquire mints an ephemeral reference to the file registered for id. The
// caller owns the reference and should Release it once it is no longer shown.
func (r *Registry) Acquire(id int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return "", fmt.Errorf("acquire reference for %d: %w", id, ErrNotFound)
	}
	nonce := uuid.NewString()
	expires := r.now().Add(r.ttl)
	r.refs[nonce] = liveRef{id: id, expires: expires}
	sig := r.signer.Sign(subject(id, nonce), expires)
	q := url.Values{}
	q.Set("ref", nonce)
	q.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	q.Set("signature", sig)
	return ReferencePrefix + strconv.Itoa(id) + "?" + q.Encode(), nil
}

// Release revokes ref. Unknown or malformed references are ignored.
func (r *Registry) Release(ref string) {
	nonce, _, err := r.parse(ref)
	if err != nil {
		return
	}
	r.mu.Lock()
	delete(r.refs, nonce)
	r.mu.Unlock()
}

// Resolve returns the invoice id and file behind a live reference.
func (r *Registry) Resolve(ref string) (int, *File, error) {
	nonce, id, err := r.parse(ref)
	if err != nil {
		return 0, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	live, ok := r.refs[nonce]
	if !ok || live.id != id {
		return 0, nil, ErrInvalidReference
	}
	if r.now().After(live.expires) {
		delete(r.refs, nonce)
		return 0, nil, ErrInvalidReference
	}
	f, ok := r.files[id]
	if !ok {
		return 0, nil, ErrInvalidReference
	}
	return id, f, nil
}

// LiveReferences counts unreleased references for id.
func (r *Registry) LiveReferences(id int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, live := range r.refs {
		if live.id == id {
			n++
		}
	}
	return n
}

// parse checks shape and signature; liveness is checked by the caller.
func (r *Registry) parse(ref string) (string, int, error) {
	u, err := url.Parse(ref)
	if err != nil || !strings.HasPrefix(u.Path, ReferencePrefix) {
		return "", 0, ErrInvalidReference
	}
	id, err := strconv.Atoi(strings.TrimPrefix(u.Path, ReferencePrefix))
	if err != nil {
		return "", 0, ErrInvalidReference
	}
	q := u.Query()
	nonce := q.Get("ref")
	if nonce == "" || r.signer.Verify(subject(id, nonce), q.Get("expires"), q.Get("signature")) != nil {
		return "", 0, ErrInvalidReference
	}
	return nonce, id, nil
}

func (r *Registry) revokeLocked(id int) {
	for nonce, live := range r.refs {
		if live.id == id {
			delete(r.refs, nonce)
		}
	}
}

func subject(id int, nonce string) string {
	return strconv.Itoa(id) + ":" + nonce
}
