package attachment

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/InvoiceDesk/internal/signing"
)

func pdfFile(name string) *File {
	return &File{Name: name, ContentType: "application/pdf", Data: []byte("%PDF-1.4 test")}
}

func TestRegistrySetGetDelete(t *testing.T) {
	reg := NewRegistry(signing.NewSigner([]byte("k")), time.Hour)

	_, ok := reg.Get(1)
	assert.False(t, ok)

	f := pdfFile("a.pdf")
	reg.Set(1, f)
	got, ok := reg.Get(1)
	require.True(t, ok)
	assert.Same(t, f, got)
	assert.False(t, got.AddedAt.IsZero())
	assert.EqualValues(t, len(f.Data), got.Size())

	reg.Delete(1)
	_, ok = reg.Get(1)
	assert.False(t, ok)

	// idempotent
	reg.Delete(1)
}

func TestRegistryReferenceLifecycle(t *testing.T) {
	reg := NewRegistry(signing.NewSigner([]byte("k")), time.Hour)
	reg.Set(3, pdfFile("c.pdf"))

	ref, err := reg.Acquire(3)
	require.NoError(t, err)
	assert.Contains(t, ref, ReferencePrefix+"3?")
	assert.Equal(t, 1, reg.LiveReferences(3))

	id, f, err := reg.Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, 3, id)
	assert.Equal(t, "c.pdf", f.Name)

	reg.Release(ref)
	assert.Equal(t, 0, reg.LiveReferences(3))
	_, _, err = reg.Resolve(ref)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestRegistryAcquireWithoutFile(t *testing.T) {
	reg := NewRegistry(nil, 0)
	_, err := reg.Acquire(9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryReplacingFileRevokesReferences(t *testing.T) {
	reg := NewRegistry(nil, time.Hour)
	reg.Set(1, pdfFile("old.pdf"))
	old, err := reg.Acquire(1)
	require.NoError(t, err)

	reg.Set(1, pdfFile("new.pdf"))
	_, _, err = reg.Resolve(old)
	assert.ErrorIs(t, err, ErrInvalidReference)

	fresh, err := reg.Acquire(1)
	require.NoError(t, err)
	_, f, err := reg.Resolve(fresh)
	require.NoError(t, err)
	assert.Equal(t, "new.pdf", f.Name)
}

func TestRegistryDeleteRevokesReferences(t *testing.T) {
	reg := NewRegistry(nil, time.Hour)
	reg.Set(2, pdfFile("b.pdf"))
	ref, err := reg.Acquire(2)
	require.NoError(t, err)

	reg.Delete(2)
	assert.Equal(t, 0, reg.LiveReferences(2))
	_, _, err = reg.Resolve(ref)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestRegistryReferenceFromPreviousProcessIsDead(t *testing.T) {
	before := NewRegistry(nil, time.Hour)
	before.Set(1, pdfFile("a.pdf"))
	ref, err := before.Acquire(1)
	require.NoError(t, err)

	// A restart builds a new registry with a fresh secret and the same id.
	after := NewRegistry(nil, time.Hour)
	after.Set(1, pdfFile("a.pdf"))
	_, _, err = after.Resolve(ref)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestRegistryExpiredReference(t *testing.T) {
	reg := NewRegistry(nil, time.Minute)
	now := time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	reg.Set(1, pdfFile("a.pdf"))
	ref, err := reg.Acquire(1)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, _, err = reg.Resolve(ref)
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.Equal(t, 0, reg.LiveReferences(1))
}

func TestRegistryRejectsTamperedReference(t *testing.T) {
	reg := NewRegistry(nil, time.Hour)
	reg.Set(1, pdfFile("a.pdf"))
	reg.Set(2, pdfFile("b.pdf"))
	ref, err := reg.Acquire(1)
	require.NoError(t, err)

	u, err := url.Parse(ref)
	require.NoError(t, err)
	u.Path = ReferencePrefix + "2"
	_, _, err = reg.Resolve(u.String())
	assert.ErrorIs(t, err, ErrInvalidReference)

	for _, bad := range []string{"", "blob:xyz", ReferencePrefix + "abc?ref=x", ReferencePrefix + "1"} {
		_, _, err := reg.Resolve(bad)
		assert.ErrorIs(t, err, ErrInvalidReference, bad)
	}
}
