package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestListAndStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/invoices":
			assert.Equal(t, "acme", r.URL.Query().Get("q"))
			_, _ = io.WriteString(w, `[{"id":3,"caseName":"ACME","pages":2,"status":"Done","modifiedAt":"2025-09-10 08:30","file":"acme.pdf","data":{}}]`)
		case "/invoices/stats":
			_, _ = io.WriteString(w, `{"total":3,"counts":{"Pending":2,"Done":1}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := run(t, srv, "list", "-q", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "ACME")
	assert.Contains(t, out, "Done")
	assert.Contains(t, out, "2025-09-10 08:30")

	out, err = run(t, srv, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "3 invoices")
	assert.Contains(t, out, "Pending")
}

func TestStatusReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/invoices/4/status", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Exception", body["status"])
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid status \"Exception\""}`)
	}))
	defer srv.Close()

	_, err := run(t, srv, "status", "4", "Exception")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "invalid status")
}

func TestUploadSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "March", r.FormValue("caseName"))
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "march.pdf", hdr.Filename)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":1,"caseName":"March","pages":1,"status":"Pending","file":"march.pdf","data":{}}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "march.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o600))
	out, err := run(t, srv, "upload", "--case", "March", path)
	require.NoError(t, err)
	assert.Contains(t, out, "#1 March")
}

func TestInvalidID(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := run(t, srv, "show", "abc")
	assert.ErrorContains(t, err, "invalid invoice id")
}
