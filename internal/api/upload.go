package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

type uploadForm struct {
	filename string
	caseName string
	data     []byte
}

// readUpload streams the multipart body, keeping the file part in memory up
// to the configured limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badRequest{"expecting multipart form"}
	}
	form := &uploadForm{}
	seenFile := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return nil, err
			}
			return nil, badRequest{fmt.Sprintf("read multipart: %v", err)}
		}
		switch part.FormName() {
		case "file":
			data, err := s.readFilePart(part)
			part.Close()
			if err != nil {
				return nil, err
			}
			form.data = data
			form.filename = filepath.Base(part.FileName())
			seenFile = true
		case "caseName":
			v, err := io.ReadAll(io.LimitReader(part, 1024))
			part.Close()
			if err != nil {
				return nil, badRequest{"read caseName"}
			}
			form.caseName = strings.TrimSpace(string(v))
		default:
			part.Close()
		}
	}
	if !seenFile {
		return nil, badRequest{"missing file part"}
	}
	if len(form.data) == 0 {
		return nil, badRequest{"empty file"}
	}
	if form.filename == "" || form.filename == "." || form.filename == "/" {
		form.filename = "upload.pdf"
	}
	return form, nil
}

func (s *Server) readFilePart(part *multipart.Part) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, s.cfg.MaxFileSize+1))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, err
		}
		return nil, badRequest{fmt.Sprintf("read file: %v", err)}
	}
	if n > s.cfg.MaxFileSize {
		return nil, &http.MaxBytesError{Limit: s.cfg.MaxFileSize}
	}
	return buf.Bytes(), nil
}
