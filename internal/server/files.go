package server

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/linksigner/internal/model"
	"github.com/dharsanguruparan/linksigner/internal/signedurl"
	"github.com/dharsanguruparan/linksigner/internal/signing"
	"github.com/dharsanguruparan/linksigner/internal/storage"
)

var (
	errTooLarge   = errors.New("file exceeds limit")
	errEmptyFile  = errors.New("empty file")
	errTypeDenied = errors.New("file type not allowed")
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		record, err := s.persistPart(r, part.FileName(), part)
		part.Close()
		switch {
		case errors.Is(err, errTooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		case errors.Is(err, errEmptyFile), errors.Is(err, errTypeDenied):
			respondError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			s.logger.Error("store upload failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		respondJSON(w, http.StatusCreated, record)
		return
	}
	respondError(w, http.StatusBadRequest, "missing file part")
}

// persistPart sniffs the content type from the first 512 bytes, then streams
// the part into the blob store while enforcing the size limit.
func (s *Server) persistPart(r *http.Request, name string, part io.Reader) (*model.FileRecord, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(part, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		if isTooLarge(err) {
			return nil, errTooLarge
		}
		return nil, err
	}
	head = head[:n]
	if n == 0 {
		return nil, errEmptyFile
	}
	contentType := http.DetectContentType(head)
	if !s.allowedType(contentType) {
		return nil, errTypeDenied
	}

	id := s.newID()
	body := &limitedCounter{r: io.MultiReader(bytes.NewReader(head), part), limit: s.cfg.MaxFileSize}
	if err := s.blobs.Put(r.Context(), id, body, -1, contentType); err != nil {
		_ = s.blobs.Delete(r.Context(), id)
		if isTooLarge(err) {
			return nil, errTooLarge
		}
		return nil, err
	}

	if name == "" {
		name = "upload-" + id
	}
	record := &model.FileRecord{
		ID:          id,
		Name:        name,
		Size:        body.n,
		ContentType: contentType,
		Key:         id,
		CreatedAt:   s.clock.Now().UTC(),
	}
	s.files.Save(record)
	s.logger.Info("file stored", zap.String("file_id", id), zap.Int64("size", body.n), zap.String("content_type", contentType))
	return record, nil
}

func (s *Server) allowedType(contentType string) bool {
	for _, allowed := range s.cfg.AllowedTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.Is(err, errTooLarge) || errors.As(err, &maxErr)
}

// limitedCounter counts bytes read and fails once more than limit bytes
// have passed through.
type limitedCounter struct {
	r     io.Reader
	limit int64
	n     int64
}

func (l *limitedCounter) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		return n, errTooLarge
	}
	return n, err
}

func (s *Server) handleFileInfo(w http.ResponseWriter, r *http.Request) {
	record, err := s.files.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	respondJSON(w, http.StatusOK, record)
}

type fileLinkRequest struct {
	TTLSeconds    int64 `json:"ttlSeconds"`
	AllowAddition *bool `json:"allowAddition"`
}

type fileLinkResponse struct {
	URL       string    `json:"url"`
	LinkID    string    `json:"linkId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleFileLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.files.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	var req fileLinkRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := checkTTL(req.TTLSeconds); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	linkID := s.newID()
	var params signing.Params
	params.SetString("file", id)
	params.SetString("link", linkID)

	allowAddition := req.AllowAddition == nil || *req.AllowAddition
	signed, err := s.signer.Sign(DownloadRoute, params, s.signOptions(req.TTLSeconds, allowAddition)...)
	if err != nil {
		s.logger.Error("sign file link failed", zap.String("file_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to sign link")
		return
	}
	link, err := signedurl.Build(s.cfg.BaseURL, DownloadRoute, signed)
	if err != nil {
		s.logger.Error("build file link failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build link")
		return
	}

	rec := s.auditRecord(linkID, DownloadRoute, signed, allowAddition)
	s.publish(r.Context(), rec)
	respondJSON(w, http.StatusCreated, fileLinkResponse{URL: link, LinkID: linkID, ExpiresAt: rec.ExpiresAt})
}

// maxTTLSeconds caps requested link lifetimes at ten years.
const maxTTLSeconds = 10 * 365 * 24 * 60 * 60

func checkTTL(ttlSeconds int64) string {
	switch {
	case ttlSeconds < 0:
		return "ttlSeconds must not be negative"
	case ttlSeconds > maxTTLSeconds:
		return "ttlSeconds exceeds ten years"
	}
	return ""
}

func (s *Server) signOptions(ttlSeconds int64, allowAddition bool) []signing.SignOption {
	var opts []signing.SignOption
	if ttlSeconds > 0 {
		opts = append(opts, signing.ExpiresAt(s.clock.Now().Add(time.Duration(ttlSeconds)*time.Second)))
	}
	if !allowAddition {
		opts = append(opts, signing.DisallowAdditions())
	}
	return opts
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	params, _ := signedurl.ParamsFromContext(r.Context())
	fileID, ok := params.Get("file")
	if !ok {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	record, err := s.files.Get(fileID.String())
	if err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	blob, err := s.blobs.Open(r.Context(), record.Key)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		s.logger.Error("open blob failed", zap.String("file_id", record.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "file unavailable")
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", record.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(record.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": record.Name}))
	w.Header().Set("Cache-Control", "private, no-store")
	if _, err := io.Copy(w, blob); err != nil {
		s.logger.Warn("stream blob interrupted", zap.String("file_id", record.ID), zap.Error(err))
	}
}
