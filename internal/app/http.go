package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"discovery/api/internal/attachments"
	"discovery/api/internal/blob"
	"discovery/api/internal/intake"
	"discovery/api/internal/logging"
	"discovery/api/internal/wizard"
)

const (
	maxMultipartMemory = 32 << 20
	// Room for part headers and boundaries on top of the file bytes.
	multipartOverhead = 1 << 20
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        *logging.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, log *logging.Logger) *HTTPServer {
	if log == nil {
		log = logging.Nop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: log.With("component", "http")}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks, ready := s.service.Readiness(ctx)
		status, statusCode := "ready", http.StatusOK
		if !ready {
			status, statusCode = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     ready,
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/form" {
		writeJSON(w, http.StatusOK, s.service.Definition())
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/sessions" {
		var body struct {
			SessionID string `json:"sessionId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, restored, err := s.service.StartSession(r.Context(), body.SessionID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": view, "restored": restored})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "sessions" {
		s.handleSession(w, r, parts[2], parts[3:])
		return
	}
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "submissions" {
		s.handleSubmissions(w, r, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request, sessionID string, parts []string) {
	session, err := s.service.Session(sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		writeJSON(w, http.StatusOK, map[string]any{"session": session.View()})

	case r.Method == http.MethodPatch && len(parts) == 1 && parts[0] == "fields":
		patch, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "unreadable body", nil)
			return
		}
		notice, err := session.UpdateFields(r.Context(), patch)
		s.respond(w, r, session, notice, err)

	case r.Method == http.MethodPost && len(parts) == 2 && parts[0] == "files":
		s.handleStageFiles(w, r, session, parts[1])

	case r.Method == http.MethodDelete && len(parts) == 3 && parts[0] == "files":
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INDEX", "index must be an integer", nil)
			return
		}
		s.respond(w, r, session, nil, session.RemoveFile(parts[1], index))

	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "next":
		notice, err := session.Next(r.Context())
		s.respond(w, r, session, notice, err)

	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "previous":
		s.respond(w, r, session, nil, session.Previous())

	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "save":
		notice, err := session.Save(r.Context())
		s.respond(w, r, session, notice, err)

	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "submit":
		notice, err := session.Submit(r.Context())
		s.respond(w, r, session, notice, err)

	case r.Method == http.MethodPost && len(parts) == 2 && parts[0] == "sections":
		k, err := strconv.Atoi(parts[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SECTION", "section must be an integer", nil)
			return
		}
		notice, err := session.Jump(r.Context(), k)
		s.respond(w, r, session, notice, err)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleStageFiles(w http.ResponseWriter, r *http.Request, session *wizard.Controller, field string) {
	rule, ok := s.service.Definition().Rule(field)
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: %s", wizard.ErrUnknownField, field))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(rule.MaxFiles)*rule.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_MULTIPART_FORM", err.Error(), nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "NO_FILES", "no files in the \"files\" part", nil)
		return
	}
	files := make([]attachments.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > rule.MaxBytes() {
			// Staged without its bytes; validation rejects it on size.
			files = append(files, attachments.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Size: fh.Size})
			continue
		}
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "UNREADABLE_FILE", fmt.Sprintf("open %s", fh.Filename), nil)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "UNREADABLE_FILE", fmt.Sprintf("read %s", fh.Filename), nil)
			return
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		files = append(files, attachments.File{Name: fh.Filename, ContentType: contentType, Data: data})
	}

	result, err := session.StageFiles(field, files)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rejections := result.Rejections
	if rejections == nil {
		rejections = []attachments.Rejection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":    session.View(),
		"accepted":   len(result.Accepted),
		"rejections": rejections,
		"dropped":    result.Dropped,
	})
}

func (s *HTTPServer) handleSubmissions(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	switch len(parts) {
	case 0:
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		payload, err := s.service.ListSubmissions(r.Context(), SubmissionQuery{
			Text:   query.Get("q"),
			Status: strings.TrimSpace(query.Get("status")),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case 1:
		sub, err := s.service.GetSubmission(r.Context(), parts[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"submission": sub})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

// respond writes the session view with its notice. A failed operation that
// still produced a notice carries it in the error details.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, session *wizard.Controller, notice *wizard.Notice, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		if notice != nil {
			details = map[string]any{"notice": notice, "session": session.View()}
		}
		s.logFailure(r, status, err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session.View(), "notice": notice})
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	s.logFailure(r, status, err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) logFailure(r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", id)

		next.ServeHTTP(writer, r)

		s.log.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var uploadErr *blob.UploadError
	if errors.As(err, &uploadErr) {
		return http.StatusBadGateway, "UPLOAD_FAILED", err.Error(), map[string]any{"file": uploadErr.FileName}
	}
	var persistErr *intake.PersistenceError
	if errors.As(err, &persistErr) {
		return http.StatusBadGateway, "PERSISTENCE_FAILED", err.Error(), map[string]any{"op": persistErr.Op}
	}
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, wizard.ErrAlreadySubmitted):
		return http.StatusConflict, "ALREADY_SUBMITTED", "The form has already been submitted", nil
	case errors.Is(err, wizard.ErrSubmitInProgress):
		return http.StatusConflict, "SUBMIT_IN_PROGRESS", "The form is being submitted", nil
	case errors.Is(err, wizard.ErrNotOnLastSection):
		return http.StatusConflict, "NOT_ON_LAST_SECTION", "Submit is only available on the last section", nil
	case errors.Is(err, wizard.ErrSectionOutOfRange),
		errors.Is(err, wizard.ErrUnknownField),
		errors.Is(err, wizard.ErrInvalidPatch),
		errors.Is(err, wizard.ErrInvalidSessionID),
		errors.Is(err, attachments.ErrIndexOutOfRange),
		errors.Is(err, intake.ErrEmailRequired):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
