package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/password"
	"github.com/ashley-ai/sentinel/session"
	"github.com/ashley-ai/sentinel/upload"
)

// multipartOverhead is the allowance for multipart framing on top of the
// profile's maximum file size.
const multipartOverhead = 1 << 20

// ListSessions returns the caller's active sessions, most recently active
// first.
func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	pg, err := parsePage(r, maxSessionPage)
	if err != nil {
		mapError(w, err)
		return
	}

	st := authFromContext(r.Context())
	views, err := a.sessions.List(r.Context(), st.session.UserID, st.session.Token)
	if err != nil {
		a.logger.Error("listing sessions failed", "user_id", st.session.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	start, end := pg.bounds(len(views))
	writeJSON(w, http.StatusOK, ListSessionsResponse{
		Sessions:       views[start:end],
		PaginationMeta: pg.meta(len(views), end-start),
	})
}

// RevokeSession revokes one of the caller's sessions. Unknown ids and
// sessions owned by other users are accepted without effect.
func (a *API) RevokeSession(w http.ResponseWriter, r *http.Request, rec audit.Recorder) error {
	st := authFromContext(r.Context())
	id := chi.URLParam(r, "sessionID")
	if err := a.sessions.Revoke(r.Context(), id, st.session.UserID); err != nil {
		return err
	}
	rec(r.Context(), audit.Entry{
		UserID:     st.session.UserID,
		ResourceID: id,
		Severity:   audit.SeverityInfo,
	})
	if id == st.session.ID {
		clearSessionCookie(w, r)
		clearCSRFCookie(w, r)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// RevokeOtherSessions revokes every session of the caller except the one
// making the request.
func (a *API) RevokeOtherSessions(w http.ResponseWriter, r *http.Request, rec audit.Recorder) error {
	st := authFromContext(r.Context())
	n, err := a.sessions.RevokeAll(r.Context(), st.session.UserID, st.session.ID)
	if err != nil {
		return err
	}
	rec(r.Context(), audit.Entry{
		UserID:   st.session.UserID,
		Details:  map[string]any{"count": n, "kept_session_id": st.session.ID},
		Severity: audit.SeverityInfo,
	})
	writeJSON(w, http.StatusOK, RevokeResponse{Revoked: n})
	return nil
}

// ExtendSession pushes the expiry of one of the caller's sessions forward.
func (a *API) ExtendSession(w http.ResponseWriter, r *http.Request, rec audit.Recorder) error {
	st := authFromContext(r.Context())
	id := chi.URLParam(r, "sessionID")

	var req ExtendSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return badRequest("invalid request body")
		}
	}
	if req.Days < 0 {
		return badRequest("days must not be negative")
	}
	if req.Days == 0 {
		req.Days = session.DefaultExtendDays
	}

	views, err := a.sessions.List(r.Context(), st.session.UserID, "")
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(views, func(v session.View) bool { return v.ID == id }) {
		return errSessionNotFound
	}

	ok, err := a.sessions.Extend(r.Context(), id, req.Days)
	if err != nil {
		return err
	}
	if !ok {
		return errSessionNotFound
	}
	rec(r.Context(), audit.Entry{
		UserID:     st.session.UserID,
		ResourceID: id,
		Details:    map[string]any{"days": req.Days},
		Severity:   audit.SeverityInfo,
	})
	writeJSON(w, http.StatusOK, ExtendSessionResponse{SessionID: id, Days: req.Days})
	return nil
}

// AssessPassword scores a candidate password against the configured
// policy and, when asked and configured, the breach corpus. A breached
// password is reported as invalid.
func (a *API) AssessPassword(w http.ResponseWriter, r *http.Request) {
	var req AssessPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := AssessPasswordResponse{Assessment: password.Validate(req.Password, a.requirements)}
	if req.CheckBreach && a.breach != nil {
		br := a.breach.Check(r.Context(), req.Password)
		resp.Breach = &br
		if br.Pwned {
			resp.Valid = false
			resp.Errors = append(resp.Errors, password.MsgBreached)
		}
	}
	resp.Feedback = password.Feedback(resp.Assessment)
	writeJSON(w, http.StatusOK, resp)
}

// ValidateUpload checks the multipart "file" part against the profile
// named by the "profile" query parameter (document by default). Invalid
// files are answered with 422 and the full result.
func (a *API) ValidateUpload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("profile")
	if name == "" {
		name = "document"
	}
	cfg, ok := upload.Profile(name)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown upload profile")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxSize+multipartOverhead)
	file, err := readFilePart(r, cfg.MaxSize)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the profile size limit")
			return
		}
		if errors.Is(err, errMissingFilePart) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	res := a.uploads.Validate(r.Context(), file, cfg)

	status := http.StatusOK
	if !res.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

var errMissingFilePart = errors.New("missing file part")

// readFilePart streams the first "file" part of a multipart body. Nothing is
// spooled to disk; at most maxSize+1 bytes are kept so the validator can
// still report an oversized file.
func readFilePart(r *http.Request, maxSize int64) (upload.File, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return upload.File{}, errMissingFilePart
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return upload.File{}, errMissingFilePart
		}
		if err != nil {
			return upload.File{}, err
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, maxSize+1))
		part.Close()
		if err != nil {
			return upload.File{}, err
		}
		return upload.File{
			Name:     part.FileName(),
			MIMEType: part.Header.Get("Content-Type"),
			Data:     data,
		}, nil
	}
}
