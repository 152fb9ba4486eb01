package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Togather-Foundation/datastudy/internal/api/middleware"
	"github.com/Togather-Foundation/datastudy/internal/api/problem"
	"github.com/Togather-Foundation/datastudy/internal/audit"
	"github.com/Togather-Foundation/datastudy/internal/domain/records"
)

const (
	msgCreated      = "Data added successfully and sent to Kafka."
	msgCleared      = "Table cleared and sequence reset."
	msgUpdated      = "Data updated successfully and sent to Kafka."
	msgDeleted      = "Data deleted successfully and delete event sent to Kafka."
	msgNotFound     = "Data not found."
	msgBodyTooLarge = "Request body too large."

	problemServerError = "https://datastudy.dev/problems/server-error"
)

// RecordService is the behaviour RecordsHandler needs from records.Service.
type RecordService interface {
	List(ctx context.Context) ([]records.Record, error)
	Get(ctx context.Context, id int64) (*records.Record, error)
	Create(ctx context.Context, text string) (*records.Record, error)
	Update(ctx context.Context, id int64, text string) (*records.Record, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
}

var _ RecordService = (*records.Service)(nil)

type RecordsHandler struct {
	Service RecordService
	Env     string
	// Audit receives one entry per mutation outcome. Nil disables auditing.
	Audit *audit.Logger
}

func NewRecordsHandler(service RecordService, env string) *RecordsHandler {
	return &RecordsHandler{Service: service, Env: env}
}

type recordResponse struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Time string `json:"time"`
}

func toRecordResponse(record records.Record) recordResponse {
	return recordResponse{
		ID:   record.ID,
		Text: record.Text,
		Time: record.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	payload := make([]recordResponse, 0, len(items))
	for _, item := range items {
		payload = append(payload, toRecordResponse(item))
	}
	writeJSON(w, http.StatusOK, payload, contentTypeJSON)
}

func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readText(w, r)
	if !ok {
		return
	}

	record, err := h.Service.Create(r.Context(), text)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.audit(r, "record.create", record.ID, audit.StatusSuccess)
	writeText(w, http.StatusOK, msgCreated)
}

func (h *RecordsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteAll(r.Context()); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.audit(r, "record.delete_all", 0, audit.StatusSuccess)
	writeText(w, http.StatusOK, msgCleared)
}

func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	record, err := h.Service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			writeText(w, http.StatusNotFound, msgNotFound)
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(*record), contentTypeJSON)
}

// Update validates the body before looking the record up, so an invalid body
// for an unknown id is a 400, not a 404.
func (h *RecordsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	text, ok := h.readText(w, r)
	if !ok {
		return
	}

	if _, err := h.Service.Update(r.Context(), id, text); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			h.audit(r, "record.update", id, audit.StatusNotFound)
			writeText(w, http.StatusNotFound, msgNotFound)
			return
		}
		h.serverError(w, r, err)
		return
	}
	h.audit(r, "record.update", id, audit.StatusSuccess)
	writeText(w, http.StatusOK, msgUpdated)
}

func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			h.audit(r, "record.delete", id, audit.StatusNotFound)
			writeText(w, http.StatusNotFound, msgNotFound)
			return
		}
		h.serverError(w, r, err)
		return
	}
	h.audit(r, "record.delete", id, audit.StatusSuccess)
	writeText(w, http.StatusOK, msgDeleted)
}

// readText reads and validates the {"text": ...} body. On failure it has already
// written the 400 or 413 response.
func (h *RecordsHandler) readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeText(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return "", false
		}
		writeText(w, http.StatusBadRequest, records.ValidationError{Kind: records.KindMalformedBody}.Error())
		return "", false
	}

	payload, err := records.DecodeTextPayload(body)
	if err == nil {
		var text string
		text, err = records.ValidateText(payload.Text)
		if err == nil {
			return text, true
		}
	}

	var verr records.ValidationError
	if errors.As(err, &verr) {
		writeText(w, http.StatusBadRequest, verr.Error())
		return "", false
	}
	h.serverError(w, r, err)
	return "", false
}

func (h *RecordsHandler) audit(r *http.Request, action string, id int64, status string) {
	if h.Audit == nil {
		return
	}
	var subject, resourceID string
	if info, ok := middleware.TokenInfoFromContext(r.Context()); ok {
		subject = info.Principal()
	}
	if id > 0 {
		resourceID = strconv.FormatInt(id, 10)
	}
	h.Audit.LogRequest(r, subject, middleware.GetRequestID(r.Context()), action, resourceID, status)
}

func (h *RecordsHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env,
		problem.WithRequestID(middleware.GetRequestID(r.Context())))
}

// recordID parses the {id} path value. The router already rejects ids that do not
// fit in int64; a failure here is answered the same way, as an unknown path.
func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return 0, false
	}
	return id, true
}
