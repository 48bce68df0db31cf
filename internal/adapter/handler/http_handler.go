package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/rl1809/library-lending/internal/adapter/auth"
	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
	"github.com/rl1809/library-lending/internal/port"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	lending  *service.LendingService
	query    *service.QueryService
	resolver port.PrincipalResolver
	logger   *zap.Logger
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func NewHTTPHandler(
	logger *zap.Logger,
	lending *service.LendingService,
	query *service.QueryService,
	resolver port.PrincipalResolver,
) *HTTPHandler {
	return &HTTPHandler{
		lending:  lending,
		query:    query,
		resolver: resolver,
		logger:   logger,
	}
}

// Routes registers every endpoint on a fresh router.
func (h *HTTPHandler) Routes() *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("the requested resource could not be found"))
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	})

	router.HandlerFunc(http.MethodGet, "/health", h.HealthCheck)
	router.HandlerFunc(http.MethodPost, "/v1/lendings", h.Borrow)
	router.HandlerFunc(http.MethodPut, "/v1/lendings", h.UpdateLending)
	router.HandlerFunc(http.MethodGet, "/v1/lendings", h.ListLendings)
	router.HandlerFunc(http.MethodGet, "/v1/books/:id/availability", h.Availability)
	router.HandlerFunc(http.MethodPost, "/v1/books/:id/restock", h.Restock)
	return router
}

func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req BorrowRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("Idempotency-Key")
	}
	cmd, err := req.command()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lending, err := h.lending.Borrow(r.Context(), p, cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BorrowResponse{Message: msgBorrowed, LendingID: lending.ID})
}

func (h *HTTPHandler) UpdateLending(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req UpdateLendingRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	cmd, err := req.command()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.lending.UpdateLending(r.Context(), p, cmd); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgUpdated})
}

func (h *HTTPHandler) ListLendings(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		h.writeError(w, r, domain.InvalidInput("user_id query parameter is required"))
		return
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, r, domain.InvalidInput("user_id must be a valid number"))
		return
	}

	rows, err := h.query.ListByUser(r.Context(), p, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(rows))
}

func (h *HTTPHandler) Availability(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bookID, err := readIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	avail, err := h.query.Availability(r.Context(), p, bookID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

func (h *HTTPHandler) Restock(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bookID, err := readIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req restockRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	avail, err := h.lending.Restock(r.Context(), p, bookID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// principal resolves the caller from the auth cookie, falling back to the
// Authorization header.
func (h *HTTPHandler) principal(r *http.Request) (*domain.Principal, error) {
	credential := r.Header.Get("Authorization")
	if c, err := r.Cookie(auth.CookieName); err == nil && c.Value != "" {
		credential = c.Value
	}
	return h.resolver.Resolve(r.Context(), credential)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, errorBody(message))
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func readIDParam(r *http.Request) (int64, error) {
	params := httprouter.ParamsFromContext(r.Context())
	id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, domain.InvalidInput("book_id must be a number greater than 0")
	}
	return id, nil
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.InvalidInput("request body must not exceed %d bytes", tooLarge.Limit)
		}
		return domain.InvalidInput("malformed JSON request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
