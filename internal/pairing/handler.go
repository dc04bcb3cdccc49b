package pairing

import (
	"net/http"
	"time"

	myMiddleware "pairchat/internal/middleware"
	"pairchat/internal/web"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *Service
	Clock   func() time.Time
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s, Clock: time.Now}
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	requester, _ := myMiddleware.UserID(r.Context())

	res, err := h.Service.Generate(requester, h.Clock())
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, res)
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	requester, _ := myMiddleware.UserID(r.Context())

	body, err := web.ReadBody(w, r)
	if err != nil {
		web.Error(w, r, err)
		return
	}

	res, err := h.Service.Scan(r.Context(), string(body), requester, h.Clock())
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, res)
}

// Validate answers 200 for every token; the body says whether it is valid.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.Service.Check(r.Context(), q.Get("userId"), q.Get("timestamp"), h.Clock())
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, res)
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/generate", h.Generate)
	r.Post("/scan", h.Scan)
	r.Get("/validate", h.Validate)
}
