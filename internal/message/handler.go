package message

import (
	"net/http"

	myMiddleware "pairchat/internal/middleware"
	"pairchat/internal/web"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	requester, _ := myMiddleware.UserID(r.Context())

	var req SendRequest
	if err := web.Decode(w, r, &req); err != nil {
		web.Error(w, r, err)
		return
	}

	m, err := h.Service.Post(r.Context(), requester, &req)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.JSON(w, http.StatusCreated, m)
}

func (h *Handler) ListForConnection(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Service.ListFor(r.Context(), chi.URLParam(r, "connectionId"))
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, messages)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	requester, _ := myMiddleware.UserID(r.Context())

	var req MarkReadRequest
	if r.ContentLength != 0 {
		if err := web.Decode(w, r, &req); err != nil {
			web.Error(w, r, err)
			return
		}
	}

	if _, err := h.Service.MarkRead(r.Context(), requester, chi.URLParam(r, "connectionId"), req.UserID); err != nil {
		web.Error(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, "Messages marked as read")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	requester, _ := myMiddleware.UserID(r.Context())

	if err := h.Service.Delete(r.Context(), requester, chi.URLParam(r, "id")); err != nil {
		web.Error(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, "Message deleted successfully")
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Send)
	r.Get("/connection/{connectionId}", h.ListForConnection)
	r.Put("/read/{connectionId}", h.MarkRead)
	r.Delete("/{id}", h.Delete)
}
