package connection

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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	requester, _ := myMiddleware.UserID(r.Context())

	var req CreateRequest
	if err := web.Decode(w, r, &req); err != nil {
		web.Error(w, r, err)
		return
	}

	c, err := h.Service.Create(r.Context(), requester, req.User1ID, req.User2ID, req.Status)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.JSON(w, http.StatusCreated, c)
}

func (h *Handler) ListForUser(w http.ResponseWriter, r *http.Request) {
	connections, err := h.Service.ListFor(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, connections)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	requester, _ := myMiddleware.UserID(r.Context())

	var req StatusRequest
	if err := web.Decode(w, r, &req); err != nil {
		web.Error(w, r, err)
		return
	}

	c, err := h.Service.UpdateStatus(r.Context(), requester, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		web.Error(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, c)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	requester, _ := myMiddleware.UserID(r.Context())

	if err := h.Service.Delete(r.Context(), requester, chi.URLParam(r, "id")); err != nil {
		web.Error(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, "Connection deleted successfully")
}

// Routes mounts the connection endpoints; callers wrap them in auth.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/user/{userId}", h.ListForUser)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Delete)
}
