package message

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	myMiddleware "pairchat/internal/middleware"
	"pairchat/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(s *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := myMiddleware.WithIdentity(r.Context(), r.Header.Get("X-Test-User"), "")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route("/api/messages", NewHandler(s).Routes)
	return r
}

func do(h http.Handler, method, path, as, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Test-User", as)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerMessageFlow(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f.service)

	rec := do(h, http.MethodPost, "/api/messages", "alice",
		`{"connectionId":"`+f.conn.ID+`","senderId":"alice","content":"hi bob"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var m Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "hi bob", m.Content)

	rec = do(h, http.MethodPost, "/api/messages", "alice",
		`{"connectionId":"missing","senderId":"alice","content":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPost, "/api/messages", "alice",
		`{"connectionId":"`+f.conn.ID+`","senderId":"alice","content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/messages/connection/"+f.conn.ID, "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = do(h, http.MethodGet, "/api/messages/connection/unknown", "bob", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(h, http.MethodPut, "/api/messages/read/"+f.conn.ID, "bob", `{"userId":"bob"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Messages marked as read"}`, rec.Body.String())

	rec = do(h, http.MethodDelete, "/api/messages/"+m.ID, "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(h, http.MethodDelete, "/api/messages/"+m.ID, "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodDelete, "/api/messages/"+m.ID, "alice", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerSendBodyLimit(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f.service)

	escaped := strings.Repeat(`\u0001`, MaxContentLength)
	rec := do(h, http.MethodPost, "/api/messages", "alice",
		`{"connectionId":"`+f.conn.ID+`","senderId":"alice","content":"`+escaped+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var m Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Len(t, m.Content, MaxContentLength)

	rec = do(h, http.MethodPost, "/api/messages", "alice",
		`{"connectionId":"`+f.conn.ID+`","senderId":"alice","content":"`+strings.Repeat("a", web.MaxBodyBytes)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"request body too large"}`, rec.Body.String())
}
