package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zariya-commerce/zariya/internal/router"
)

func tagging(tag string, log *[]string) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*log = append(*log, tag)
			next.ServeHTTP(w, r)
		})
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var log []string
	r := router.New(tagging("global", &log))

	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		log = append(log, "handler")
		w.WriteHeader(http.StatusOK)
	}, tagging("route", &log))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"global", "route", "handler"}, log)
}

func TestMethodRouting(t *testing.T) {
	r := router.New()
	r.Post("/orders", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPathValues(t *testing.T) {
	r := router.New()
	r.Get("/orders/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(req.PathValue("id")))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ord_42", nil))
	assert.Equal(t, "ord_42", rec.Body.String())
}

func TestGroupMiddlewareDoesNotLeak(t *testing.T) {
	var log []string
	r := router.New()
	admin := r.Group(tagging("admin", &log))

	admin.Get("/admin/ping", func(w http.ResponseWriter, req *http.Request) {})
	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Empty(t, log)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/ping", nil))
	assert.Equal(t, []string{"admin"}, log)
}
