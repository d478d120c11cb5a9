package idempotency

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/inventory-hub/pkg/logging"
)

const ttl = 10 * time.Minute

func scope(*http.Request) string { return "u1" }

func created(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"o-1"}`))
	})
}

func post(key string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))
	if key != "" {
		r.Header.Set(HeaderKey, key)
	}
	return r
}

func TestFirstRequestStoresResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewStore(rdb, ttl)

	stored, err := json.Marshal(Record{State: stateDone, Status: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"id":"o-1"}`)})
	require.NoError(t, err)
	mock.ExpectSetNX("idem:u1:k1", pendingMarker, ttl).SetVal(true)
	mock.ExpectSet("idem:u1:k1", stored, ttl).SetVal("OK")

	calls := 0
	rec := httptest.NewRecorder()
	Middleware(store, logging.Discard(), scope)(created(&calls)).ServeHTTP(rec, post("k1"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"o-1"}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepeatedKeyReplays(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewStore(rdb, ttl)

	stored, err := json.Marshal(Record{State: stateDone, Status: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"id":"o-1"}`)})
	require.NoError(t, err)
	mock.ExpectSetNX("idem:u1:k1", pendingMarker, ttl).SetVal(false)
	mock.ExpectGet("idem:u1:k1").SetVal(string(stored))

	calls := 0
	rec := httptest.NewRecorder()
	Middleware(store, logging.Discard(), scope)(created(&calls)).ServeHTTP(rec, post("k1"))

	assert.Zero(t, calls)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(HeaderReplayed))
	assert.JSONEq(t, `{"id":"o-1"}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInFlightKeyConflicts(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewStore(rdb, ttl)

	mock.ExpectSetNX("idem:u1:k1", pendingMarker, ttl).SetVal(false)
	mock.ExpectGet("idem:u1:k1").SetVal(pendingMarker)

	calls := 0
	rec := httptest.NewRecorder()
	Middleware(store, logging.Discard(), scope)(created(&calls)).ServeHTTP(rec, post("k1"))

	assert.Zero(t, calls)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServerErrorReleasesKey(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewStore(rdb, ttl)

	mock.ExpectSetNX("idem:u1:k1", pendingMarker, ttl).SetVal(true)
	mock.ExpectDel("idem:u1:k1").SetVal(1)

	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	rec := httptest.NewRecorder()
	Middleware(store, logging.Discard(), scope)(failing).ServeHTTP(rec, post("k1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoKeyAndRedisDownPassThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewStore(rdb, ttl)
	mw := Middleware(store, logging.Discard(), scope)

	calls := 0
	rec := httptest.NewRecorder()
	mw(created(&calls)).ServeHTTP(rec, post(""))
	assert.Equal(t, 1, calls)

	mock.ExpectSetNX("idem:u1:k2", pendingMarker, ttl).SetErr(errors.New("dial tcp: refused"))
	rec = httptest.NewRecorder()
	mw(created(&calls)).ServeHTTP(rec, post("k2"))
	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
