package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dmehra2102/inventory-hub/internal/auth"
	catalogapp "github.com/dmehra2102/inventory-hub/internal/catalog/application"
	dashboardapp "github.com/dmehra2102/inventory-hub/internal/dashboard/application"
	inventoryapp "github.com/dmehra2102/inventory-hub/internal/inventory/application"
	orderapp "github.com/dmehra2102/inventory-hub/internal/order/application"
	"github.com/dmehra2102/inventory-hub/internal/storage/memory"
	"github.com/dmehra2102/inventory-hub/pkg/logging"
)

type APISuite struct {
	suite.Suite
	srv    *httptest.Server
	tokens *auth.Tokens
	admin  string
	staffA string
	staffB string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	log := logging.Discard()
	store := memory.New()
	catalog := catalogapp.NewService(log, store, nil)
	inventory := inventoryapp.NewService(log, store, store, catalog)
	orders := orderapp.NewEngine(log, store, store, catalog)

	s.tokens = auth.NewTokens("test-secret", time.Hour)
	s.srv = httptest.NewServer(NewRouter(Deps{
		Log:       log,
		Verifier:  s.tokens,
		Catalog:   catalog,
		Inventory: inventory,
		Orders:    orders,
		Dashboard: dashboardapp.NewService(catalog, inventory, orders),
	}))

	s.admin = s.token("admin-1", auth.RoleAdmin)
	s.staffA = s.token("staff-a", auth.RoleStaff)
	s.staffB = s.token("staff-b", auth.RoleStaff)
}

func (s *APISuite) TearDownTest() {
	s.srv.Close()
}

func (s *APISuite) token(id string, role auth.Role) string {
	tok, err := s.tokens.Issue(auth.Caller{ID: id, Role: role})
	s.Require().NoError(err)
	return tok
}

func (s *APISuite) do(method, path, token string, body any) (int, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.srv.URL+path, &buf)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *APISuite) createProduct(name string, price float64, stock int) string {
	code, body := s.do(http.MethodPost, "/api/products", s.admin, map[string]any{"name": name, "sku": name, "price": price})
	s.Require().Equal(http.StatusCreated, code, body)
	id := body["product"].(map[string]any)["id"].(string)
	if stock > 0 {
		code, body = s.do(http.MethodPost, "/api/inventory/"+id+"/adjust", s.admin, map[string]any{"type": "in", "amount": stock})
		s.Require().Equal(http.StatusOK, code, body)
	}
	return id
}

func (s *APISuite) TestHealthzIsPublic() {
	code, body := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, code)
	s.Equal("ok", body["status"])
}

func (s *APISuite) TestAuthRequired() {
	code, _ := s.do(http.MethodGet, "/api/orders", "", nil)
	s.Equal(http.StatusUnauthorized, code)
	code, _ = s.do(http.MethodGet, "/api/orders", "garbage", nil)
	s.Equal(http.StatusUnauthorized, code)
}

func (s *APISuite) TestAdminRoutesRejectStaff() {
	code, _ := s.do(http.MethodPost, "/api/products", s.staffA, map[string]any{"name": "x", "sku": "x", "price": 1})
	s.Equal(http.StatusForbidden, code)

	id := s.createProduct("Lamp", 100, 10)
	code, _ = s.do(http.MethodPost, "/api/inventory/"+id+"/adjust", s.staffA, map[string]any{"type": "in", "amount": 1})
	s.Equal(http.StatusForbidden, code)
}

func (s *APISuite) TestPlaceOrderFlow() {
	id := s.createProduct("Lamp", 100, 10)

	code, body := s.do(http.MethodPost, "/api/orders", s.staffA, map[string]any{
		"items":    []map[string]any{{"productId": id, "quantity": 3}},
		"tax":      10,
		"discount": 5,
	})
	s.Require().Equal(http.StatusCreated, code, body)
	order := body["order"].(map[string]any)
	s.Equal("305", order["total"])
	s.Equal("placed", order["status"])
	orderID := order["id"].(string)

	code, body = s.do(http.MethodGet, "/api/inventory/"+id, s.staffA, nil)
	s.Require().Equal(http.StatusOK, code)
	s.EqualValues(7, body["quantity"])

	code, _ = s.do(http.MethodGet, "/api/orders/"+orderID, s.staffB, nil)
	s.Equal(http.StatusForbidden, code)
	code, _ = s.do(http.MethodGet, "/api/orders/"+orderID, s.admin, nil)
	s.Equal(http.StatusOK, code)

	code, body = s.do(http.MethodPut, "/api/orders/"+orderID+"/status", s.admin, map[string]any{"status": "completed"})
	s.Require().Equal(http.StatusOK, code, body)
	s.Equal("completed", body["order"].(map[string]any)["status"])

	code, _ = s.do(http.MethodPut, "/api/orders/"+orderID+"/status", s.admin, map[string]any{"status": "lost"})
	s.Equal(http.StatusBadRequest, code)

	code, body = s.do(http.MethodGet, "/api/dashboard", s.staffA, nil)
	s.Require().Equal(http.StatusOK, code)
	s.EqualValues(1, body["totalProducts"])
	s.EqualValues(1, body["totalOrders"])
	s.Equal("305", body["totalRevenue"])
}

func (s *APISuite) TestOrderErrors() {
	id := s.createProduct("Chair", 20, 2)

	code, body := s.do(http.MethodPost, "/api/orders", s.staffA, map[string]any{
		"items": []map[string]any{{"productId": id, "quantity": 5}},
	})
	s.Equal(http.StatusConflict, code)
	s.EqualValues(2, body["available"])
	s.EqualValues(5, body["required"])

	code, _ = s.do(http.MethodPost, "/api/orders", s.staffA, map[string]any{"items": []any{}})
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/orders", s.staffA, map[string]any{
		"items": []map[string]any{{"productId": "nope", "quantity": 1}},
	})
	s.Equal(http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/api/orders/nope", s.staffA, nil)
	s.Equal(http.StatusNotFound, code)
}

func (s *APISuite) TestInventoryListAndSettings() {
	id := s.createProduct("Desk", 50, 3)

	level := 1
	code, body := s.do(http.MethodPut, "/api/inventory/"+id, s.admin, map[string]any{"reorderLevel": level, "location": "B2"})
	s.Require().Equal(http.StatusOK, code, body)
	inv := body["inventory"].(map[string]any)
	s.Equal("B2", inv["location"])
	s.EqualValues(3, inv["quantity"])

	code, body = s.do(http.MethodGet, "/api/inventory?lowStock=true", s.staffA, nil)
	s.Require().Equal(http.StatusOK, code)
	s.EqualValues(0, body["total"])

	code, body = s.do(http.MethodPost, "/api/inventory/"+id+"/adjust", s.admin, map[string]any{"type": "out", "amount": 2})
	s.Require().Equal(http.StatusOK, code)
	s.Equal(true, body["lowStock"])

	code, _ = s.do(http.MethodPost, "/api/inventory/"+id+"/adjust", s.admin, map[string]any{"type": "out", "amount": 9})
	s.Equal(http.StatusConflict, code)
}

func TestCallerScope(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "anonymous", CallerScope(r))

	r = r.WithContext(auth.WithCaller(r.Context(), auth.Caller{ID: "u9", Role: auth.RoleStaff}))
	require.Equal(t, "u9", CallerScope(r))
}
