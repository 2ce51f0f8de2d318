package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "restopos/internal/core/context"
	"restopos/internal/domain"
	"restopos/internal/domain/auth"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/infrastructure/http/v1/handlers"
	"restopos/pkg/logger"
)

type listingWarehouses struct {
	handlers.WarehouseService
	actors []string
}

func (w *listingWarehouses) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*warehouse.Warehouse], error) {
	w.actors = append(w.actors, appctx.ActorID(ctx))
	return domain.ListResult[*warehouse.Warehouse]{Limit: filter.Limit}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterRequiresTokenWhenJWTConfigured(t *testing.T) {
	jwtService, err := auth.NewJWTService(auth.DefaultJWTConfig("router-test-secret"))
	require.NoError(t, err)

	warehouses := &listingWarehouses{}
	router := NewRouter(RouterConfig{
		Logger:       logger.NewNop(),
		JWTValidator: jwtService,
		Warehouses:   warehouses,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/warehouses", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, warehouses.actors)

	token, _, err := jwtService.GenerateAccessToken("manager-7", "Manager", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/warehouses", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"manager-7"}, warehouses.actors)
}

func TestRouterTrustedActorWithoutJWT(t *testing.T) {
	warehouses := &listingWarehouses{}
	router := NewRouter(RouterConfig{Logger: logger.NewNop(), Warehouses: warehouses})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/warehouses", nil)
	req.Header.Set("X-Actor-ID", "cashier-2")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"cashier-2"}, warehouses.actors)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/inventory", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "websocket route is off without a hub")
}
