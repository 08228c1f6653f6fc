package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badguys/internal/settings/service"
	"badguys/internal/settings/store/setting"
	"badguys/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := service.New(setting.NewInMemory())
	require.NoError(t, err)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestSettingsRoutes(t *testing.T) {
	router := newRouter(t)
	admin := testutil.AdminActor()

	get := func() *StatusResponse {
		rr := testutil.DoRequest(router, testutil.WithActor(
			testutil.NewRequest(t, http.MethodGet, "/admin/settings/linkedin_api_key"), admin))
		testutil.AssertStatusOK(t, rr)
		return testutil.UnmarshalResponse[StatusResponse](t, rr)
	}

	assert.False(t, get().Configured)

	rr := testutil.DoRequest(router, testutil.WithActor(
		testutil.NewJSONRequest(t, http.MethodPut, "/admin/settings/linkedin_api_key", PutRequest{Value: "sk-secret"}), admin))
	testutil.AssertStatusOK(t, rr)
	assert.NotContains(t, rr.Body.String(), "sk-secret")

	status := get()
	assert.True(t, status.Configured)
	assert.Equal(t, "linkedin_api_key", status.Key)
}

func TestSettingsRoutes_Errors(t *testing.T) {
	router := newRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, "/admin/settings/api_key", PutRequest{Value: "v"}))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	rr = testutil.DoRequest(router, testutil.WithActor(
		testutil.NewRequest(t, http.MethodGet, "/admin/settings/api_key"), testutil.UserActor()))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	rr = testutil.DoRequest(router, testutil.WithActor(
		testutil.NewJSONRequest(t, http.MethodPut, "/admin/settings/API-KEY", PutRequest{Value: "v"}), testutil.AdminActor()))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(router, testutil.WithActor(
		testutil.NewJSONRequest(t, http.MethodPut, "/admin/settings/api_key", PutRequest{Value: "  "}), testutil.AdminActor()))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
}
