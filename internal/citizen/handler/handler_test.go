package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/citizen/handler"
	"civreg/internal/citizen/models"
	"civreg/internal/citizen/service"
	"civreg/internal/citizen/store"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(store.NewInMemory(), store.NewInMemoryHouseholds())
	h := handler.New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		h.RegisterPublic(r)
		h.RegisterAdmin(r)
	})
	return r
}

func registerBody(nid string) models.RegisterInput {
	return models.RegisterInput{
		NationalID:  nid,
		Name:        models.LocalizedName{Latin: "Farid Ahmadi"},
		FatherName:  models.LocalizedName{Latin: "Karim"},
		DateOfBirth: "1990-01-01",
		Gender:      "male",
		Address:     models.Address{Province: "Kabul"},
	}
}

func TestHandleRegister(t *testing.T) {
	t.Run("valid application is created pending", func(t *testing.T) {
		router := newRouter(t)
		registeredAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/register", registerBody("1001"))
		req = testutil.WithRequestTime(req, registeredAt)
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		resp := testutil.DecodeResponse[map[string]any](t, rr)
		assert.Equal(t, "pending", (*resp)["status"])
		assert.Equal(t, "1001", (*resp)["national_id"])
	})

	t.Run("malformed body returns bad request", func(t *testing.T) {
		router := newRouter(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/register", "not an object")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeBadRequest))
	})

	t.Run("duplicate national id returns conflict", func(t *testing.T) {
		router := newRouter(t)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/register", registerBody("1002")))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/register", registerBody("1002")))
		testutil.AssertStatus(t, rr, http.StatusConflict)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeConflict))
	})
}

func TestHandleSetStatus(t *testing.T) {
	register := func(t *testing.T, router http.Handler, nid string) string {
		t.Helper()
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/register", registerBody(nid)))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		resp := testutil.DecodeResponse[map[string]any](t, rr)
		return (*resp)["id"].(string)
	}

	t.Run("administrator approves a pending application", func(t *testing.T) {
		router := newRouter(t)
		citizenID := register(t, router, "2001")

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/"+citizenID+"/status", map[string]string{"status": "approved"})
		req = testutil.WithAdminSession(req, id.NewAdminID())
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.DecodeResponse[map[string]any](t, rr)
		assert.Equal(t, "approved", (*resp)["status"])
	})

	t.Run("pending is not a decision", func(t *testing.T) {
		router := newRouter(t)
		citizenID := register(t, router, "2002")

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/"+citizenID+"/status", map[string]string{"status": "pending"})
		req = testutil.WithAdminSession(req, id.NewAdminID())
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeValidation))
	})

	t.Run("unknown citizen returns not found", func(t *testing.T) {
		router := newRouter(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/"+id.NewCitizenID().String()+"/status", map[string]string{"status": "approved"})
		req = testutil.WithAdminSession(req, id.NewAdminID())
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeNotFound))
	})
}

func TestHandleIdentify(t *testing.T) {
	t.Run("pending application is withheld", func(t *testing.T) {
		router := newRouter(t)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/register", registerBody("3001")))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/identify", map[string]string{
			"national_id":   "3001",
			"date_of_birth": "1990-01-01",
		})
		rr = testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodePolicyViolation))
	})

	t.Run("approved citizen is returned", func(t *testing.T) {
		router := newRouter(t)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/register", registerBody("3002")))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		created := testutil.DecodeResponse[map[string]any](t, rr)
		citizenID := (*created)["id"].(string)

		approve := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/"+citizenID+"/status", map[string]string{"status": "approved"})
		approve = testutil.WithAdminSession(approve, id.NewAdminID())
		rr = testutil.DoRequest(router, approve)
		testutil.AssertStatus(t, rr, http.StatusOK)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/identify", map[string]string{
			"national_id":   "3002",
			"date_of_birth": "1990-01-01",
		})
		rr = testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.DecodeResponse[map[string]any](t, rr)
		assert.Equal(t, "3002", (*resp)["national_id"])
	})

	t.Run("wrong birth date is indistinguishable from no record", func(t *testing.T) {
		router := newRouter(t)

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/register", registerBody("3003")))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/identify", map[string]string{
			"national_id":   "3003",
			"date_of_birth": "1991-12-31",
		})
		rr = testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeNotFound))
	})
}

func TestHandleList(t *testing.T) {
	router := newRouter(t)

	for _, nid := range []string{"4001", "4002"} {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/citizens/register", registerBody(nid)))
		testutil.AssertStatus(t, rr, http.StatusCreated)
	}

	req := testutil.NewJSONRequest(t, http.MethodGet, "/api/v1/citizens?status=pending", nil)
	req = testutil.WithAdminSession(req, id.NewAdminID())
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.DecodeResponse[map[string][]map[string]any](t, rr)
	require.Len(t, (*resp)["citizens"], 2)

	req = testutil.NewJSONRequest(t, http.MethodGet, "/api/v1/citizens?status=bogus", nil)
	req = testutil.WithAdminSession(req, id.NewAdminID())
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}
