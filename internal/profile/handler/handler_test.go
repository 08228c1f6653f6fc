package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"badguys/internal/profile/analyzer"
	"badguys/internal/profile/models"
	"badguys/internal/profile/service"
	profilestore "badguys/internal/profile/store/profile"
	"badguys/internal/profile/urlcheck"
	"badguys/pkg/domain"
	"badguys/pkg/platform/httputil"
	"badguys/pkg/testutil"
)

// HandlerSuite drives the handler through a real service, the in-memory store
// and an analyzer pointed at a fake upstream.
type HandlerSuite struct {
	suite.Suite
	router        http.Handler
	upstream      *httptest.Server
	upstreamCalls atomic.Int32
	upstreamCode  int
	upstreamScore float64
	admin         domain.Actor
	user          domain.Actor
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.upstreamCalls.Store(0)
	s.upstreamCode = http.StatusOK
	s.upstreamScore = 87
	s.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.upstreamCalls.Add(1)
		if s.upstreamCode != http.StatusOK {
			w.WriteHeader(s.upstreamCode)
			_, _ = w.Write([]byte(`{"error":"upstream"}`))
			return
		}
		args := fmt.Sprintf(`{"name":"John Doe","title":"Crypto Recruiter","riskScore":%v,"analysis":"Generic title"}`, s.upstreamScore)
		argsJSON, _ := json.Marshal(args)
		_, _ = fmt.Fprintf(w, `{"choices":[{"message":{"tool_calls":[{"function":{"name":"analyze_profile","arguments":%s}}]}}]}`, argsJSON)
	}))
	s.T().Cleanup(s.upstream.Close)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc, err := service.New(profilestore.NewInMemory(),
		analyzer.New("test-key", analyzer.WithEndpoint(s.upstream.URL), analyzer.WithLogger(logger)),
		service.WithLogger(logger),
	)
	s.Require().NoError(err)

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	s.router = r
	s.admin = testutil.AdminActor()
	s.user = testutil.UserActor()
}

func (s *HandlerSuite) do(method, path, body string, actor *domain.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req = testutil.WithActor(req, *actor)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decodeError(rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	var resp httputil.ErrorResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func (s *HandlerSuite) createProfile(url string) *models.Profile {
	rec := s.do(http.MethodPost, "/admin/profiles", `{"url":"`+url+`"}`, &s.admin)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var p models.Profile
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&p))
	return &p
}

func (s *HandlerSuite) TestValidate() {
	s.Run("accepted url describes the reference", func() {
		rec := s.do(http.MethodPost, "/profiles/validate", `{"url":" https://www.linkedin.com/in/jane-doe/ "}`, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp ValidateResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.True(resp.Valid)
		s.Equal("https://www.linkedin.com/in/jane-doe/", resp.URL)
		s.Equal("in", resp.Kind)
		s.Equal("jane-doe", resp.Identifier)
	})

	s.Run("lookalike host is a validation error", func() {
		rec := s.do(http.MethodPost, "/profiles/validate", `{"url":"https://evil-linkedin.com.attacker.net/in/x"}`, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
		resp := s.decodeError(rec)
		s.Equal("validation_error", resp.Error)
		s.Contains(resp.ErrorDescription, "linkedin.com")
	})

	s.Run("blank and oversized urls carry the validator's message", func() {
		tests := []struct {
			body string
			want string
		}{
			{`{"url":"   "}`, urlcheck.EmptyInput.Message()},
			{`{}`, urlcheck.EmptyInput.Message()},
			{`{"url":"https://linkedin.com/in/` + strings.Repeat("a", urlcheck.MaxLength) + `"}`, urlcheck.MalformedURL.Message()},
		}
		for _, tt := range tests {
			for _, path := range []string{"/profiles/validate", "/admin/profiles/analyze", "/admin/profiles"} {
				rec := s.do(http.MethodPost, path, tt.body, &s.admin)
				s.Equal(http.StatusBadRequest, rec.Code, path)
				resp := s.decodeError(rec)
				s.Equal("validation_error", resp.Error, path)
				s.Equal(tt.want, resp.ErrorDescription, path)
			}
		}
		s.Zero(s.upstreamCalls.Load())
	})

	s.Run("missing body is a bad request", func() {
		rec := s.do(http.MethodPost, "/profiles/validate", "", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid json is a bad request", func() {
		rec := s.do(http.MethodPost, "/profiles/validate", `{"url":`, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("bad_request", s.decodeError(rec).Error)
	})
}

func (s *HandlerSuite) TestAdminRoutesRequireAdmin() {
	id := domain.NewProfileID().String()
	routes := []struct{ method, path, body string }{
		{http.MethodGet, "/admin/profiles", ""},
		{http.MethodPost, "/admin/profiles", `{"url":"https://linkedin.com/in/x"}`},
		{http.MethodPost, "/admin/profiles/analyze", `{"url":"https://linkedin.com/in/x"}`},
		{http.MethodPatch, "/admin/profiles/" + id + "/status", `{"status":"verified"}`},
		{http.MethodPost, "/admin/profiles/" + id + "/reanalyze", ""},
		{http.MethodPatch, "/admin/profiles/" + id + "/active", `{"active":false}`},
		{http.MethodDelete, "/admin/profiles/" + id, ""},
	}
	for _, rt := range routes {
		s.Run(rt.method+" "+rt.path, func() {
			s.Equal(http.StatusUnauthorized, s.do(rt.method, rt.path, rt.body, nil).Code)
			s.Equal(http.StatusForbidden, s.do(rt.method, rt.path, rt.body, &s.user).Code)
		})
	}
	s.Equal(int32(0), s.upstreamCalls.Load(), "unauthorized calls never reach the analyzer")
}

func (s *HandlerSuite) TestAnalyzePersistsNothing() {
	rec := s.do(http.MethodPost, "/admin/profiles/analyze", `{"url":"https://linkedin.com/in/johndoe"}`, &s.admin)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var a models.Analysis
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&a))
	s.Equal("John Doe", a.Name)
	s.Equal(87, a.RiskScore)

	list := s.do(http.MethodGet, "/admin/profiles", "", &s.admin)
	var resp ProfileListResponse
	s.Require().NoError(json.NewDecoder(list.Body).Decode(&resp))
	s.Empty(resp.Profiles)
}

func (s *HandlerSuite) TestCreate() {
	s.Run("url only runs the analyzer and clamps the score", func() {
		s.upstreamScore = 150
		p := s.createProfile("https://linkedin.com/in/johndoe")
		s.Equal(100, p.RiskScore)
		s.Equal(models.StatusPending, p.Status)
		s.Equal(1, p.ReportCount)
		s.Equal(int32(1), s.upstreamCalls.Load())
	})

	s.Run("supplied analysis is saved without calling the analyzer", func() {
		calls := s.upstreamCalls.Load()
		body := `{"url":"https://linkedin.com/company/acme","analysis":{"name":"Acme","title":"Jobs","risk_score":-5,"analysis":"ok"}}`
		rec := s.do(http.MethodPost, "/admin/profiles", body, &s.admin)
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		var p models.Profile
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&p))
		s.Equal(0, p.RiskScore)
		s.Equal(calls, s.upstreamCalls.Load())
	})

	s.Run("duplicate url is a conflict", func() {
		rec := s.do(http.MethodPost, "/admin/profiles", `{"url":"https://linkedin.com/in/johndoe"}`, &s.admin)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("profile already reported", s.decodeError(rec).ErrorDescription)
	})
}

func (s *HandlerSuite) TestUpstreamFailuresMapToStatus() {
	cases := []struct {
		upstream int
		want     int
		code     string
	}{
		{http.StatusTooManyRequests, http.StatusTooManyRequests, "rate_limited"},
		{http.StatusPaymentRequired, http.StatusPaymentRequired, "quota_exhausted"},
		{http.StatusInternalServerError, http.StatusBadGateway, "bad_gateway"},
	}
	for _, tc := range cases {
		s.Run(http.StatusText(tc.upstream), func() {
			s.upstreamCode = tc.upstream
			rec := s.do(http.MethodPost, "/admin/profiles", `{"url":"https://linkedin.com/in/unlucky"}`, &s.admin)
			s.Equal(tc.want, rec.Code)
			s.Equal(tc.code, s.decodeError(rec).Error)
		})
	}

	s.upstreamCode = http.StatusOK
	list := s.do(http.MethodGet, "/admin/profiles", "", &s.admin)
	var resp ProfileListResponse
	s.Require().NoError(json.NewDecoder(list.Body).Decode(&resp))
	s.Empty(resp.Profiles, "failed analysis never creates a record")
}

func (s *HandlerSuite) TestModerationLifecycle() {
	p := s.createProfile("https://linkedin.com/in/lifecycle")
	base := "/admin/profiles/" + p.ID.String()

	public := func() PublicListResponse {
		rec := s.do(http.MethodGet, "/profiles/public?kind=latest&limit=5", "", nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp PublicListResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	s.Empty(public().Profiles)

	s.Run("pending is rejected as a target", func() {
		rec := s.do(http.MethodPatch, base+"/status", `{"status":"pending"}`, &s.admin)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown status is rejected", func() {
		rec := s.do(http.MethodPatch, base+"/status", `{"status":"approved"}`, &s.admin)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("verify publishes", func() {
		rec := s.do(http.MethodPatch, base+"/status", `{"status":"verified"}`, &s.admin)
		s.Require().Equal(http.StatusOK, rec.Code)
		resp := public()
		s.Require().Len(resp.Profiles, 1)
		s.Equal(p.ID.String(), resp.Profiles[0].ID)
		s.Equal("latest", resp.Kind)
	})

	s.Run("user report increments the count", func() {
		rec := s.do(http.MethodPost, "/profiles/report", `{"url":"https://linkedin.com/in/lifecycle"}`, &s.user)
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp ReportResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(2, resp.ReportCount)
	})

	s.Run("anonymous report is unauthorized", func() {
		rec := s.do(http.MethodPost, "/profiles/report", `{"url":"https://linkedin.com/in/lifecycle"}`, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("deactivation shows in stats", func() {
		rec := s.do(http.MethodPatch, base+"/active", `{"active":false}`, &s.admin)
		s.Require().Equal(http.StatusOK, rec.Code)

		statsRec := s.do(http.MethodGet, "/profiles/stats", "", nil)
		s.Require().Equal(http.StatusOK, statsRec.Code)
		var stats models.Stats
		s.Require().NoError(json.NewDecoder(statsRec.Body).Decode(&stats))
		s.Equal(models.Stats{Found: 1, StillActive: 0, Deactivated: 1}, stats)
	})

	s.Run("active flag is required", func() {
		rec := s.do(http.MethodPatch, base+"/active", `{}`, &s.admin)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("reanalysis refreshes the score and keeps the status", func() {
		s.upstreamScore = 42
		rec := s.do(http.MethodPost, base+"/reanalyze", "", &s.admin)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		var updated models.Profile
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&updated))
		s.Equal(42, updated.RiskScore)
		s.Equal(models.StatusVerified, updated.Status)
	})

	s.Run("reject hides but keeps the record", func() {
		rec := s.do(http.MethodPatch, base+"/status", `{"status":"rejected"}`, &s.admin)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Empty(public().Profiles)

		list := s.do(http.MethodGet, "/admin/profiles", "", &s.admin)
		var resp ProfileListResponse
		s.Require().NoError(json.NewDecoder(list.Body).Decode(&resp))
		s.Len(resp.Profiles, 1)
	})

	s.Run("delete removes the record", func() {
		s.Equal(http.StatusNoContent, s.do(http.MethodDelete, base, "", &s.admin).Code)
		s.Equal(http.StatusNotFound, s.do(http.MethodDelete, base, "", &s.admin).Code)
	})
}

func (s *HandlerSuite) TestPublicQueryValidation() {
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/profiles/public?kind=trending", "", nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/profiles/public?limit=zero", "", nil).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/profiles/public?limit=-1", "", nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/profiles/public?kind=most_reported&limit=500", "", nil).Code)
}

func (s *HandlerSuite) TestMalformedProfileID() {
	rec := s.do(http.MethodDelete, "/admin/profiles/not-a-uuid", "", &s.admin)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("invalid_input", s.decodeError(rec).Error)
}
