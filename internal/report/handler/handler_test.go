package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"desci/internal/report/handler/mocks"
	"desci/internal/report/models"
	"desci/pkg/domain"
	dErrors "desci/pkg/domain-errors"
)

func newRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()
	svc := mocks.NewMockService(gomock.NewController(t))
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, svc
}

func post(t *testing.T, r chi.Router, path, body string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func get(t *testing.T, r chi.Router, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func TestHandleProcessPayment(t *testing.T) {
	r, svc := newRouter(t)
	hash := strings.Repeat("ab", 32)
	svc.EXPECT().ProcessPayment(gomock.Any(), domain.AccountID("researcher"), domain.Tag("R1"), gomock.Len(1)).
		Return(&models.Report{
			ReportID:         "R1",
			Researcher:       "researcher",
			CreditsCharged:   domain.NewAmount(1),
			ContributorsPaid: 1,
			TotalUSDC:        domain.NewAmount(50_000_000),
		}, nil)

	code, resp := post(t, r, "/reports/R1/payment", `{"researcher":"researcher","study_hashes":["`+hash+`"]}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1", resp["credits_charged"])
	assert.Equal(t, "50000000", resp["total_usdc"])
	assert.Equal(t, float64(1), resp["contributors_paid"])
}

func TestHandleProcessPaymentErrors(t *testing.T) {
	hash := strings.Repeat("ab", 32)

	t.Run("invalid report id", func(t *testing.T) {
		r, _ := newRouter(t)
		code, resp := post(t, r, "/reports/bad-id/payment", `{"researcher":"x","study_hashes":["`+hash+`"]}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "validation_error", resp["error"])
	})

	t.Run("no study hashes", func(t *testing.T) {
		r, _ := newRouter(t)
		code, _ := post(t, r, "/reports/R1/payment", `{"researcher":"x","study_hashes":[]}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("insufficient credits", func(t *testing.T) {
		r, svc := newRouter(t)
		svc.EXPECT().ProcessPayment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInsufficientBalance, "insufficient balance"))
		code, resp := post(t, r, "/reports/R1/payment", `{"researcher":"x","study_hashes":["`+hash+`"]}`)
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, "insufficient_balance", resp["error"])
	})
}

func TestHandleReport(t *testing.T) {
	r, svc := newRouter(t)
	svc.EXPECT().Report(gomock.Any(), domain.Tag("R1")).Return(&models.Report{
		ReportID:         "R1",
		Researcher:       "researcher",
		StudyHashes:      []domain.Hash{{0xab}},
		CreditsCharged:   domain.NewAmount(1),
		ContributorsPaid: 1,
		TotalUSDC:        domain.NewAmount(50_000_000),
		CreatedAt:        time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
	}, nil)

	code, resp := get(t, r, "/reports/R1")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "R1", resp["report_id"])
	assert.Equal(t, "researcher", resp["researcher"])
	assert.Len(t, resp["study_hashes"], 1)
	assert.Equal(t, "2026-05-04T10:30:00Z", resp["created_at"])
}

func TestHandleReportErrors(t *testing.T) {
	t.Run("unknown report", func(t *testing.T) {
		r, svc := newRouter(t)
		svc.EXPECT().Report(gomock.Any(), domain.Tag("R9")).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "report not found"))
		code, resp := get(t, r, "/reports/R9")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "not_found", resp["error"])
	})

	t.Run("invalid report id", func(t *testing.T) {
		r, _ := newRouter(t)
		code, _ := get(t, r, "/reports/bad-id")
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestHandleReportsByResearcher(t *testing.T) {
	t.Run("all reports", func(t *testing.T) {
		r, svc := newRouter(t)
		svc.EXPECT().ReportsByResearcher(gomock.Any(), domain.AccountID("researcher"), 0).
			Return([]*models.Report{{ReportID: "R2"}, {ReportID: "R1"}}, nil)

		code, resp := get(t, r, "/researchers/researcher/reports")

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "researcher", resp["researcher"])
		reports, ok := resp["reports"].([]any)
		require.True(t, ok)
		require.Len(t, reports, 2)
		assert.Equal(t, "R2", reports[0].(map[string]any)["report_id"])
	})

	t.Run("limit is forwarded", func(t *testing.T) {
		r, svc := newRouter(t)
		svc.EXPECT().ReportsByResearcher(gomock.Any(), domain.AccountID("researcher"), 1).
			Return([]*models.Report{{ReportID: "R2"}}, nil)
		code, _ := get(t, r, "/researchers/researcher/reports?limit=1")
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("bad limit", func(t *testing.T) {
		r, _ := newRouter(t)
		for _, q := range []string{"abc", "-1"} {
			code, resp := get(t, r, "/researchers/researcher/reports?limit="+q)
			assert.Equal(t, http.StatusBadRequest, code, q)
			assert.Equal(t, "validation_error", resp["error"])
		}
	})
}
