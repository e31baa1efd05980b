package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"catalogo.cali.gov.co/etl/internal/domain"
	"catalogo.cali.gov.co/etl/internal/pipeline"
	"catalogo.cali.gov.co/etl/internal/repository"
)

func sampleReport() *pipeline.Report {
	start := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	return &pipeline.Report{
		RunID:      "run-1",
		Profile:    "v6",
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Stages: []pipeline.StageResult{
			{Name: pipeline.StageFacts, Status: pipeline.StatusDegraded, Duration: 2 * time.Second},
			{Name: pipeline.StageLinks, Status: pipeline.StatusFailed, Duration: time.Second},
		},
		Diagnostics: []domain.Diagnostic{
			{Stage: "transform", Code: domain.DiagMissingName},
			{Stage: "transform", Code: domain.DiagMissingName},
			{Stage: "links", Code: domain.DiagUnknownLocation},
		},
		Counts: []repository.TableCount{
			{Table: repository.TableService, Label: "Servicios", Rows: 42},
		},
	}
}

func TestRecord(t *testing.T) {
	m := New()
	m.Record(sampleReport())

	require.Equal(t, 42.0, testutil.ToFloat64(m.TableRows.WithLabelValues(repository.TableService)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("transform", domain.DiagMissingName)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("links", domain.DiagUnknownLocation)))
	require.Equal(t, 0.0, testutil.ToFloat64(m.StageFailed.WithLabelValues(pipeline.StageFacts)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StageFailed.WithLabelValues(pipeline.StageLinks)))
	require.Equal(t, 3.0, testutil.ToFloat64(m.RunDuration))
	require.NotZero(t, testutil.ToFloat64(m.LastSuccess))
}

func TestRecord_FatalRunKeepsLastSuccess(t *testing.T) {
	m := New()
	r := sampleReport()
	r.Fatal = errors.New("INPUT_NOT_FOUND")
	m.Record(r)

	require.NotZero(t, testutil.ToFloat64(m.LastRun))
	require.Zero(t, testutil.ToFloat64(m.LastSuccess))
}

func TestRecord_Exposition(t *testing.T) {
	m := New()
	m.Record(sampleReport())

	expected := `
# HELP catalogo_etl_table_rows Rows in each catalog table after the load
# TYPE catalogo_etl_table_rows gauge
catalogo_etl_table_rows{table="fact_servicio"} 42
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "catalogo_etl_table_rows"))
}

func TestPush(t *testing.T) {
	var (
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.Record(sampleReport())
	require.NoError(t, m.Push(context.Background(), srv.URL, "catalogo_etl", "v6"))

	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/metrics/job/catalogo_etl/profile/v6", path)
	require.NotEmpty(t, body)
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL, "catalogo_etl", "v6")
	require.Error(t, err)
	require.Contains(t, err.Error(), srv.URL)
}
