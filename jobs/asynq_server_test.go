package jobs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body queueHealth
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, QueueDefault, body.Queue)
	require.Zero(t, body.Pending)
}

func TestNewWorkerRejectsInvalidCron(t *testing.T) {
	task, err := NewGRNIntegrityScanTask(7)
	require.NoError(t, err)
	_, err = NewWorker(WorkerConfig{Cron: []CronRegistration{{Spec: "not a cron", Task: task}}})
	require.Error(t, err)
}
