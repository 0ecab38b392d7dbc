package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/chesapeakedev/stagehand/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *db.Store) {
	t.Helper()
	handle, err := db.Open(filepath.Join(t.TempDir(), "stagehand.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	store := db.NewStore(handle)
	srv, err := NewServer(store)
	require.NoError(t, err)
	return srv, store
}

func TestIndexListsRuns(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.CreateRun(context.Background(), db.RunRecord{
		RunID:     "run-1",
		ItemRef:   "42",
		ItemTitle: "Fix login bug",
		Mode:      "full",
		Status:    "complete",
		Branch:    "stagehand/42-fix-login-bug",
	}))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "run-1")
	assert.Contains(t, rec.Body.String(), "Fix login bug")
}

func TestRunPageShowsPhases(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, db.RunRecord{RunID: "run-1", ItemRef: "42", Mode: "local", Status: "running"}))
	require.NoError(t, store.CommitPhase(ctx, db.PhaseRecord{
		RunID: "run-1", Phase: "plan", StartedAt: "2026-08-30T10:00:00Z", EndedAt: "2026-08-30T10:01:00Z", Outcome: "ok",
	}, nil, db.Update{Status: "planned", PlanPath: ".plans/demo.plan.md"}))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/run-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plan")
	assert.Contains(t, rec.Body.String(), ".plans/demo.plan.md")
}

func TestRunPageMissingRun(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/absent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
