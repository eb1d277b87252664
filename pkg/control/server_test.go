package control

import (
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/PR-DC/JSLAB-sub002/pkg/scripts"
    "github.com/gin-gonic/gin"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *script.Runner) {
    t.Helper()
    gin.SetMode(gin.TestMode)
    rep := observability.NewReporter(zap.NewNop(), 8)
    r := script.NewRunner(script.WithRunnerSink(rep), script.WithRunnerLogger(zap.NewNop()))
    t.Cleanup(func() { r.Stop(); r.Wait() })
    return New(Options{Runner: r, Catalog: scripts.NewCatalog(scripts.Env{}), Reports: rep, Logger: zap.NewNop()}), r
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
    t.Helper()
    req := httptest.NewRequest(method, path, strings.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    w := httptest.NewRecorder()
    s.Handler().ServeHTTP(w, req)
    var out map[string]any
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
    return w.Code, out
}

func TestListScripts(t *testing.T) {
    s, _ := newTestServer(t)
    code, out := do(t, s, http.MethodGet, "/v1/scripts", "")
    require.Equal(t, http.StatusOK, code)
    require.Len(t, out["scripts"], 5)
}

func TestRunStopLifecycle(t *testing.T) {
    s, r := newTestServer(t)

    code, out := do(t, s, http.MethodPost, "/v1/runs", `{"script":"count"}`)
    require.Equal(t, http.StatusAccepted, code)
    require.NotEmpty(t, out["id"])

    code, _ = do(t, s, http.MethodPost, "/v1/runs", `{"script":"count"}`)
    require.Equal(t, http.StatusConflict, code)

    code, out = do(t, s, http.MethodGet, "/v1/status", "")
    require.Equal(t, http.StatusOK, code)
    require.Equal(t, true, out["running"])

    code, out = do(t, s, http.MethodPost, "/v1/stop", "")
    require.Equal(t, http.StatusOK, code)
    require.Equal(t, true, out["stopped"])
    r.Wait()

    code, out = do(t, s, http.MethodGet, "/v1/status", "")
    require.Equal(t, http.StatusOK, code)
    require.Equal(t, false, out["running"])
    last := out["last"].(map[string]any)
    require.Equal(t, script.StateStopped, last["state"])

    require.Eventually(t, func() bool {
        _, out := do(t, s, http.MethodGet, "/v1/reports", "")
        return out["total"].(float64) >= 1
    }, time.Second, 10*time.Millisecond)
}

func TestStartRunRejectsBadInput(t *testing.T) {
    s, _ := newTestServer(t)
    code, _ := do(t, s, http.MethodPost, "/v1/runs", `{}`)
    require.Equal(t, http.StatusBadRequest, code)
    code, _ = do(t, s, http.MethodPost, "/v1/runs", `{"script":"nope"}`)
    require.Equal(t, http.StatusNotFound, code)
}

func TestCORSPreflight(t *testing.T) {
    s, _ := newTestServer(t)
    req := httptest.NewRequest(http.MethodOptions, "/v1/stop", nil)
    req.Header.Set("Origin", "http://example.test")
    req.Header.Set("Access-Control-Request-Method", "POST")
    w := httptest.NewRecorder()
    s.Handler().ServeHTTP(w, req)
    require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
