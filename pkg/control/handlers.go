package control

import (
    "errors"
    "net/http"

    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/gin-gonic/gin"
    "go.uber.org/zap"
)

type startRequest struct {
    Script string `json:"script" binding:"required"`
}

// status handles GET /v1/status
func (s *Server) status(c *gin.Context) {
    resp := gin.H{"running": false}
    if info, ok := s.runner.Active(); ok {
        resp["running"] = true
        resp["run"] = info
    }
    if h := s.runner.History(); len(h) > 0 { resp["last"] = h[len(h)-1] }
    c.JSON(http.StatusOK, resp)
}

// listScripts handles GET /v1/scripts
func (s *Server) listScripts(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"scripts": s.catalog.List()})
}

// listRuns handles GET /v1/runs
func (s *Server) listRuns(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"runs": s.runner.History()})
}

// startRun handles POST /v1/runs
func (s *Server) startRun(c *gin.Context) {
    var req startRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"script\": name}"})
        return
    }
    sc, ok := s.catalog.Get(req.Script)
    if !ok {
        c.JSON(http.StatusNotFound, gin.H{"error": "unknown script " + req.Script})
        return
    }
    id, err := s.runner.Start(s.base, req.Script, sc)
    if errors.Is(err, script.ErrBusy) {
        c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
        return
    }
    if err != nil {
        s.log.Error("start run", zap.String("script", req.Script), zap.Error(err))
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusAccepted, gin.H{"id": id, "script": req.Script})
}

// stop handles POST /v1/stop
func (s *Server) stop(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"stopped": s.runner.Stop()})
}

// listReports handles GET /v1/reports
func (s *Server) listReports(c *gin.Context) {
    if s.reports == nil {
        c.JSON(http.StatusOK, gin.H{"reports": []any{}, "total": 0})
        return
    }
    c.JSON(http.StatusOK, gin.H{"reports": s.reports.Recent(), "total": s.reports.Total()})
}
