package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/surveyloom-cli/internal/analysis"
	"github.com/KaramelBytes/surveyloom-cli/internal/apperr"
	"github.com/KaramelBytes/surveyloom-cli/internal/cleaning"
	"github.com/KaramelBytes/surveyloom-cli/internal/dataset"
	"github.com/KaramelBytes/surveyloom-cli/internal/ingest"
	"github.com/KaramelBytes/surveyloom-cli/internal/pipeline"
	"github.com/KaramelBytes/surveyloom-cli/internal/suggest"
	"github.com/KaramelBytes/surveyloom-cli/internal/weights"
)

// RegisterRoutes mounts the session API on router.
func (s *Server) RegisterRoutes(router *gin.RouterGroup) {
	// sessions
	router.GET("/sessions", s.ListSessions)
	router.POST("/sessions", s.Upload)
	router.GET("/sessions/:id", s.GetSession)
	router.DELETE("/sessions/:id", s.DeleteSession)
	router.POST("/sessions/:id/stage", s.GoTo)
	router.GET("/sessions/:id/profile", s.Profile)

	// schema
	router.GET("/sessions/:id/schema/suggest", s.SuggestSchema)
	router.GET("/sessions/:id/schema", s.GetSchema)
	router.PUT("/sessions/:id/schema", s.PutSchema)

	// cleaning
	router.POST("/sessions/:id/cleaning", s.RunCleaning)
	router.GET("/sessions/:id/cleaning", s.GetCleaning)
	router.GET("/sessions/:id/export", s.Export)

	// weighting
	w := router.Group("/sessions/:id/weights")
	w.POST("", s.EnterWeighting)
	w.GET("", s.GetWeights)
	w.GET("/suggestions", s.Suggestions)
	w.POST("/apply", s.ApplySuggestion)
	w.POST("/reset", s.ResetWeights)
	w.POST("/undo", s.UndoWeights)
	w.POST("/commit", s.CommitWeights)
	w.PATCH("/:column", s.SetWeight)
	w.POST("/:column/lock", s.LockColumn)
	w.DELETE("/:column/lock", s.UnlockColumn)

	// downstream collaborators
	router.POST("/sessions/:id/visualized", s.MarkVisualized)
	router.POST("/sessions/:id/reported", s.MarkReported)
}

// statusFor maps error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	switch apperr.KindOf(err) {
	case apperr.ColumnLocked, apperr.StageOrder, apperr.InvalidWeightTotal:
		return http.StatusConflict
	case apperr.UnknownColumn:
		return http.StatusNotFound
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func errorBody(err error) gin.H {
	body := gin.H{"error": err.Error()}
	var e *apperr.Error
	if errors.As(err, &e) {
		body["kind"] = e.Kind
		if e.Column != "" {
			body["column"] = e.Column
		}
		if e.Value != "" {
			body["value"] = e.Value
		}
	}
	return body
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, errorBody(err))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// withSession runs fn under the session lock, answering 404 for unknown ids.
func (s *Server) withSession(c *gin.Context, fn func(*pipeline.Session)) {
	if !s.store.With(c.Param("id"), fn) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "id": c.Param("id")})
	}
}

// withEngine is withSession for handlers that need the active weight engine.
func (s *Server) withEngine(c *gin.Context, fn func(*pipeline.Session, *weights.Engine)) {
	s.withSession(c, func(sess *pipeline.Session) {
		e, err := sess.Weights()
		if err != nil {
			s.fail(c, err)
			return
		}
		fn(sess, e)
	})
}

// ==================== Sessions ====================

// ListSessions GET /api/sessions
func (s *Server) ListSessions(c *gin.Context) {
	out := []pipeline.Snapshot{}
	for _, id := range s.store.IDs() {
		s.store.With(id, func(sess *pipeline.Session) {
			out = append(out, sess.Snapshot())
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// Upload POST /api/sessions (multipart field "file", optional "sheet")
func (s *Server) Upload(c *gin.Context) {
	max := s.cfg.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.fail(c, ingest.ErrTooLarge)
			return
		}
		badRequest(c, `missing multipart field "file"`)
		return
	}
	if fh.Size > max {
		s.fail(c, ingest.ErrTooLarge)
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()
	ds, err := ingest.ReadFrom(fh.Filename, f, ingest.Options{MaxBytes: max, Sheet: c.PostForm("sheet")})
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			// unreadable upload
			c.JSON(http.StatusUnprocessableEntity, errorBody(err))
			return
		}
		s.fail(c, err)
		return
	}
	sess := pipeline.NewSession(fh.Filename, ds, s.logger)
	s.store.Put(sess)
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// GetSession GET /api/sessions/:id
func (s *Server) GetSession(c *gin.Context) {
	s.withSession(c, func(sess *pipeline.Session) {
		c.JSON(http.StatusOK, sess.Snapshot())
	})
}

// DeleteSession DELETE /api/sessions/:id
func (s *Server) DeleteSession(c *gin.Context) {
	if !s.store.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "id": c.Param("id")})
		return
	}
	c.Status(http.StatusNoContent)
}

// GoTo POST /api/sessions/:id/stage {"stage": "..."}
func (s *Server) GoTo(c *gin.Context) {
	var req struct {
		Stage string `json:"stage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	st, err := pipeline.ParseStage(req.Stage)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.withSession(c, func(sess *pipeline.Session) {
		if err := sess.GoTo(st); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.Snapshot())
	})
}

// Profile GET /api/sessions/:id/profile?group_by=a,b&correlations=true&format=markdown
// profiles the most processed dataset the session has.
func (s *Server) Profile(c *gin.Context) {
	opt := analysis.DefaultOptions()
	opt.Correlations = c.Query("correlations") == "true"
	if g := strings.TrimSpace(c.Query("group_by")); g != "" {
		opt.GroupBy = strings.Split(g, ",")
	}
	s.withSession(c, func(sess *pipeline.Session) {
		ds := sess.Processed()
		if ds == nil {
			ds = sess.Configured()
		}
		if ds == nil {
			ds = sess.Raw()
		}
		rep, err := analysis.Profile(ds, sess.Name, opt)
		if err != nil {
			s.fail(c, err)
			return
		}
		if c.Query("format") == "markdown" {
			c.String(http.StatusOK, rep.Markdown())
			return
		}
		c.JSON(http.StatusOK, rep)
	})
}

// ==================== Schema ====================

// SuggestSchema GET /api/sessions/:id/schema/suggest
func (s *Server) SuggestSchema(c *gin.Context) {
	s.withSession(c, func(sess *pipeline.Session) {
		c.JSON(http.StatusOK, gin.H{"columns": sess.SuggestedSchema(), "order": sess.Raw().Header()})
	})
}

// GetSchema GET /api/sessions/:id/schema
func (s *Server) GetSchema(c *gin.Context) {
	s.withSession(c, func(sess *pipeline.Session) {
		c.JSON(http.StatusOK, gin.H{"columns": sess.Schema()})
	})
}

// PutSchema PUT /api/sessions/:id/schema {"columns": {name: {type, role}}}
func (s *Server) PutSchema(c *gin.Context) {
	var req struct {
		Columns map[string]dataset.ColumnSpec `json:"columns"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s.withSession(c, func(sess *pipeline.Session) {
		if err := sess.ConfigureSchema(req.Columns); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"columns": sess.Schema(), "stage": sess.Stage()})
	})
}

// ==================== Cleaning ====================

// RunCleaning POST /api/sessions/:id/cleaning. The body is a partial cleaning
// config layered over the server defaults; an empty body runs the defaults.
func (s *Server) RunCleaning(c *gin.Context) {
	cfg := s.cfg.Cleaning
	cfg.Deduplication.KeyColumns = append([]string(nil), cfg.Deduplication.KeyColumns...)
	cfg.InvalidData.Rules = append([]cleaning.Rule(nil), cfg.InvalidData.Rules...)
	if err := c.ShouldBindJSON(&cfg); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid cleaning config: "+err.Error())
		return
	}
	s.withSession(c, func(sess *pipeline.Session) {
		sum, err := sess.RunCleaning(c.Request.Context(), cfg)
		if err != nil {
			body := errorBody(err)
			if run := sess.LastRun(); run != nil && run.Summary == sum {
				body["run"] = run
			}
			_ = c.Error(err)
			c.JSON(statusFor(err), body)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": sum, "run": sess.LastRun(), "stage": sess.Stage()})
	})
}

// GetCleaning GET /api/sessions/:id/cleaning
func (s *Server) GetCleaning(c *gin.Context) {
	s.withSession(c, func(sess *pipeline.Session) {
		c.JSON(http.StatusOK, gin.H{"summary": sess.Cleaning(), "last_run": sess.LastRun()})
	})
}

// Export GET /api/sessions/:id/export streams the cleaned dataset as CSV.
func (s *Server) Export(c *gin.Context) {
	s.withSession(c, func(sess *pipeline.Session) {
		ds := sess.Processed()
		if ds == nil {
			s.fail(c, apperr.New(apperr.StageOrder, "no cleaned dataset to export"))
			return
		}
		name := strings.TrimSuffix(sess.Name, filepath.Ext(sess.Name)) + "_cleaned.csv"
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Status(http.StatusOK)
		if err := ingest.WriteCSV(c.Writer, ds); err != nil {
			s.logger.Error("export failed", zap.Error(err))
		}
	})
}

// ==================== Weighting ====================

// EnterWeighting POST /api/sessions/:id/weights
func (s *Server) EnterWeighting(c *gin.Context) {
	s.withSession(c, func(sess *pipeline.Session) {
		e, err := sess.EnterWeighting()
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, e.State())
	})
}

// GetWeights GET /api/sessions/:id/weights
func (s *Server) GetWeights(c *gin.Context) {
	s.withEngine(c, func(_ *pipeline.Session, e *weights.Engine) {
		c.JSON(http.StatusOK, e.State())
	})
}

// SetWeight PATCH /api/sessions/:id/weights/:column {"value": 40}
func (s *Server) SetWeight(c *gin.Context) {
	var req struct {
		Value *float64 `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		badRequest(c, `body must be {"value": <number>}`)
		return
	}
	s.withEngine(c, func(_ *pipeline.Session, e *weights.Engine) {
		changed, err := e.SetWeight(c.Param("column"), *req.Value)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"changed": changed, "state": e.State()})
	})
}

// LockColumn POST /api/sessions/:id/weights/:column/lock
func (s *Server) LockColumn(c *gin.Context) {
	s.withEngine(c, func(_ *pipeline.Session, e *weights.Engine) {
		if err := e.Lock(c.Param("column")); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, e.State())
	})
}

// UnlockColumn DELETE /api/sessions/:id/weights/:column/lock
func (s *Server) UnlockColumn(c *gin.Context) {
	s.withEngine(c, func(_ *pipeline.Session, e *weights.Engine) {
		if err := e.Unlock(c.Param("column")); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, e.State())
	})
}

// Suggestions GET /api/sessions/:id/weights/suggestions
func (s *Server) Suggestions(c *gin.Context) {
	s.withEngine(c, func(sess *pipeline.Session, e *weights.Engine) {
		out, err := s.suggester.Suggest(c.Request.Context(), sess.Processed(), e.Columns())
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": out})
	})
}

// ApplySuggestion POST /api/sessions/:id/weights/apply {"weights": {...}}
// Without a body the built-in suggestions are applied.
func (s *Server) ApplySuggestion(c *gin.Context) {
	var req struct {
		Weights weights.Vector `json:"weights"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return
	}
	s.withEngine(c, func(sess *pipeline.Session, e *weights.Engine) {
		v := req.Weights
		if v == nil {
			out, err := s.suggester.Suggest(c.Request.Context(), sess.Processed(), e.Columns())
			if err != nil {
				s.fail(c, err)
				return
			}
			v = suggest.ToVector(out)
		}
		if err := e.ApplySuggestion(v); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, e.State())
	})
}

// ResetWeights POST /api/sessions/:id/weights/reset
func (s *Server) ResetWeights(c *gin.Context) {
	s.withEngine(c, func(_ *pipeline.Session, e *weights.Engine) {
		e.Reset()
		c.JSON(http.StatusOK, e.State())
	})
}

// UndoWeights POST /api/sessions/:id/weights/undo
func (s *Server) UndoWeights(c *gin.Context) {
	s.withEngine(c, func(_ *pipeline.Session, e *weights.Engine) {
		if err := e.Undo(); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, e.State())
	})
}

// CommitWeights POST /api/sessions/:id/weights/commit
func (s *Server) CommitWeights(c *gin.Context) {
	s.withSession(c, func(sess *pipeline.Session) {
		v, err := sess.CommitWeights()
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"weights": v, "stage": sess.Stage()})
	})
}

// ==================== Collaborators ====================

// MarkVisualized POST /api/sessions/:id/visualized
func (s *Server) MarkVisualized(c *gin.Context) {
	s.withSession(c, func(sess *pipeline.Session) {
		if err := sess.MarkVisualized(); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.Snapshot())
	})
}

// MarkReported POST /api/sessions/:id/reported
func (s *Server) MarkReported(c *gin.Context) {
	s.withSession(c, func(sess *pipeline.Session) {
		if err := sess.MarkReported(); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.Snapshot())
	})
}
