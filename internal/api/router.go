package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/LJTian/GovNewsHub/internal/collector"
	"github.com/LJTian/GovNewsHub/internal/dates"
	"github.com/LJTian/GovNewsHub/internal/ingest"
	"github.com/LJTian/GovNewsHub/internal/models"
)

// Runner runs one ingestion pass.
type Runner interface {
	Run(ctx context.Context, opts ingest.Options) (*ingest.Report, error)
}

type Server struct {
	runner  Runner
	sources []collector.SourceConfig
	reports *ReportStore
	log     *logrus.Entry

	// one run at a time per process
	running sync.Mutex
}

func NewServer(runner Runner, sources []collector.SourceConfig, reports *ReportStore, log *logrus.Entry) *Server {
	if reports == nil {
		reports = NewReportStore(nil)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{runner: runner, sources: sources, reports: reports, log: log}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/runs", s.triggerRun)
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/latest", s.latestRun)
		v1.GET("/sources", s.listSources)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type runRequest struct {
	Date     string   `json:"date"`
	MaxPages int      `json:"max_pages"`
	Sources  []string `json:"sources"`
}

func (s *Server) triggerRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "invalid request body")
			return
		}
	}

	opts := ingest.Options{MaxPages: req.MaxPages, Sources: req.Sources}
	if req.Date != "" {
		d, err := dates.ParseTarget(req.Date)
		if err != nil {
			badRequest(c, "date must be DD/MM/YYYY or YYYY-MM-DD")
			return
		}
		opts.Date = d
	}
	if req.MaxPages < 0 {
		badRequest(c, "max_pages must not be negative")
		return
	}

	if !s.running.TryLock() {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "run_in_progress",
			"message": "another run is in progress",
		})
		return
	}
	defer s.running.Unlock()

	// a client hanging up must not abort a run halfway through its writes
	ctx := context.WithoutCancel(c.Request.Context())
	report, runErr := s.runner.Run(ctx, opts)
	if report != nil {
		if err := s.reports.Save(ctx, report); err != nil {
			s.log.WithError(err).Warn("save run report failed")
		}
	}
	if runErr != nil {
		s.log.WithError(runErr).Error("ingest run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "run_failed",
			"message": runErr.Error(),
			"data":    report,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    report,
	})
}

func (s *Server) latestRun(c *gin.Context) {
	report, err := s.reports.Latest(c.Request.Context())
	if err != nil {
		internalError(c)
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "no run recorded yet",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    report,
	})
}

func (s *Server) listRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	reports, err := s.reports.List(c.Request.Context(), limit)
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    reports,
	})
}

type sourceSummary struct {
	Name      string `json:"name"`
	Table     string `json:"table"`
	URL       string `json:"url"`
	MaxPages  int    `json:"max_pages,omitempty"`
	Policy    string `json:"date_policy"`
	Order     string `json:"order"`
	Columns   int    `json:"columns"`
	Paginated bool   `json:"paginated"`
}

func (s *Server) listSources(c *gin.Context) {
	out := make([]sourceSummary, 0, len(s.sources))
	for _, src := range s.sources {
		u := src.URL
		if src.Paginated() {
			u = src.URLTemplate
		}
		policy := string(src.Date.Policy)
		if policy == "" {
			policy = string(collector.PolicyExact)
		}
		order := string(src.Order)
		if order == "" {
			order = string(models.OrderAppend)
		}
		out = append(out, sourceSummary{
			Name:      src.Name,
			Table:     src.TableName(),
			URL:       u,
			MaxPages:  src.MaxPages,
			Policy:    policy,
			Order:     order,
			Columns:   len(src.Layout().Columns),
			Paginated: src.Paginated(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    out,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "bad_request",
		"message": msg,
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
