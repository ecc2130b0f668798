package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/hr-optimizer/internal/dfs"
	"github.com/jstittsworth/hr-optimizer/internal/export"
	"github.com/jstittsworth/hr-optimizer/internal/metrics"
	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
	"github.com/jstittsworth/hr-optimizer/internal/services"
	"github.com/jstittsworth/hr-optimizer/pkg/config"
	"github.com/jstittsworth/hr-optimizer/pkg/utils"
)

// SessionHeader lets clients that cannot send form fields name their session.
const SessionHeader = "X-Session-ID"

// cacheSetAttempts bounds SetWithRetry when caching a persisted run.
const cacheSetAttempts = 3

type RunHandler struct {
	runner  *pipeline.Runner
	store   *services.RunStore
	cache   *services.CacheService
	metrics *metrics.Manager
	config  *config.Config
	logger  *logrus.Entry
}

func NewRunHandler(
	runner *pipeline.Runner,
	store *services.RunStore,
	cache *services.CacheService,
	metricsManager *metrics.Manager,
	cfg *config.Config,
	logger *logrus.Logger,
) *RunHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RunHandler{
		runner:  runner,
		store:   store,
		cache:   cache,
		metrics: metricsManager,
		config:  cfg,
		logger:  logger.WithField("component", "run_handler"),
	}
}

// CreateRun scores an uploaded matchup file and optimizes a lineup.
func (h *RunHandler) CreateRun(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxUploadBytes)

	matchups, err := readFormFile(c, "matchups")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.SendError(c, http.StatusRequestEntityTooLarge,
				utils.NewAppError(utils.ErrCodeValidation, "Upload too large", fmt.Sprintf("limit is %d bytes", h.config.MaxUploadBytes)))
			return
		}
		if errors.Is(err, http.ErrMissingFile) {
			utils.SendValidationError(c, "Upload a matchup file to get started",
				"multipart field 'matchups' must hold a tab-delimited file with Batter, Tm, vs and HR columns")
			return
		}
		utils.SendValidationError(c, "Failed to read matchup file", err.Error())
		return
	}

	salaries, err := readFormFile(c, "salaries")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		utils.SendValidationError(c, "Failed to read salary file", err.Error())
		return
	}

	req, err := h.buildRequest(c, matchups, salaries)
	if err != nil {
		utils.SendValidationError(c, "Invalid run parameters", err.Error())
		return
	}

	sessionID := strings.TrimSpace(c.PostForm("session_id"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(c.GetHeader(SessionHeader))
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	cacheKey := services.ReportCacheKey(req)
	if report, ok := h.cachedReport(c.Request.Context(), cacheKey); ok {
		// A newer request still supersedes whatever the session had running
		h.runner.Supersede(sessionID)
		report.RunID = uuid.NewString()
		report.SessionID = sessionID
		report.CreatedAt = time.Now().UTC()
		h.persist(c.Request.Context(), report)
		c.Set("run_id", report.RunID)
		c.Header("X-Cache", "HIT")
		utils.SendSuccess(c, report)
		return
	}

	report, err := h.runner.Submit(c.Request.Context(), sessionID, req)
	if err != nil {
		h.sendRunError(c, err)
		return
	}

	if err := h.cache.Set(c.Request.Context(), cacheKey, report, h.config.CacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache report")
	}
	h.persist(c.Request.Context(), report)

	c.Set("run_id", report.RunID)
	c.Header("X-Cache", "MISS")
	utils.SendSuccess(c, report)
}

// ListRuns returns stored run summaries, newest first.
func (h *RunHandler) ListRuns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	runs, total, err := h.store.List(c.Request.Context(), services.RunFilter{
		SessionID: c.Query("session_id"),
		Page:      page,
		PerPage:   perPage,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		utils.SendInternalError(c, "Failed to fetch runs")
		return
	}

	utils.SendSuccessWithMeta(c, runs, &utils.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	})
}

// GetRun returns the full stored report of one run.
func (h *RunHandler) GetRun(c *gin.Context) {
	report, ok := h.loadReport(c)
	if !ok {
		return
	}
	utils.SendSuccess(c, report)
}

// ExportRun downloads the run's filtered, ranked table as CSV.
func (h *RunHandler) ExportRun(c *gin.Context) {
	report, ok := h.loadReport(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, report.Players, report.SalaryScale); err != nil {
		h.logger.WithError(err).Error("Failed to write CSV export")
		utils.SendInternalError(c, "Failed to export run")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.FileName))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *RunHandler) loadReport(c *gin.Context) (*pipeline.Report, bool) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var report pipeline.Report
	if err := h.cache.Get(ctx, services.RunCacheKey(id), &report); err == nil {
		return &report, true
	}

	stored, err := h.store.GetReport(ctx, id)
	if errors.Is(err, services.ErrRunNotFound) {
		utils.SendNotFound(c, "Run not found")
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).WithField("run_id", id).Error("Failed to load run")
		utils.SendInternalError(c, "Failed to load run")
		return nil, false
	}

	if err := h.cache.Set(ctx, services.RunCacheKey(id), stored, h.config.CacheTTL); err != nil {
		h.logger.WithError(err).Debug("Failed to cache stored run")
	}
	return stored, true
}

func (h *RunHandler) buildRequest(c *gin.Context, matchups, salaries []byte) (pipeline.Request, error) {
	req := pipeline.Request{
		Matchups:   matchups,
		Salaries:   salaries,
		LineupSize: h.config.DefaultLineupSize,
		SalaryCap:  h.config.DefaultSalaryCap,
	}

	if raw := strings.TrimSpace(c.PostForm("salary_cap")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return req, fmt.Errorf("salary_cap %q is not a number", raw)
		}
		req.SalaryCap = v
	}

	if raw := strings.TrimSpace(c.PostForm("lineup_size")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("lineup_size %q is not an integer", raw)
		}
		req.LineupSize = v
	}

	for _, value := range c.PostFormArray("teams") {
		for _, team := range strings.Split(value, ",") {
			if team = strings.TrimSpace(team); team != "" {
				req.TeamFilter = append(req.TeamFilter, team)
			}
		}
	}

	return req, nil
}

func (h *RunHandler) cachedReport(ctx context.Context, key string) (*pipeline.Report, bool) {
	var report pipeline.Report
	err := h.cache.Get(ctx, key, &report)
	if err != nil && !errors.Is(err, services.ErrCacheMiss) {
		h.logger.WithError(err).Warn("Report cache lookup failed")
	}
	hit := err == nil
	if h.metrics != nil {
		h.metrics.RecordCacheLookup(hit)
	}
	return &report, hit
}

func (h *RunHandler) persist(ctx context.Context, report *pipeline.Report) {
	if _, err := h.store.Save(ctx, report); err != nil {
		h.logger.WithError(err).WithField("run_id", report.RunID).Error("Failed to persist run")
		return
	}
	if err := h.cache.SetWithRetry(ctx, services.RunCacheKey(report.RunID), report, h.config.CacheTTL, cacheSetAttempts); err != nil {
		h.logger.WithError(err).Debug("Failed to cache run")
	}
}

func (h *RunHandler) sendRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrRunSuperseded):
		utils.SendConflict(c, utils.ErrCodeSuperseded, "Run was superseded by a newer request for this session")
	case errors.Is(err, pipeline.ErrRunTimeout):
		utils.SendError(c, http.StatusRequestTimeout, utils.NewAppError(utils.ErrCodeOptimization, "Optimization timed out", err.Error()))
	case errors.Is(err, dfs.ErrInvalidParameter):
		utils.SendValidationError(c, "Invalid run parameters", err.Error())
	case errors.Is(err, dfs.ErrSchema):
		utils.SendUnprocessable(c, utils.ErrCodeSchema, "Salary file is missing required columns", err.Error())
	case errors.Is(err, dfs.ErrInvalidData):
		utils.SendUnprocessable(c, utils.ErrCodeInvalidData, "Matchup file could not be used", err.Error())
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads this response
		c.AbortWithStatus(499)
	default:
		h.logger.WithError(err).Error("Run failed")
		utils.SendInternalError(c, "Optimization failed")
	}
}

// readFormFile returns the contents of a multipart file field.
func readFormFile(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, err
	}
	return readMultipart(header)
}

func readMultipart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
