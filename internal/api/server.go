package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/rsummers/bidwatch/internal/db"
	"github.com/rsummers/bidwatch/internal/feed"
	"github.com/rsummers/bidwatch/internal/ingest"
	"github.com/rsummers/bidwatch/internal/lifecycle"
	"github.com/rsummers/bidwatch/internal/models"
	"github.com/rsummers/bidwatch/internal/pricing"
	"github.com/rsummers/bidwatch/internal/stats"
)

// OpportunityStore is the read surface the handlers need.
type OpportunityStore interface {
	ListOpportunities(ctx context.Context, f db.OpportunityFilter) (*db.OpportunityList, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
}

// DetailFetcher enriches a single opportunity view with live feed data.
type DetailFetcher interface {
	GetOpportunityDetails(ctx context.Context, noticeID string) (*feed.Detail, error)
}

// IngestRunner triggers feed pulls and batch rescoring.
type IngestRunner interface {
	Run(ctx context.Context) (*ingest.RunStats, error)
	Rescore(ctx context.Context, batchSize int) (int, error)
}

type Server struct {
	Echo *echo.Echo

	store       OpportunityStore
	lifecycle   *lifecycle.Manager
	pricing     *pricing.Engine
	stats       *stats.Aggregator
	feed        DetailFetcher
	ingest      IngestRunner
	adminSecret string
	log         zerolog.Logger
}

// Deps carries the collaborators the server is built from. Everything
// arrives injected so the handlers are testable with fakes.
type Deps struct {
	Store       OpportunityStore
	Lifecycle   *lifecycle.Manager
	Pricing     *pricing.Engine
	Stats       *stats.Aggregator
	Feed        DetailFetcher
	Ingest      IngestRunner
	AdminSecret string
	Log         zerolog.Logger
}

func NewServer(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	secret := deps.AdminSecret
	if secret == "" {
		secret = ephemeralSecret()
		deps.Log.Warn().Msg("ADMIN_SECRET not set; using ephemeral in-memory secret")
	}

	s := &Server{
		Echo:        e,
		store:       deps.Store,
		lifecycle:   deps.Lifecycle,
		pricing:     deps.Pricing,
		stats:       deps.Stats,
		feed:        deps.Feed,
		ingest:      deps.Ingest,
		adminSecret: secret,
		log:         deps.Log,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.PATCH("/opportunities", s.handleUpdateStatus)
	api.GET("/pricing", s.handlePricing)
	api.GET("/stats", s.handleStats)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/ingest", s.handleIngest)
	admin.POST("/rescore", s.handleRescore)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	filter := db.OpportunityFilter{
		Status: c.QueryParam("status"),
		Limit:  50,
	}

	if v, err := strconv.Atoi(c.QueryParam("minScore")); err == nil && v > 0 {
		filter.MinScore = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 500 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		filter.Offset = v
	}
	filter.ShowExpired = c.QueryParam("showExpired") == "true"
	filter.NSNOnly = c.QueryParam("nsnOnly") == "true"
	filter.FSCOnly = c.QueryParam("fscOnly") == "true"

	result, err := s.store.ListOpportunities(c.Request().Context(), filter)
	if err != nil {
		c.Logger().Errorf("Failed to list opportunities: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, result)
}

// opportunityDetail is the single-opportunity view: the stored record,
// optionally enriched with live feed detail.
type opportunityDetail struct {
	models.Opportunity
	Detail *feed.Detail `json:"detail,omitempty"`
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}

	opp, err := s.store.GetOpportunity(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
		}
		c.Logger().Errorf("Failed to get opportunity: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	resp := opportunityDetail{Opportunity: *opp}

	// Live enrichment is best-effort: a feed failure degrades to the
	// stored record instead of failing the request.
	if s.feed != nil && opp.NoticeID != "" {
		detail, err := s.feed.GetOpportunityDetails(c.Request().Context(), opp.NoticeID)
		if err != nil {
			s.log.Warn().Err(err).Str("notice_id", opp.NoticeID).Msg("detail enrichment failed")
		} else {
			resp.Detail = detail
		}
	}

	return c.JSON(http.StatusOK, resp)
}

type statusUpdateRequest struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	DismissedReason string `json:"dismissedReason"`
}

func (s *Server) handleUpdateStatus(c echo.Context) error {
	var req statusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.ID == "" || req.Status == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "id and status are required"})
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid opportunity ID"})
	}

	update, err := s.lifecycle.SetStatus(c.Request().Context(), id, models.Status(req.Status), req.DismissedReason)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrInvalidStatus):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, db.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
		default:
			c.Logger().Errorf("Failed to update status: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		}
	}

	return c.JSON(http.StatusOK, update)
}

func (s *Server) handlePricing(c echo.Context) error {
	q := pricing.Query{
		Filters: pricing.Filters{
			NSN:      c.QueryParam("nsn"),
			PSC:      c.QueryParam("psc"),
			NAICS:    c.QueryParam("naics"),
			Keywords: splitCSV(c.QueryParam("keywords")),
		},
	}
	if v, err := strconv.Atoi(c.QueryParam("lookbackDays")); err == nil && v > 0 {
		q.LookbackDays = v
	}

	result, err := s.pricing.Lookup(c.Request().Context(), q)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidQuery) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		c.Logger().Errorf("Pricing lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, result)
}

// handleStats never returns a non-200: the aggregator downgrades
// failures to zeroed counters.
func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.stats.Dashboard(c.Request().Context()))
}

func (s *Server) handleIngest(c echo.Context) error {
	runStats, err := s.ingest.Run(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Ingestion complete",
		"stats":   runStats,
	})
}

func (s *Server) handleRescore(c echo.Context) error {
	batchSize := 500
	if v, err := strconv.Atoi(c.QueryParam("batch_size")); err == nil && v > 0 && v <= 5000 {
		batchSize = v
	}

	updated, err := s.ingest.Rescore(c.Request().Context(), batchSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Rescore complete",
		"updated": updated,
	})
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminSecret == "" {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == s.adminSecret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") && authHeader[7:] == s.adminSecret {
			return next(c)
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

// splitCSV splits a comma-separated query parameter into trimmed
// non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func ephemeralSecret() string {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read failing means the platform entropy source is broken;
		// nothing sensible to do but refuse admin access entirely.
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}
