// Package service exposes the memory system over a local HTTP API.
package service

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/cortexmem/cortex/internal/config"
	"github.com/cortexmem/cortex/internal/contextgen"
	"github.com/cortexmem/cortex/internal/errs"
	"github.com/cortexmem/cortex/internal/model"
	"github.com/cortexmem/cortex/internal/pipeline"
	"github.com/cortexmem/cortex/internal/store"
	"github.com/cortexmem/cortex/internal/vector"
)

// Version is the service version reported on the root route.
const Version = "0.1.0"

// Server bundles the components the HTTP routes dispatch to.
type Server struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	index    vector.Index
	ingestor *pipeline.Ingestor
	decay    *pipeline.DecayEngine
	analyzer *contextgen.Analyzer
	handoff  *contextgen.Handoff
	log      *logrus.Entry
}

// New assembles a server from already constructed components. The analyzer
// may be nil when no model provider is configured; /analyze then reports
// the missing dependency instead of failing at startup.
func New(cfg *config.Config, s *store.SQLiteStore, idx vector.Index, ing *pipeline.Ingestor,
	dec *pipeline.DecayEngine, an *contextgen.Analyzer, h *contextgen.Handoff, log *logrus.Entry) *Server {
	return &Server{cfg: cfg, store: s, index: idx, ingestor: ing, decay: dec, analyzer: an, handoff: h, log: log}
}

// App builds the fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "cortex-memory",
		ErrorHandler: s.errorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/", s.root)
	app.Get("/stats", s.stats)
	app.Post("/memory", s.createMemory)
	app.Delete("/memory/search/:prefix", s.deleteByPrefix)
	app.Delete("/memory/:id", s.deleteMemory)
	app.Post("/entity", s.createEntity)
	app.Delete("/entity/:id", s.deleteEntity)
	app.Get("/entities", s.listEntities)
	app.Post("/search", s.search)
	app.Get("/loops", s.listLoops)
	app.Post("/loops", s.createLoop)
	app.Post("/loops/:id/resolve", s.resolveLoop)
	app.Delete("/loops/:id", s.deleteLoop)
	app.Get("/recent", s.recent)
	app.Get("/context", s.getContext)
	app.Post("/ingest", s.ingest)
	app.Post("/analyze", s.analyze)
	app.Post("/decay", s.runDecay)
	app.Get("/reconcile", s.reconcile)
	return app
}

// Listen runs the server until the listener fails or is shut down.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Service.Host, s.cfg.Service.Port)
	s.log.WithField("addr", addr).Info("http service listening")
	return s.App().Listen(addr)
}

// errorHandler maps the error taxonomy onto status codes.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation):
		code = fiber.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, errs.ErrState):
		code = fiber.StatusConflict
	case errors.Is(err, errs.ErrExternal):
		code = fiber.StatusBadGateway
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"service": "cortex-memory", "version": Version, "status": "running"})
}

func (s *Server) stats(c *fiber.Ctx) error {
	st, err := s.store.Stats(c.Context())
	if err != nil {
		return err
	}
	st.VectorCount = s.index.Count()
	return c.JSON(st)
}

type memoryCreate struct {
	Content    string         `json:"content"`
	MemoryType string         `json:"memory_type"`
	Source     string         `json:"source"`
	Importance *float64       `json:"importance"`
	Metadata   model.Metadata `json:"metadata"`
}

func (s *Server) createMemory(c *fiber.Ctx) error {
	var req memoryCreate
	if err := c.BodyParser(&req); err != nil {
		return errs.Validationf("invalid body: %v", err)
	}
	importance := 0.5
	if req.Importance != nil {
		importance = *req.Importance
	}
	mem, err := s.ingestor.IngestMemory(c.Context(), store.AddMemoryParams{
		Content:    req.Content,
		Type:       req.MemoryType,
		Source:     req.Source,
		Importance: importance,
		Metadata:   req.Metadata,
	})
	if err != nil && mem != nil {
		// Stored durably but the mirror write failed; the memory exists,
		// it is just unsearchable until reconciled.
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id": mem.ID, "status": "stored", "warning": "vector mirror write failed",
		})
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": mem.ID, "status": "stored"})
}

func (s *Server) deleteMemory(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.ingestor.DeleteMemory(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "status": "deleted"})
}

func (s *Server) deleteByPrefix(c *fiber.Ctx) error {
	prefix := c.Params("prefix")
	n, err := s.ingestor.DeleteByPrefix(c.Context(), prefix)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": n, "status": "success", "prefix": prefix})
}

type entityCreate struct {
	Name       string         `json:"name"`
	EntityType string         `json:"entity_type"`
	Summary    string         `json:"summary"`
	Metadata   model.Metadata `json:"metadata"`
}

func (s *Server) createEntity(c *fiber.Ctx) error {
	var req entityCreate
	if err := c.BodyParser(&req); err != nil {
		return errs.Validationf("invalid body: %v", err)
	}
	if req.EntityType == "" {
		req.EntityType = "person"
	}
	ent, err := s.ingestor.ResolveEntity(c.Context(), req.Name, req.EntityType, req.Summary, req.Metadata, "", "")
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": ent.ID, "status": "stored"})
}

func (s *Server) deleteEntity(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteEntity(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "status": "deleted"})
}

func (s *Server) listEntities(c *fiber.Ctx) error {
	ents, err := s.store.ListEntities(c.Context(), c.Query("entity_type"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entities": ents})
}

type searchQuery struct {
	Query       string  `json:"query"`
	NResults    int     `json:"n_results"`
	MaxDistance float64 `json:"max_distance"`
}

func (s *Server) search(c *fiber.Ctx) error {
	var req searchQuery
	if err := c.BodyParser(&req); err != nil {
		return errs.Validationf("invalid body: %v", err)
	}
	if req.Query == "" {
		return errs.Validationf("query is required")
	}
	if req.NResults <= 0 {
		req.NResults = 5
	}
	results, err := s.index.Query(c.Context(), req.Query, req.NResults, req.MaxDistance)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"results": results, "count": len(results)})
}

func (s *Server) listLoops(c *fiber.Ctx) error {
	loops, err := s.store.UnresolvedLoops(c.Context(), c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"loops": loops})
}

type loopCreate struct {
	Summary          string `json:"summary"`
	Priority         string `json:"priority"`
	FollowUpQuestion string `json:"follow_up_question"`
}

func (s *Server) createLoop(c *fiber.Ctx) error {
	var req loopCreate
	if err := c.BodyParser(&req); err != nil {
		return errs.Validationf("invalid body: %v", err)
	}
	loop, err := s.store.AddOpenLoop(c.Context(), store.AddLoopParams{
		Summary:          req.Summary,
		Priority:         req.Priority,
		FollowUpQuestion: req.FollowUpQuestion,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": loop.ID, "status": "created"})
}

func (s *Server) resolveLoop(c *fiber.Ctx) error {
	if err := s.store.ResolveLoop(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "resolved"})
}

func (s *Server) deleteLoop(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteLoop(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "status": "deleted"})
}

func (s *Server) recent(c *fiber.Ctx) error {
	memories, err := s.store.RecentMemories(c.Context(), c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"memories": memories})
}

func (s *Server) getContext(c *fiber.Ctx) error {
	inj, err := s.handoff.Get(c.Context(), c.QueryBool("peek", false), c.QueryBool("fallback", true))
	if err != nil {
		return err
	}
	return c.JSON(inj)
}

type conversationIngest struct {
	Messages   []pipeline.Message `json:"messages"`
	SessionKey string             `json:"session_key"`
	Channel    string             `json:"channel"`
}

func (s *Server) ingest(c *fiber.Ctx) error {
	var req conversationIngest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validationf("invalid body: %v", err)
	}
	res, err := s.ingestor.IngestConversation(c.Context(), req.Messages, req.SessionKey, req.Channel)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

type analyzeRequest struct {
	ConversationText string `json:"conversation_text"`
	ConversationID   string `json:"conversation_id"`
}

func (s *Server) analyze(c *fiber.Ctx) error {
	if s.analyzer == nil {
		return fmt.Errorf("%w: no analysis provider configured", errs.ErrExternal)
	}
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return errs.Validationf("invalid body: %v", err)
	}
	res, err := s.analyzer.Run(c.Context(), req.ConversationText, req.ConversationID)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) runDecay(c *fiber.Ctx) error {
	opts := pipeline.DecayOptions{
		Rate:          s.cfg.Consolidation.DecayRate,
		MinImportance: s.cfg.Consolidation.MinImportance,
		DryRun:        c.QueryBool("dry_run", false),
	}
	if v := c.QueryFloat("rate", 0); v > 0 {
		opts.Rate = v
	}
	if v := c.QueryFloat("min_importance", 0); v > 0 {
		opts.MinImportance = v
	}
	report, err := s.decay.Run(c.Context(), opts)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) reconcile(c *fiber.Ctx) error {
	rec := pipeline.NewReconciler(s.store, s.index, s.log)
	report, err := rec.Run(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(report)
}
