// Package container provides dependency injection for the stmt-import
// application. It centralizes the creation and wiring of all application
// dependencies, making them explicit and testable.
package container

import (
	"context"
	"errors"
	"fmt"

	"fjacquet/stmt-import/internal/commit"
	"fjacquet/stmt-import/internal/config"
	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/mirror"
	"fjacquet/stmt-import/internal/oracle"
	"fjacquet/stmt-import/internal/session"
	"fjacquet/stmt-import/internal/store"
	"fjacquet/stmt-import/internal/transformer"
)

// Option overrides a dependency, mainly for tests.
type Option func(*options)

type options struct {
	logger    logging.Logger
	notion    mirror.NotionService
	generator oracle.Generator
}

// WithLogger replaces the logger built from the log section.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNotionService replaces the Notion SDK client.
func WithNotionService(svc mirror.NotionService) Option {
	return func(o *options) { o.notion = svc }
}

// WithGenerator replaces the LLM client behind the oracle.
func WithGenerator(gen oracle.Generator) Option {
	return func(o *options) { o.generator = gen }
}

// Container holds all application dependencies. It is immutable after
// creation; dependencies are reached through getters.
type Container struct {
	logger       logging.Logger
	config       *config.Config
	store        *store.Store
	mirror       mirror.Mirror
	oracle       oracle.Oracle
	committer    *commit.Committer
	sessions     *session.Manager
	transformers *transformer.Registry

	closers []func() error
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// Create logger first as it's needed by other components
	logger := o.logger
	if logger == nil {
		logger = config.NewLogger(cfg)
	}

	db, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}
	c := &Container{
		logger:       logger,
		config:       cfg,
		store:        db,
		transformers: transformer.DefaultRegistry(),
		closers:      []func() error{db.Close},
	}

	c.mirror = newMirror(cfg, o, logger)
	c.committer = commit.New(db, db, c.mirror, logger)

	c.oracle, err = c.newOracle(ctx, cfg, o)
	if err != nil {
		c.Close()
		return nil, err
	}

	deps := session.Deps{
		Entities:  db,
		Rules:     db,
		History:   db,
		Committer: c.committer,
		Recorder:  db,
		Oracle:    c.oracle,
	}
	c.sessions = session.NewManager(deps, cfg.AI.ConfidenceThreshold, logger)

	logger.Info("Container initialized successfully",
		logging.F("formats", c.transformers.Formats()),
		logging.F("ai_enabled", c.oracle != nil),
		logging.F("notion_enabled", cfg.Notion.Enabled()))

	return c, nil
}

func newMirror(cfg *config.Config, o *options, logger logging.Logger) mirror.Mirror {
	svc := o.notion
	if svc == nil && cfg.Notion.Enabled() {
		svc = mirror.NewNotionClient(cfg.Notion.Token)
	}
	if svc == nil {
		logger.Info("Notion mirror disabled, using offline mirror")
		return mirror.NewOffline(logger)
	}
	return mirror.NewNotion(svc, cfg.Notion.EntitiesDB, cfg.Notion.TransactionsDB, logger)
}

// newOracle builds Caching(Guarded(LLM)). It returns nil when AI is off.
func (c *Container) newOracle(ctx context.Context, cfg *config.Config, o *options) (oracle.Oracle, error) {
	gen := o.generator
	if gen == nil {
		if !cfg.AI.Enabled || cfg.AI.APIKey() == "" {
			c.logger.Info("AI categorization disabled")
			return nil, nil
		}
		var err error
		gen, err = c.newGenerator(ctx, cfg.AI)
		if err != nil {
			return nil, err
		}
	}

	llm := oracle.NewLLMOracle(gen, c.store, c.logger)
	guarded := oracle.NewGuardedOracle(llm, gen.Name(), cfg.AI.Timeout(), cfg.AI.RequestsPerMinute)
	c.logger.Info("AI categorization enabled", logging.F(logging.FieldProvider, gen.Name()))
	return oracle.NewCachingOracle(guarded, cfg.AI.CacheMaxEntries), nil
}

func (c *Container) newGenerator(ctx context.Context, ai config.AIConfig) (oracle.Generator, error) {
	switch ai.Provider {
	case config.ProviderAnthropic:
		return oracle.NewAnthropicGenerator(ai.AnthropicAPIKey, ai.Model)
	case config.ProviderGemini:
		gen, err := oracle.NewGeminiGenerator(ctx, ai.GeminiAPIKey, ai.Model)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, gen.Close)
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", ai.Provider)
	}
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetStore returns the bolt store.
func (c *Container) GetStore() *store.Store {
	return c.store
}

// GetMirror returns the Notion or offline mirror.
func (c *Container) GetMirror() mirror.Mirror {
	return c.mirror
}

// GetOracle returns the categorization oracle, or nil when AI is disabled.
func (c *Container) GetOracle() oracle.Oracle {
	return c.oracle
}

// GetCommitter returns the commit phase.
func (c *Container) GetCommitter() *commit.Committer {
	return c.committer
}

// GetSessions returns the session manager.
func (c *Container) GetSessions() *session.Manager {
	return c.sessions
}

// GetTransformer returns the transformer for a bank format.
func (c *Container) GetTransformer(format string) (transformer.Transformer, error) {
	return c.transformers.Get(format)
}

// Close waits for running sessions and releases resources.
func (c *Container) Close() error {
	var errs []error
	if c.sessions != nil {
		if err := c.sessions.Close(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.logger.Debug("Container closed")
	return errors.Join(errs...)
}
