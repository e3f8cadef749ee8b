package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/ppiankov/kinstory/internal/cache"
	"github.com/ppiankov/kinstory/internal/llm"
	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/model"
	"github.com/ppiankov/kinstory/internal/pipeline"
	"github.com/ppiankov/kinstory/internal/store"
)

// app holds the wired collaborators for one command invocation
type app struct {
	cfg       *model.Config
	log       *logging.Logger
	store     store.Store
	cache     cache.Cache
	provider  llm.Provider
	generator *pipeline.Generator
}

// newApp loads config and opens the store, cache and provider.
// The LLM is optional: without one only citation commands work.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	a.store, err = store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a.cache, err = cache.New(cfg.Cache, log)
	if err != nil {
		// Mining still works uncached
		log.Warn("cache disabled", "error", err)
		a.cache = nil
	}

	a.provider, err = llm.NewClient(ctx, llm.ConfigFromModel(cfg.LLM), log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("configure LLM: %w", err)
	}
	if a.provider == nil {
		log.Warn("no LLM provider configured; set llm.provider or KINSTORY_LLM_PROVIDER")
	} else {
		log.Debug("LLM provider configured", "provider", a.provider.Name(), "model", cfg.LLM.Model)
	}

	a.generator = pipeline.NewGenerator(pipeline.Deps{
		Graph:    a.store,
		Sink:     a.store,
		Provider: a.provider,
		Cache:    a.cache,
	}, cfg, log)

	return a, nil
}

// requireProvider fails commands that need a model
func (a *app) requireProvider() error {
	if a.provider == nil {
		return errors.New("no LLM provider configured (set llm.provider in the config file or KINSTORY_LLM_PROVIDER)")
	}
	return nil
}

// Close releases every resource, reporting all failures
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.provider != nil {
		errs = append(errs, llm.Close(a.provider))
	}
	if c, ok := a.cache.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close(ctx))
	}
	a.log.Sync()
	return errors.Join(errs...)
}
