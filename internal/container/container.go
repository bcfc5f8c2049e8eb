// Package container provides dependency injection for the autocat application.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"fmt"
	"sync"

	"fjacquet/autocat/internal/artifacts"
	"fjacquet/autocat/internal/classifier"
	"fjacquet/autocat/internal/config"
	"fjacquet/autocat/internal/decision"
	"fjacquet/autocat/internal/features"
	"fjacquet/autocat/internal/forest"
	"fjacquet/autocat/internal/logging"
	"fjacquet/autocat/internal/store"
	"fjacquet/autocat/internal/textnorm"
	"fjacquet/autocat/internal/training"
)

// Container holds all application dependencies and provides methods to access them.
//
// The store and the artifact set are opened lazily: `count` never needs the
// model and `train` never needs a previous one.
type Container struct {
	logger     logging.Logger
	config     *config.Config
	normalizer *textnorm.Normalizer

	mu        sync.Mutex
	store     *store.TransactionStore
	artifacts *artifacts.Set
}

// NewContainer creates the container. logger may be nil, in which case one
// is built from the configuration.
func NewContainer(cfg *config.Config, logger logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		logger = config.ConfigureLoggingFromConfig(cfg)
	}

	normalizer, err := textnorm.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to create text normalizer: %w", err)
	}

	logger.Debug("Container initialized",
		logging.Field{Key: "store", Value: cfg.Store.Path},
		logging.Field{Key: "artifacts", Value: cfg.Artifacts.Directory})

	return &Container{
		logger:     logger,
		config:     cfg,
		normalizer: normalizer,
	}, nil
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetNormalizer returns the shared text normalizer.
func (c *Container) GetNormalizer() *textnorm.Normalizer {
	return c.normalizer
}

// StoreOptions maps the store section of the configuration.
func (c *Container) StoreOptions() store.Options {
	return store.Options{
		UncategorizedLabel: c.config.Store.UncategorizedLabel,
		IncludeHidden:      c.config.Store.IncludeHidden,
	}
}

// GetStore opens the transaction store on first use.
func (c *Container) GetStore() (*store.TransactionStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return c.store, nil
	}
	s, err := store.Open(c.config.Store.Path, c.StoreOptions(), c.logger)
	if err != nil {
		return nil, err
	}
	c.store = s
	return s, nil
}

// GetArtifacts loads the artifact set on first use.
func (c *Container) GetArtifacts() (*artifacts.Set, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.artifacts != nil {
		return c.artifacts, nil
	}
	set, err := artifacts.Load(c.config.Artifacts.Directory, c.normalizer)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Artifacts loaded",
		logging.Field{Key: "fingerprint", Value: set.Manifest.Fingerprint},
		logging.Field{Key: "features", Value: set.Manifest.FeatureCount},
		logging.Field{Key: "classes", Value: len(set.Manifest.Classes)})
	c.artifacts = set
	return set, nil
}

// GetClassifier returns the classifier adapter over the loaded model.
func (c *Container) GetClassifier() (*classifier.Adapter, error) {
	set, err := c.GetArtifacts()
	if err != nil {
		return nil, err
	}
	return set.Classifier()
}

// NewEngine builds a decision engine. withStore controls whether the engine
// can write back; the top-k query path runs without a store. threshold
// overrides the configured one when non-nil.
func (c *Container) NewEngine(withStore bool, threshold *float64) (*decision.Engine, error) {
	set, err := c.GetArtifacts()
	if err != nil {
		return nil, err
	}
	adapter, err := set.Classifier()
	if err != nil {
		return nil, err
	}

	var gateway store.Gateway
	if withStore {
		s, err := c.GetStore()
		if err != nil {
			return nil, err
		}
		gateway = s
	}

	t := c.config.Classification.ConfidenceThreshold
	if threshold != nil {
		if err := config.ValidateThreshold(*threshold); err != nil {
			return nil, err
		}
		t = *threshold
	}
	return decision.NewEngine(set.Encoder, adapter, gateway, t, c.logger)
}

// TrainingOptions maps the training section of the configuration.
func (c *Container) TrainingOptions() training.Options {
	tc := c.config.Training
	return training.Options{
		Vectorizer: features.VectorizerOptions{
			NgramMin:    tc.NgramMin,
			NgramMax:    tc.NgramMax,
			MaxFeatures: tc.MaxFeatures,
		},
		Forest: forest.Options{
			NEstimators:     tc.NEstimators,
			MaxDepth:        tc.MaxDepth,
			MinSamplesSplit: tc.MinSamplesSplit,
			Seed:            tc.Seed,
		},
		TestSize:   tc.TestSize,
		ReportFile: tc.ReportFile,
	}
}

// NewTrainingPipeline builds a training pipeline from the configuration.
func (c *Container) NewTrainingPipeline() (*training.Pipeline, error) {
	return training.NewPipeline(c.normalizer, c.TrainingOptions(), c.logger)
}

// Close releases the store connection, if one was opened.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
