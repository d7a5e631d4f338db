// Package settings serves the site wide order and product settings.
package settings

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/safar/go-shop-orders/internal/cache"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/models"
)

type Source interface {
	GetSiteSettings(ctx context.Context) (*models.SiteSettings, error)
}

type Cache interface {
	GetSettings(ctx context.Context) (*models.SiteSettings, error)
	SetSettings(ctx context.Context, s models.SiteSettings, ttl time.Duration) error
}

// Provider reads through the cache to the settings row. A nil cache reads
// the row every time.
type Provider struct {
	source Source
	cache  Cache
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewProvider(source Source, c Cache, ttl time.Duration, logger *zerolog.Logger) *Provider {
	if source == nil {
		panic("settings source cannot be nil")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Provider{source: source, cache: c, ttl: ttl, logger: logger}
}

// Get returns the current settings, or the defaults when the row has never
// been written. Cache failures are logged and otherwise ignored.
func (p *Provider) Get(ctx context.Context) (models.SiteSettings, error) {
	if p.cache != nil {
		s, err := p.cache.GetSettings(ctx)
		if err == nil {
			return *s, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			p.logger.Warn().Err(err).Msg("settings cache read failed")
		}
	}

	s, err := p.source.GetSiteSettings(ctx)
	if errors.Is(err, database.ErrSettingsNotFound) {
		def := models.DefaultSiteSettings()
		s, err = &def, nil
	}
	if err != nil {
		return models.SiteSettings{}, err
	}

	if p.cache != nil && p.ttl > 0 {
		if err := p.cache.SetSettings(ctx, *s, p.ttl); err != nil {
			p.logger.Warn().Err(err).Msg("settings cache write failed")
		}
	}
	return *s, nil
}
