package card

import (
	"context"
	"time"

	"glim-hq/cards/pkg/cache"
	"glim-hq/cards/pkg/upstream"
)

// Fetcher resolves repository metadata. *upstream.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (*upstream.Repository, error)
}

// Store is a content cache. *cache.Cache implements it.
type Store interface {
	GetOrCreate(ctx context.Context, meaning cache.Meaning, generate cache.GenerateFunc) (*cache.Entry, error)
}

// Service produces cards: it fetches repository metadata and renders it,
// going through a Store when one is configured.
type Service struct {
	fetcher  Fetcher
	renderer *Renderer
	store    Store
}

// NewService creates a Service. store may be nil, in which case every call
// fetches and renders.
func NewService(fetcher Fetcher, renderer *Renderer, store Store) *Service {
	return &Service{fetcher: fetcher, renderer: renderer, store: store}
}

// Card returns the card described by m. Errors from the fetcher surface
// unchanged or wrapped in *cache.GenerationFailedError; both unwrap to the
// upstream error types.
func (s *Service) Card(ctx context.Context, m Meaning) (*cache.Entry, error) {
	if _, err := ParseTheme(m.Theme); err != nil {
		return nil, err
	}
	if s.store != nil {
		return s.store.GetOrCreate(ctx, m, s.generator(m))
	}

	data, err := s.generator(m)(ctx)
	if err != nil {
		return nil, err
	}
	return &cache.Entry{
		Data:        data,
		Meaning:     m.CacheKey(),
		AccessCount: 1,
		CreatedAt:   time.Now(),
		Tier:        cache.TierGenerated,
	}, nil
}

func (s *Service) generator(m Meaning) cache.GenerateFunc {
	return func(ctx context.Context) ([]byte, error) {
		repo, err := s.fetcher.Fetch(ctx, m.Repository())
		if err != nil {
			return nil, err
		}
		return s.renderer.Render(ctx, m, repo)
	}
}
