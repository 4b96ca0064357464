// Package catalog is the read-only product collaborator: lookups and search
// against the engine's catalog, with a redis read-through cache in front of
// single-product lookups. The engine owns matching and ranking; this package
// only projects results into the external item schema.
package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ucplabs/ucp-bridge/internal/domain"
	"github.com/ucplabs/ucp-bridge/internal/format"
)

const keyPrefix = "product:"

// Price is a decimal amount with its currency.
type Price struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Item is the external catalog projection of a product.
type Item struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	SKU          string   `json:"sku,omitempty"`
	URL          string   `json:"url,omitempty"`
	Price        Price    `json:"price"`
	Availability string   `json:"availability"`
	Images       []string `json:"images,omitempty"`
}

// engineCatalog is the slice of the engine client the catalog needs.
type engineCatalog interface {
	Product(ctx context.Context, id string) (*domain.Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]*domain.Product, error)
}

// Service serves product lookups and search. A nil redis client disables
// caching; cache failures degrade to direct engine reads.
type Service struct {
	engine engineCatalog
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates the catalog service.
func NewService(engine engineCatalog, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		engine: engine,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// FindProduct returns the product with the given id, reading through the cache.
// Unknown ids yield ProductNotFound.
func (s *Service) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	if p := s.cached(ctx, id); p != nil {
		return p, nil
	}

	p, err := s.engine.Product(ctx, id)
	if err != nil {
		return nil, err
	}

	s.store(ctx, p)
	return p, nil
}

// Search queries the catalog and projects the results. Search results are not
// cached: queries are unbounded and the engine already ranks them cheaply.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	products, err := s.engine.SearchProducts(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(products))
	for _, p := range products {
		items = append(items, ProjectItem(p))
	}
	return items, nil
}

// ProjectItem converts a product into the external item schema.
func ProjectItem(p *domain.Product) Item {
	return Item{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		URL:         p.URL,
		Price: Price{
			Value:    format.MajorUnits(p.Price, p.MinorUnit),
			Currency: p.Currency,
		},
		Availability: p.Availability(),
		Images:       p.Images,
	}
}

func (s *Service) cached(ctx context.Context, id string) *domain.Product {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.WarnContext(ctx, "product cache read failed",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.WarnContext(ctx, "product cache entry corrupt",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &p
}

func (s *Service) store(ctx context.Context, p *domain.Product) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, keyPrefix+p.ID, data, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "product cache write failed",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}
