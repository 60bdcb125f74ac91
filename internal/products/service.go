package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/categories"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// CategorySource looks up the authoritative category. *categories.Client
// implements it.
type CategorySource interface {
	Get(ctx context.Context, id string) (*categories.Category, error)
}

type Service struct {
	store   *Store
	source  CategorySource
	v       *validatorv10.Validate
	logger  *slog.Logger
	nowFunc func() time.Time
	newID   func() string
}

func NewService(store *Store, source CategorySource, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		source:  source,
		v:       validation.New(),
		logger:  logger,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

func (s *Service) Register(srv *rpc.Server) {
	srv.Handle("create_product", rpc.Command(s.v, func(ctx context.Context, req validation.CreateProductRequest) (rpc.Reply, error) {
		p, err := s.Create(ctx, req)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("Product created successfully", p), nil
	}))
	srv.Handle("get_product", rpc.Command(s.v, func(ctx context.Context, req validation.IDRequest) (rpc.Reply, error) {
		p, err := s.Get(ctx, req.ID)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("", p), nil
	}))
	srv.Handle("get_products", rpc.Command(s.v, func(ctx context.Context, req validation.ListProductsRequest) (rpc.Reply, error) {
		list, err := s.List(ctx, req.CategoryID)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("", list), nil
	}))
	srv.Handle("sync_category_snapshot", rpc.Command(s.v, func(ctx context.Context, req validation.CategorySnapshotRequest) (rpc.Reply, error) {
		rep, err := s.ApplyCategorySnapshot(ctx, req)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("Category snapshot applied", rep), nil
	}))
}

// Create stores a product with the category copy taken from the local
// snapshot, or from the categories service when no snapshot exists yet.
func (s *Service) Create(ctx context.Context, req validation.CreateProductRequest) (*Product, error) {
	snap, err := s.snapshot(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	p := Product{
		ID:          s.newID(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if snap != nil {
		p.CategoryName, p.CategorySlug, p.CategoryVersion = snap.Name, snap.Slug, snap.Version
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, apperr.Internal("failed to create product", err)
	}
	s.logger.Info("product created", "product_id", p.ID, "category_id", p.CategoryID)
	return &p, nil
}

// snapshot returns nil without an error when the categories service cannot
// be reached; the copy stays empty until the next event or resync.
func (s *Service) snapshot(ctx context.Context, categoryID string) (*Snapshot, error) {
	snap, err := s.store.GetSnapshot(ctx, categoryID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, apperr.Internal("failed to load category snapshot", err)
	}
	if s.source == nil {
		return nil, nil
	}

	c, err := s.source.Get(ctx, categoryID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return nil, apperr.Validation("Category not found")
	case err != nil:
		s.logger.Warn("category lookup failed, product created without category copy", "category_id", categoryID, "error", err)
		return nil, nil
	}
	snap = &Snapshot{ID: c.ID, Name: c.Name, Slug: c.Slug, Version: versionOf(c.UpdatedAt), UpdatedAt: s.nowFunc().UTC()}
	err = s.store.PutSnapshot(ctx, *snap)
	if errors.Is(err, ErrStale) {
		// An event landed first; its copy is at least as new.
		snap, err = s.store.GetSnapshot(ctx, categoryID)
	}
	if err != nil {
		return nil, apperr.Internal("failed to store category snapshot", err)
	}
	return snap, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, apperr.Internal("failed to load product", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, categoryID string) ([]Product, error) {
	var (
		list []Product
		err  error
	)
	if categoryID != "" {
		list, err = s.store.ListByCategory(ctx, categoryID)
	} else {
		list, err = s.store.ListAll(ctx)
	}
	if err != nil {
		return nil, apperr.Internal("failed to list products", err)
	}
	return list, nil
}

// ApplyCategorySnapshot stores the category copy and refreshes every product
// of that category whose copy differs. Applying the same snapshot again
// writes nothing, and a snapshot older than the stored one is ignored.
func (s *Service) ApplyCategorySnapshot(ctx context.Context, req validation.CategorySnapshotRequest) (*SnapshotReport, error) {
	if req.UpdatedAt.IsZero() {
		return nil, apperr.Validation("updatedAt is required")
	}
	rep := &SnapshotReport{CategoryID: req.ID}
	log := s.logger.With("category_id", req.ID)
	now := s.nowFunc().UTC()
	snap := Snapshot{ID: req.ID, Name: req.Name, Slug: req.Slug, Version: versionOf(req.UpdatedAt), UpdatedAt: now}

	current, err := s.store.GetSnapshot(ctx, req.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, apperr.Internal("failed to load category snapshot", err)
	}
	switch {
	case current != nil && current.Version > snap.Version:
		rep.Stale = true
	case current == nil || current.Version < snap.Version:
		err := s.store.PutSnapshot(ctx, snap)
		switch {
		case errors.Is(err, ErrStale):
			rep.Stale = true
		case err != nil:
			return nil, apperr.Internal("failed to store category snapshot", err)
		default:
			rep.SnapshotChanged = current == nil || current.Name != snap.Name || current.Slug != snap.Slug
		}
	}
	if rep.Stale {
		log.Info("stale category snapshot ignored", "version", snap.Version)
		return rep, nil
	}

	list, err := s.store.ListByCategory(ctx, req.ID)
	if err != nil {
		return nil, apperr.Internal("failed to list products", err)
	}
	for _, p := range list {
		if p.CategoryVersion > snap.Version || (p.CategoryName == snap.Name && p.CategorySlug == snap.Slug) {
			continue
		}
		if err := s.store.SetCategoryCopy(ctx, p.ID, snap, now); err != nil {
			if errors.Is(err, ErrStale) {
				continue
			}
			return rep, apperr.Internal("failed to update product category", err)
		}
		rep.ProductsUpdated++
	}
	if rep.SnapshotChanged || rep.ProductsUpdated > 0 {
		log.Info("category snapshot applied", "products_updated", rep.ProductsUpdated)
	}
	return rep, nil
}

// Resync rebuilds every category copy from the categories service. Products
// whose category cannot be fetched are counted as failed and left as they
// are.
func (s *Service) Resync(ctx context.Context) (ResyncReport, error) {
	var rep ResyncReport
	if s.source == nil {
		return rep, fmt.Errorf("resync: no category source configured")
	}
	list, err := s.store.ListAll(ctx)
	if err != nil {
		return rep, err
	}

	byCategory := map[string][]Product{}
	var order []string
	for _, p := range list {
		if p.CategoryID == "" {
			continue
		}
		rep.Scanned++
		if _, seen := byCategory[p.CategoryID]; !seen {
			order = append(order, p.CategoryID)
		}
		byCategory[p.CategoryID] = append(byCategory[p.CategoryID], p)
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		log := s.logger.With("category_id", id)
		c, err := s.source.Get(ctx, id)
		if err != nil {
			rep.Failed += len(byCategory[id])
			log.Warn("category fetch failed", "error", err)
			continue
		}
		applied, err := s.ApplyCategorySnapshot(ctx, c.Snapshot())
		if err != nil {
			rep.Failed += len(byCategory[id])
			log.Warn("category snapshot not applied", "error", err)
			continue
		}
		rep.Updated += applied.ProductsUpdated
	}
	s.logger.Info("category resync finished", "scanned", rep.Scanned, "updated", rep.Updated, "failed", rep.Failed)
	return rep, nil
}
