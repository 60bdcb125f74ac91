package categories

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/outbox"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

const nameTaken = "Category with this name already exists"

// EventPublisher relays a committed outbox event. *outbox.Relay implements
// it; events it fails to send stay pending for the relay-outbox job.
type EventPublisher interface {
	Publish(ctx context.Context, e outbox.Event) error
}

type Service struct {
	store   *Store
	relay   EventPublisher
	v       *validatorv10.Validate
	logger  *slog.Logger
	nowFunc func() time.Time
	newID   func() string
}

func NewService(store *Store, relay EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		relay:   relay,
		v:       validation.New(),
		logger:  logger,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

func (s *Service) Register(srv *rpc.Server) {
	srv.Handle("create_category", rpc.Command(s.v, func(ctx context.Context, req validation.CreateCategoryRequest) (rpc.Reply, error) {
		c, err := s.Create(ctx, req)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("Category created successfully", c), nil
	}))
	srv.Handle("update_category", rpc.Command(s.v, func(ctx context.Context, req validation.UpdateCategoryRequest) (rpc.Reply, error) {
		c, err := s.Update(ctx, req)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("Category updated successfully", c), nil
	}))
	srv.Handle("get_category", rpc.Command(s.v, func(ctx context.Context, req validation.IDRequest) (rpc.Reply, error) {
		c, err := s.Get(ctx, req.ID)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("", c), nil
	}))
	srv.Handle("get_category_by_slug", rpc.Command(s.v, func(ctx context.Context, req validation.SlugRequest) (rpc.Reply, error) {
		c, err := s.GetBySlug(ctx, req.Slug)
		if err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("", c), nil
	}))
	srv.Handle("get_categories", rpc.Command(s.v, func(ctx context.Context, req validation.ListCategoriesRequest) (rpc.Reply, error) {
		list, err := s.store.List(ctx, req.IncludeInactive)
		if err != nil {
			return rpc.Reply{}, apperr.Internal("failed to list categories", err)
		}
		return rpc.OK("", list), nil
	}))
	srv.Handle("delete_category", rpc.Command(s.v, func(ctx context.Context, req validation.IDRequest) (rpc.Reply, error) {
		if err := s.Delete(ctx, req.ID); err != nil {
			return rpc.Reply{}, err
		}
		return rpc.OK("Category deleted successfully", nil), nil
	}))
}

func (s *Service) Create(ctx context.Context, req validation.CreateCategoryRequest) (*Category, error) {
	name := strings.TrimSpace(req.Name)
	slug := Slugify(name)
	if slug == "" {
		return nil, apperr.Validation("Category name must contain letters or numbers")
	}

	now := s.nowFunc().UTC()
	c := Category{
		ID:          s.newID(),
		Name:        name,
		Slug:        slug,
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	event, err := outbox.NewEvent(outbox.TypeCategoryUpserted, c.ID, c.Snapshot(), now)
	if err != nil {
		return nil, apperr.Internal("failed to create category", err)
	}
	if err := s.store.Create(ctx, c, event); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return nil, apperr.Conflict(nameTaken)
		}
		return nil, apperr.Internal("failed to create category", err)
	}
	s.logger.Info("category created", "category_id", c.ID, "slug", c.Slug)
	s.publish(ctx, event)
	return &c, nil
}

// Update applies the non-nil fields of req. A new name regenerates the slug;
// an event is recorded only when name or slug changed.
func (s *Service) Update(ctx context.Context, req validation.UpdateCategoryRequest) (*Category, error) {
	prev, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return nil, mapErr(err, "failed to load category")
	}

	next := *prev
	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
		next.Slug = Slugify(next.Name)
		if next.Slug == "" {
			return nil, apperr.Validation("Category name must contain letters or numbers")
		}
	}
	if req.Description != nil {
		next.Description = *req.Description
	}
	if req.IsActive != nil {
		next.IsActive = *req.IsActive
	}
	next.UpdatedAt = s.nowFunc().UTC()

	var event *outbox.Event
	if next.Name != prev.Name || next.Slug != prev.Slug {
		e, err := outbox.NewEvent(outbox.TypeCategoryUpserted, next.ID, next.Snapshot(), next.UpdatedAt)
		if err != nil {
			return nil, apperr.Internal("failed to update category", err)
		}
		event = &e
	}

	if err := s.store.Replace(ctx, *prev, next, event); err != nil {
		switch {
		case errors.Is(err, ErrSlugTaken):
			return nil, apperr.Conflict(nameTaken)
		case errors.Is(err, ErrConcurrentUpdate):
			return nil, apperr.Conflict("Category was modified concurrently, please retry")
		}
		return nil, apperr.Internal("failed to update category", err)
	}
	s.logger.Info("category updated", "category_id", next.ID, "renamed", event != nil)
	if event != nil {
		s.publish(ctx, *event)
	}
	return &next, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Category, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err, "failed to load category")
	}
	return c, nil
}

// GetBySlug only finds active categories.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	c, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, mapErr(err, "failed to load category")
	}
	if !c.IsActive {
		return nil, apperr.NotFound("Category not found")
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return mapErr(err, "failed to load category")
	}
	if err := s.store.Delete(ctx, *c); err != nil {
		return mapErr(err, "failed to delete category")
	}
	s.logger.Info("category deleted", "category_id", id)
	return nil
}

func (s *Service) publish(ctx context.Context, e outbox.Event) {
	if s.relay == nil {
		return
	}
	if err := s.relay.Publish(ctx, e); err != nil {
		s.logger.Warn("category event not relayed yet", "event_id", e.ID, "error", err)
	}
}

func mapErr(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Category not found")
	}
	return apperr.Internal(msg, err)
}
