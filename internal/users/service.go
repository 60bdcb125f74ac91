package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

type Service struct {
	store   *Store
	v       *validatorv10.Validate
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewService(store *Store, logger *slog.Logger) *Service {
	return &Service{store: store, v: validation.New(), logger: logger, nowFunc: time.Now}
}

// Register mounts POST /sync and the profile commands.
func (s *Service) Register(srv *rpc.Server) {
	srv.Engine().POST("/sync", s.handleSync)
	srv.Handle("get_user", rpc.Command(s.v, s.get))
	srv.Handle("get_all_users", rpc.Command(s.v, s.list))
	srv.Handle("update_user", rpc.Command(s.v, s.update))
	srv.Handle("delete_user", rpc.Command(s.v, s.delete))
}

// Sync upserts the profile for req.ID. req.UpdatedAt orders syncs of one
// account: a replay of the same version leaves the stored profile untouched,
// updatedAt and local edits included, and an older version is ignored.
func (s *Service) Sync(ctx context.Context, req validation.SyncProfileRequest) (*Profile, SyncOutcome, error) {
	if req.UpdatedAt.IsZero() {
		return nil, "", apperr.Validation("updatedAt is required")
	}
	version := req.UpdatedAt.UnixNano()

	current, err := s.store.Get(ctx, req.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		current = nil
	case err != nil:
		return nil, "", apperr.Internal("Failed to sync user profile", err)
	}
	if current != nil {
		switch {
		case current.SourceVersion > version:
			return s.stale(current, version)
		case current.SourceVersion == version:
			return current, SyncUnchanged, nil
		case current.Email == req.Email && current.Name == req.Name && current.Role == req.Role:
			if err := s.store.MarkVersion(ctx, req.ID, version); err != nil && !errors.Is(err, ErrStale) {
				return nil, "", apperr.Internal("Failed to sync user profile", err)
			}
			return current, SyncUnchanged, nil
		}
	}

	p, err := s.store.Upsert(ctx, req, version, s.nowFunc())
	if errors.Is(err, ErrStale) {
		if current, err = s.store.Get(ctx, req.ID); err == nil {
			return s.stale(current, version)
		}
	}
	if err != nil {
		return nil, "", apperr.Internal("Failed to sync user profile", err)
	}
	outcome := SyncUpdated
	if current == nil {
		outcome = SyncCreated
	}
	s.logger.Info("profile synced", "user_id", p.ID, "outcome", outcome)
	return p, outcome, nil
}

func (s *Service) stale(current *Profile, version int64) (*Profile, SyncOutcome, error) {
	s.logger.Info("stale profile sync ignored", "user_id", current.ID, "version", version, "stored_version", current.SourceVersion)
	return current, SyncStale, nil
}

func (s *Service) handleSync(c *gin.Context) {
	var req validation.SyncProfileRequest
	if err := validation.BindAndValidate(c, &req, s.v); err != nil {
		return
	}
	p, outcome, err := s.Sync(c.Request.Context(), req)
	if err != nil {
		rpc.WriteError(c, s.logger, err)
		return
	}
	msg := "User profile updated successfully"
	switch outcome {
	case SyncCreated:
		msg = "User profile created successfully"
	case SyncUnchanged, SyncStale:
		msg = "User profile already up to date"
	}
	rpc.WriteReply(c, http.StatusOK, rpc.OK(msg, p))
}

func (s *Service) get(ctx context.Context, req validation.IDRequest) (rpc.Reply, error) {
	p, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return rpc.Reply{}, mapErr(err, "failed to load user")
	}
	return rpc.OK("", p), nil
}

func (s *Service) list(ctx context.Context, _ struct{}) (rpc.Reply, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return rpc.Reply{}, apperr.Internal("failed to list users", err)
	}
	return rpc.OK("", list), nil
}

func (s *Service) update(ctx context.Context, req validation.UpdateUserRequest) (rpc.Reply, error) {
	p, err := s.store.Update(ctx, req, s.nowFunc())
	if err != nil {
		return rpc.Reply{}, mapErr(err, "failed to update user")
	}
	return rpc.OK("User updated successfully", p), nil
}

func (s *Service) delete(ctx context.Context, req validation.IDRequest) (rpc.Reply, error) {
	if err := s.store.Delete(ctx, req.ID); err != nil {
		return rpc.Reply{}, mapErr(err, "failed to delete user")
	}
	s.logger.Info("profile deleted", "user_id", req.ID)
	return rpc.OK("User deleted successfully", nil), nil
}

func mapErr(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("User not found")
	}
	return apperr.Internal(msg, err)
}
