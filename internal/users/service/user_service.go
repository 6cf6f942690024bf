package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/internal/apperr"
	"github.com/clytar/clytar-backend/internal/users/domain"
	"github.com/clytar/clytar-backend/internal/users/repository"
)

// UserService backs the settings page and the admin user table.
type UserService struct {
	repo repository.Repository
	log  *zap.Logger
}

func NewUserService(repo repository.Repository, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{repo: repo, log: log}
}

func requireAdmin(actor *domain.User, capability string) error {
	if actor == nil || !actor.IsAdmin() {
		return &apperr.ForbiddenError{Capability: capability}
	}
	return nil
}

// ListUsers returns every account, oldest first. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := requireAdmin(actor, "list_users"); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// SetPlan switches a user between free and premium. An admin's own plan is
// fixed.
func (s *UserService) SetPlan(ctx context.Context, actor *domain.User, userID string, plan domain.Plan) (*domain.User, error) {
	if err := requireAdmin(actor, "set_plan"); err != nil {
		return nil, err
	}
	if !plan.Valid() {
		return nil, apperr.Invalid("set_plan", "plan", string(plan))
	}

	target, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.WithStage(err, "set_plan")
	}
	if target.IsAdmin() {
		return nil, &apperr.ForbiddenError{Capability: "set_admin_plan"}
	}
	if target.Plan == plan {
		return target, nil
	}

	u, err := s.repo.SetPlan(ctx, userID, plan)
	if err != nil {
		return nil, apperr.WithStage(err, "set_plan")
	}
	s.log.Info("user plan changed",
		zap.String("user_id", userID),
		zap.String("plan", string(plan)),
		zap.String("actor_id", actor.ID),
	)
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, p domain.Profile) (*domain.User, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Company = strings.TrimSpace(p.Company)
	p.JobTitle = strings.TrimSpace(p.JobTitle)
	if p.FullName == "" {
		return nil, apperr.Missing("update_profile", "full_name")
	}
	u, err := s.repo.UpdateProfile(ctx, userID, p)
	if err != nil {
		return nil, apperr.WithStage(err, "update_profile")
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.WithStage(err, "get_user")
	}
	return u, nil
}

// Stats counts accounts for the admin dashboard. Admin only.
func (s *UserService) Stats(ctx context.Context, actor *domain.User) (domain.Stats, error) {
	if err := requireAdmin(actor, "view_stats"); err != nil {
		return domain.Stats{}, err
	}
	return s.repo.Stats(ctx)
}
