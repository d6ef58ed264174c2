package service

import (
	"context"
	"strings"

	"github.com/authorstack/authorstack/internal/cache"
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/user/domain"
	"github.com/authorstack/authorstack/internal/validation"
	"github.com/authorstack/authorstack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Repo      domain.Repository
	Cache     cache.Cache
	Validator *validation.Validator
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	cache     cache.Cache
	validator *validation.Validator
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("user.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		cache:     p.Cache,
		validator: p.Validator,
	}
}

func (s *Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	userID, err := normalizeID(userID)
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, cache.UserKey(userID), cache.TTLUser, func(ctx context.Context) (*domain.User, error) {
		found, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			return nil, db.Wrap("get user", err)
		}
		if found == nil {
			return nil, domain.ErrNotFound
		}
		return found, nil
	})
}

// Update applies a partial profile change, creating the profile on first
// write.
func (s *Service) Update(ctx context.Context, userID string, req domain.UpdateRequest) (*domain.User, error) {
	userID, err := normalizeID(userID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if req.Name == nil && req.Email == nil && emptyPreferences(req.Preferences) {
		return nil, domain.ErrEmptyUpdate
	}

	user, err := s.repo.UpdateProfile(ctx, userID, req, s.clock.Now().UTC())
	if err != nil {
		return nil, db.Wrap("update user", err)
	}
	s.invalidate(ctx, userID)
	return user, nil
}

func (s *Service) AddCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	userID, err := normalizeID(userID)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	user, err := s.repo.IncCredits(ctx, userID, amount, s.clock.Now().UTC())
	if err != nil {
		return 0, db.Wrap("add credits", err)
	}
	if user == nil {
		return 0, domain.ErrNotFound
	}
	s.invalidate(ctx, userID)
	s.log.Info("credits added", zap.String("user_id", userID), zap.Int64("amount", amount), zap.Int64("balance", user.Credits))
	return user.Credits, nil
}

// DeductCredits never reads the balance before writing; the repository
// update is conditional on the balance covering amount.
func (s *Service) DeductCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	userID, err := normalizeID(userID)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	user, err := s.repo.DeductCredits(ctx, userID, amount, s.clock.Now().UTC())
	if err != nil {
		return 0, db.Wrap("deduct credits", err)
	}
	if user == nil {
		existing, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			return 0, db.Wrap("deduct credits", err)
		}
		if existing == nil {
			return 0, domain.ErrNotFound
		}
		return existing.Credits, domain.ErrInsufficientCredits
	}
	s.invalidate(ctx, userID)
	return user.Credits, nil
}

func (s *Service) UpdateSubscription(ctx context.Context, userID string, tier domain.Tier) error {
	userID, err := normalizeID(userID)
	if err != nil {
		return err
	}
	if !tier.Valid() {
		return domain.ErrInvalidTier
	}

	if err := s.repo.SetTier(ctx, userID, tier, s.clock.Now().UTC()); err != nil {
		return db.Wrap("update subscription", err)
	}
	s.invalidate(ctx, userID)
	s.log.Info("subscription updated", zap.String("user_id", userID), zap.String("tier", string(tier)))
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, cache.UserKey(userID)); err != nil {
		s.log.Warn("failed to invalidate user cache", zap.String("user_id", userID), zap.Error(err))
	}
}

func normalizeID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.ErrInvalidUser
	}
	return userID, nil
}

func emptyPreferences(p *domain.PreferencesRequest) bool {
	return p == nil || (p.EmailNotifications == nil &&
		p.WeeklyDigest == nil &&
		p.Theme == nil &&
		p.Timezone == nil &&
		p.Currency == nil)
}
