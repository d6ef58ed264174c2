package service

import (
	"context"
	"strings"
	"time"

	"github.com/authorstack/authorstack/internal/book/domain"
	"github.com/authorstack/authorstack/internal/cache"
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/validation"
	"github.com/authorstack/authorstack/pkg/db"
	"github.com/gosimple/slug"
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
		log:       p.Log.Named("book.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		cache:     p.Cache,
		validator: p.Validator,
	}
}

func (s *Service) Create(ctx context.Context, userID string, req domain.CreateRequest) (*domain.Book, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	book := &domain.Book{
		UserID:      userID,
		Title:       req.Title,
		Slug:        slug.Make(req.Title),
		Subtitle:    trimmed(req.Subtitle),
		Author:      req.Author,
		Description: trimmed(req.Description),
		ISBN:        trimmed(req.ISBN),
		ASIN:        trimmed(req.ASIN),
		CoverURL:    trimmed(req.CoverURL),
		Genres:      orEmpty(req.Genres),
		Platforms:   orEmpty(req.Platforms),
		Status:      domain.StatusDraft,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if book.Metadata == nil {
		book.Metadata = map[string]any{}
	}
	if req.PublishedDate != nil {
		published, err := parsePublished(*req.PublishedDate)
		if err != nil {
			return nil, err
		}
		book.PublishedDate = published
	}

	if err := s.repo.Insert(ctx, book); err != nil {
		return nil, db.Wrap("create book", err)
	}
	s.log.Info("book created", zap.String("book_id", book.ID), zap.String("user_id", userID))
	return book, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Book, error) {
	userID, id, err := normalizeIDs(userID, id)
	if err != nil {
		return nil, err
	}

	book, err := cache.Fetch(ctx, s.cache, cache.BookKey(id), cache.TTLBook, func(ctx context.Context) (*domain.Book, error) {
		found, err := s.repo.FindByID(ctx, userID, id)
		if err != nil {
			return nil, db.Wrap("get book", err)
		}
		if found == nil {
			return nil, domain.ErrNotFound
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	// The cache is keyed by book only; never hand another user's book back.
	if book.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return book, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Book, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	books, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, db.Wrap("list books", err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return books, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, req domain.UpdateRequest) (*domain.Book, error) {
	userID, id, err := normalizeIDs(userID, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		req.Title = &title
	}
	if req.Author != nil {
		author := strings.TrimSpace(*req.Author)
		req.Author = &author
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	book, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, db.Wrap("get book", err)
	}
	if book == nil {
		return nil, domain.ErrNotFound
	}

	if err := applyUpdate(book, req); err != nil {
		return nil, err
	}
	book.UpdatedAt = s.clock.Now().UTC()

	matched, err := s.repo.Replace(ctx, book)
	if err != nil {
		return nil, db.Wrap("update book", err)
	}
	if !matched {
		return nil, domain.ErrNotFound
	}
	s.invalidate(ctx, id)
	return book, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	userID, id, err := normalizeIDs(userID, id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return db.Wrap("delete book", err)
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, cache.BookKey(id)); err != nil {
		s.log.Warn("failed to invalidate book cache", zap.String("book_id", id), zap.Error(err))
	}
}

func applyUpdate(book *domain.Book, req domain.UpdateRequest) error {
	if req.Title != nil {
		book.Title = *req.Title
		book.Slug = slug.Make(*req.Title)
	}
	if req.Subtitle != nil {
		book.Subtitle = trimmed(req.Subtitle)
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.Description != nil {
		book.Description = trimmed(req.Description)
	}
	if req.ISBN != nil {
		book.ISBN = trimmed(req.ISBN)
	}
	if req.ASIN != nil {
		book.ASIN = trimmed(req.ASIN)
	}
	if req.CoverURL != nil {
		book.CoverURL = trimmed(req.CoverURL)
	}
	if req.Genres != nil {
		book.Genres = req.Genres
	}
	if req.Platforms != nil {
		book.Platforms = req.Platforms
	}
	if req.PublishedDate != nil {
		published, err := parsePublished(*req.PublishedDate)
		if err != nil {
			return err
		}
		book.PublishedDate = published
	}
	if req.Status != nil {
		book.Status = *req.Status
	}
	if req.Metadata != nil {
		book.Metadata = req.Metadata
	}
	return nil
}

func normalizeIDs(userID, id string) (string, string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", "", domain.ErrInvalidUser
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", domain.ErrInvalidID
	}
	return userID, id, nil
}

func parsePublished(value string) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return nil, validation.New("published_date", "datetime", "must be an RFC3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
