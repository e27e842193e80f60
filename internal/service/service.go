// Package service реализует бизнес-логику витрины кондитерской: проверку
// доступа, клиентскую валидацию и согласование кэша с удалённым сервисом.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/sweetshop-storefront/internal/access"
	"github.com/mmeshcher/sweetshop-storefront/internal/identity"
	"github.com/mmeshcher/sweetshop-storefront/internal/model"
	"github.com/mmeshcher/sweetshop-storefront/internal/query"
)

// ErrSweetNotFound возвращается, если сладость отсутствует в текущем снимке каталога.
var ErrSweetNotFound = errors.New("sweet not found")

// Backend описывает операции удалённого сервиса, вызываемые витриной напрямую.
type Backend interface {
	AddSweet(ctx context.Context, sweet model.Sweet) error
	UpdateSweetPrice(ctx context.Context, name string, newPrice int64) error
	SubmitReview(ctx context.Context, rating int, reviewText string) error
	SaveCallerProfile(ctx context.Context, profile model.UserProfile) error
	ProfileByPrincipal(ctx context.Context, principal string) (*model.UserProfile, error)
	AssignRole(ctx context.Context, principal string, role model.Role) error
	IsCallerAdmin(ctx context.Context) (bool, error)
}

// Store описывает кэшированные чтения, используемые витриной.
type Store interface {
	Sweets(ctx context.Context) ([]model.Sweet, error)
	Reviews(ctx context.Context) ([]model.Review, error)
	CallerRole(ctx context.Context) (model.Role, error)
	CallerProfile(ctx context.Context) (*model.UserProfile, error)
	ApplyMutation(m query.Mutation)
}

// SessionManager описывает сессию вызывающего.
type SessionManager interface {
	Login(ctx context.Context) error
	Logout()
	Snapshot() identity.Snapshot
}

// Service содержит бизнес-логику витрины. Каждая мутация проходит путь
// проверка доступа → валидация → удалённый вызов → инвалидация кэша;
// кэш меняется только после успешного ответа сервиса.
type Service struct {
	backend Backend
	store   Store
	session SessionManager
}

// NewService создаёт сервис витрины.
func NewService(backend Backend, store Store, session SessionManager) *Service {
	return &Service{
		backend: backend,
		store:   store,
		session: session,
	}
}

// authorize проверяет доступ текущего вызывающего к операции.
func (s *Service) authorize(ctx context.Context, op access.Operation) error {
	snap := s.session.Snapshot()
	if snap.Anonymous() {
		return access.Check(model.RoleGuest, true, op).Err()
	}

	role, err := s.store.CallerRole(ctx)
	if err != nil {
		return fmt.Errorf("resolve caller role: %w", err)
	}
	return access.Check(role, false, op).Err()
}

// Login выполняет вход и сбрасывает кэш запросов, зависящих от идентичности.
func (s *Service) Login(ctx context.Context) error {
	if err := s.session.Login(ctx); err != nil {
		return err
	}
	s.store.ApplyMutation(query.MutationSessionChange)
	return nil
}

// Logout завершает сессию и сбрасывает кэш запросов, зависящих от идентичности.
func (s *Service) Logout() {
	s.session.Logout()
	s.store.ApplyMutation(query.MutationSessionChange)
}

// Session возвращает снимок текущей сессии.
func (s *Service) Session() identity.Snapshot {
	return s.session.Snapshot()
}

// Sweets возвращает каталог из кэша, при необходимости загружая его с сервиса.
func (s *Service) Sweets(ctx context.Context) ([]model.Sweet, error) {
	return s.store.Sweets(ctx)
}

// SweetByName находит сладость в текущем снимке каталога.
func (s *Service) SweetByName(ctx context.Context, name string) (model.Sweet, error) {
	sweets, err := s.store.Sweets(ctx)
	if err != nil {
		return model.Sweet{}, err
	}
	for _, sweet := range sweets {
		if sweet.Name == name {
			return sweet, nil
		}
	}
	return model.Sweet{}, ErrSweetNotFound
}

// AddSweet добавляет позицию каталога. Требуется роль admin.
func (s *Service) AddSweet(ctx context.Context, sweet model.Sweet) error {
	if err := s.authorize(ctx, access.OpAddSweet); err != nil {
		return err
	}
	if err := model.ValidatePrice(sweet.Price); err != nil {
		return err
	}
	if !sweet.Category.Valid() {
		return model.ErrUnknownCategory
	}

	if err := s.backend.AddSweet(ctx, sweet); err != nil {
		return err
	}

	s.store.ApplyMutation(query.MutationAddSweet)
	return nil
}

// UpdateSweetPrice изменяет цену позиции каталога. Требуется роль admin.
func (s *Service) UpdateSweetPrice(ctx context.Context, name string, newPrice int64) error {
	if err := s.authorize(ctx, access.OpUpdateSweetPrice); err != nil {
		return err
	}
	if err := model.ValidatePrice(newPrice); err != nil {
		return err
	}

	if err := s.backend.UpdateSweetPrice(ctx, name, newPrice); err != nil {
		return err
	}

	s.store.ApplyMutation(query.MutationUpdateSweetPrice)
	return nil
}

// Reviews возвращает список отзывов из кэша.
func (s *Service) Reviews(ctx context.Context) ([]model.Review, error) {
	return s.store.Reviews(ctx)
}

// ReviewStats возвращает агрегат по отзывам: среднюю оценку и количество.
func (s *Service) ReviewStats(ctx context.Context) (model.ReviewStats, error) {
	reviews, err := s.store.Reviews(ctx)
	if err != nil {
		return model.ReviewStats{}, err
	}
	return model.Summarize(reviews), nil
}

// SubmitReview отправляет отзыв от имени текущего вызывающего. Оценка
// проверяется до сетевого вызова; невалидный отзыв до сервиса не доходит.
func (s *Service) SubmitReview(ctx context.Context, rating int, reviewText string) error {
	if err := s.authorize(ctx, access.OpSubmitReview); err != nil {
		return err
	}
	if err := model.ValidateRating(rating); err != nil {
		return err
	}

	if err := s.backend.SubmitReview(ctx, rating, reviewText); err != nil {
		return err
	}

	s.store.ApplyMutation(query.MutationSubmitReview)
	return nil
}

// CallerRole возвращает роль текущего вызывающего. Для анонимного вызывающего
// роль guest возвращается без обращения к сервису.
func (s *Service) CallerRole(ctx context.Context) (model.Role, error) {
	if s.session.Snapshot().Anonymous() {
		return model.RoleGuest, nil
	}
	return s.store.CallerRole(ctx)
}

// IsAdmin сообщает, является ли текущий вызывающий администратором.
func (s *Service) IsAdmin(ctx context.Context) (bool, error) {
	if s.session.Snapshot().Anonymous() {
		return false, nil
	}
	return s.backend.IsCallerAdmin(ctx)
}

// CallerProfile возвращает профиль текущего вызывающего; nil, если профиль
// ещё не сохранён.
func (s *Service) CallerProfile(ctx context.Context) (*model.UserProfile, error) {
	if err := s.authorize(ctx, access.OpGetCallerProfile); err != nil {
		return nil, err
	}
	return s.store.CallerProfile(ctx)
}

// SaveCallerProfile сохраняет профиль текущего вызывающего.
func (s *Service) SaveCallerProfile(ctx context.Context, profile model.UserProfile) error {
	if err := s.authorize(ctx, access.OpSaveCallerProfile); err != nil {
		return err
	}

	if err := s.backend.SaveCallerProfile(ctx, profile); err != nil {
		return err
	}

	s.store.ApplyMutation(query.MutationSaveProfile)
	return nil
}

// ProfileByPrincipal возвращает профиль по ссылке на идентичность.
func (s *Service) ProfileByPrincipal(ctx context.Context, principal string) (*model.UserProfile, error) {
	return s.backend.ProfileByPrincipal(ctx, principal)
}

// AssignRole назначает роль другой идентичности. Требуется роль admin.
// Кэш не инвалидируется: роль другого пользователя витрина не кэширует.
func (s *Service) AssignRole(ctx context.Context, principal string, role model.Role) error {
	if err := s.authorize(ctx, access.OpAssignRole); err != nil {
		return err
	}
	if !role.Valid() {
		return model.ErrUnknownRole
	}

	if err := s.backend.AssignRole(ctx, principal, role); err != nil {
		return err
	}

	s.store.ApplyMutation(query.MutationAssignRole)
	return nil
}
