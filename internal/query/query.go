// Package query реализует клиентский слой синхронизации с удалённым сервисом:
// кэш чтений с явным набором ключей, дедупликацией одновременных запросов и
// точечной инвалидацией по мутациям.
package query

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/sweetshop-storefront/internal/model"
)

// Key идентифицирует логический запрос чтения. Набор ключей закрыт:
// инвалидация работает только с перечисленными здесь значениями.
type Key string

const (
	// KeyCatalog — список сладостей каталога.
	KeyCatalog Key = "catalog"
	// KeyReviews — список отзывов о гигиене.
	KeyReviews Key = "reviews"
	// KeyCallerRole — роль текущего вызывающего.
	KeyCallerRole Key = "caller_role"
	// KeyCallerProfile — профиль текущего вызывающего.
	KeyCallerProfile Key = "caller_profile"
)

// State описывает состояние отслеживаемого запроса.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

// String возвращает строковое представление состояния.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Mutation перечисляет мутации, влияющие на кэш.
type Mutation string

const (
	MutationAddSweet         Mutation = "add_sweet"
	MutationUpdateSweetPrice Mutation = "update_sweet_price"
	MutationSubmitReview     Mutation = "submit_review"
	MutationSaveProfile      Mutation = "save_profile"
	MutationAssignRole       Mutation = "assign_role"
	// MutationSessionChange — вход или выход из системы; сбрасывает запросы,
	// зависящие от текущей идентичности.
	MutationSessionChange Mutation = "session_change"
)

// invalidations — статическая таблица соответствия мутаций и инвалидируемых
// ключей. Успешная мутация инвалидирует ровно перечисленные ключи и ничего
// больше; неуспешная не инвалидирует ничего.
var invalidations = map[Mutation][]Key{
	MutationAddSweet:         {KeyCatalog},
	MutationUpdateSweetPrice: {KeyCatalog},
	MutationSubmitReview:     {KeyReviews},
	MutationSaveProfile:      {KeyCallerProfile},
	MutationAssignRole:       {},
	MutationSessionChange:    {KeyCallerRole, KeyCallerProfile},
}

// InvalidatedKeys возвращает ключи, инвалидируемые указанной мутацией.
func InvalidatedKeys(m Mutation) []Key {
	return invalidations[m]
}

// Mutations возвращает все известные мутации. Используется тестами для
// исчерпывающей проверки таблицы инвалидации.
func Mutations() []Mutation {
	ms := make([]Mutation, 0, len(invalidations))
	for m := range invalidations {
		ms = append(ms, m)
	}
	return ms
}

// Backend определяет операции чтения удалённого сервиса, используемые кэшем.
type Backend interface {
	ListSweets(ctx context.Context) ([]model.Sweet, error)
	ListReviews(ctx context.Context) ([]model.Review, error)
	CallerRole(ctx context.Context) (model.Role, error)
	CallerProfile(ctx context.Context) (*model.UserProfile, error)
}

type entry struct {
	state State
	value any
	// gen увеличивается при каждой инвалидации; завершившийся запрос не
	// записывает результат, если ключ успел инвалидироваться.
	gen uint64
}

// Store хранит кэш отслеживаемых запросов. Готовое значение отдаётся новым
// подписчикам без повторного запроса до явной инвалидации; одновременные
// чтения одного ключа разделяют один сетевой вызов.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[Key]*entry
	group   singleflight.Group
}

// NewStore создаёт кэш поверх указанного клиента удалённого сервиса.
func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		entries: make(map[Key]*entry),
	}
}

func (s *Store) ent(key Key) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

// State возвращает текущее состояние запроса по ключу.
func (s *Store) State(key Key) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.state
	}
	return StateIdle
}

// get возвращает кэшированное значение либо выполняет fetch, разделяя его
// между одновременными подписчиками.
func (s *Store) get(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (any, error) {
	s.mu.Lock()
	e := s.ent(key)
	if e.state == StateReady {
		v := e.value
		s.mu.Unlock()
		return v, nil
	}
	startGen := e.gen
	e.state = StateLoading
	s.mu.Unlock()

	// Отказ подписчика не отменяет уже начатый сетевой вызов: остальные
	// подписчики ключа ждут тот же результат.
	fetchCtx := context.WithoutCancel(ctx)

	v, err, _ := s.group.Do(string(key), func() (any, error) {
		return fetch(fetchCtx)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	e = s.ent(key)
	if err != nil {
		if e.gen == startGen {
			e.state = StateFailed
			e.value = nil
		}
		s.logger.Warn("query fetch failed", zap.String("key", string(key)), zap.Error(err))
		return nil, err
	}

	if e.gen == startGen {
		e.state = StateReady
		e.value = v
	}
	return v, nil
}

// Invalidate помечает перечисленные ключи устаревшими: следующее чтение
// выполнит запрос заново.
func (s *Store) Invalidate(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		e := s.ent(key)
		e.gen++
		e.state = StateIdle
		e.value = nil
		s.group.Forget(string(key))
		s.logger.Debug("query invalidated", zap.String("key", string(key)))
	}
}

// ApplyMutation применяет инвалидацию для успешно завершившейся мутации.
func (s *Store) ApplyMutation(m Mutation) {
	s.Invalidate(invalidations[m]...)
}

// Sweets возвращает каталог, при необходимости загружая его с сервиса.
func (s *Store) Sweets(ctx context.Context) ([]model.Sweet, error) {
	v, err := s.get(ctx, KeyCatalog, func(ctx context.Context) (any, error) {
		return s.backend.ListSweets(ctx)
	})
	if err != nil {
		return nil, err
	}
	sweets, _ := v.([]model.Sweet)
	return sweets, nil
}

// Reviews возвращает список отзывов, при необходимости загружая его с сервиса.
func (s *Store) Reviews(ctx context.Context) ([]model.Review, error) {
	v, err := s.get(ctx, KeyReviews, func(ctx context.Context) (any, error) {
		return s.backend.ListReviews(ctx)
	})
	if err != nil {
		return nil, err
	}
	reviews, _ := v.([]model.Review)
	return reviews, nil
}

// CallerRole возвращает роль текущего вызывающего.
func (s *Store) CallerRole(ctx context.Context) (model.Role, error) {
	v, err := s.get(ctx, KeyCallerRole, func(ctx context.Context) (any, error) {
		return s.backend.CallerRole(ctx)
	})
	if err != nil {
		return "", err
	}
	role, _ := v.(model.Role)
	return role, nil
}

// CallerProfile возвращает профиль текущего вызывающего; nil означает, что
// профиль ещё не сохранён.
func (s *Store) CallerProfile(ctx context.Context) (*model.UserProfile, error) {
	v, err := s.get(ctx, KeyCallerProfile, func(ctx context.Context) (any, error) {
		return s.backend.CallerProfile(ctx)
	})
	if err != nil {
		return nil, err
	}
	profile, _ := v.(*model.UserProfile)
	return profile, nil
}
