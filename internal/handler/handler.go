// Package handler содержит HTTP-обработчики витрины кондитерской.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/sweetshop-storefront/internal/access"
	"github.com/mmeshcher/sweetshop-storefront/internal/backend"
	"github.com/mmeshcher/sweetshop-storefront/internal/identity"
	"github.com/mmeshcher/sweetshop-storefront/internal/middleware"
	"github.com/mmeshcher/sweetshop-storefront/internal/model"
	"github.com/mmeshcher/sweetshop-storefront/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Login(ctx context.Context) error
	Logout()
	Session() identity.Snapshot
	Sweets(ctx context.Context) ([]model.Sweet, error)
	SweetByName(ctx context.Context, name string) (model.Sweet, error)
	AddSweet(ctx context.Context, sweet model.Sweet) error
	UpdateSweetPrice(ctx context.Context, name string, newPrice int64) error
	Reviews(ctx context.Context) ([]model.Review, error)
	ReviewStats(ctx context.Context) (model.ReviewStats, error)
	SubmitReview(ctx context.Context, rating int, reviewText string) error
	CallerRole(ctx context.Context) (model.Role, error)
	IsAdmin(ctx context.Context) (bool, error)
	CallerProfile(ctx context.Context) (*model.UserProfile, error)
	SaveCallerProfile(ctx context.Context, profile model.UserProfile) error
	ProfileByPrincipal(ctx context.Context, principal string) (*model.UserProfile, error)
	AssignRole(ctx context.Context, principal string, role model.Role) error
}

// Handler реализует HTTP-обработчики витрины.
type Handler struct {
	service  Service
	logger   *zap.Logger
	session  middleware.SessionSource
	validate *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, session middleware.SessionSource) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		session:  session,
		validate: validator.New(),
	}
}

// writeError переводит ошибку домена в HTTP-ответ с понятной пользователю
// причиной. Ни одна ошибка не фатальна: пользователь может повторить действие.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidRating),
		errors.Is(err, model.ErrInvalidPrice),
		errors.Is(err, model.ErrUnknownCategory),
		errors.Is(err, model.ErrUnknownRole):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, access.ErrNotSignedIn):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, access.ErrInsufficientRole):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrSweetNotFound), errors.Is(err, backend.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, identity.ErrLoginInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, identity.ErrLoginFailed):
		http.Error(w, "login failed, please try again", http.StatusBadGateway)
	default:
		h.logger.Error("storefront request failed", zap.Error(err))
		http.Error(w, "sweetshop is temporarily unavailable, please try again", http.StatusBadGateway)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type sessionResponse struct {
	State     string     `json:"state"`
	Principal string     `json:"principal,omitempty"`
	Role      model.Role `json:"role"`
	Admin     bool       `json:"admin"`
}

func (h *Handler) sessionResponse(ctx context.Context, snap identity.Snapshot) sessionResponse {
	resp := sessionResponse{
		State:     snap.State.String(),
		Principal: snap.Principal,
		Role:      model.RoleGuest,
	}

	role, err := h.service.CallerRole(ctx)
	if err != nil {
		// Отказ чтения роли штатен для анонимного вызывающего; интерфейс
		// ведёт себя как для гостя.
		return resp
	}
	resp.Role = role

	admin, err := h.service.IsAdmin(ctx)
	if err != nil {
		return resp
	}
	resp.Admin = admin
	return resp
}

// Login выполняет вход через провайдера идентичности. Ответ строится по живому
// снимку сессии: снимок из middleware снят до смены состояния.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Login(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, h.sessionResponse(r.Context(), h.service.Session()))
}

// Logout завершает текущую сессию и отвечает живым снимком, как Login.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout()
	h.writeJSON(w, h.sessionResponse(r.Context(), h.service.Session()))
}

// GetSession возвращает состояние сессии, роль и признак администратора.
// Витрина прячет страницу владельца от остальных по этим данным.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		snap = h.service.Session()
	}
	h.writeJSON(w, h.sessionResponse(r.Context(), snap))
}

type sweetResponse struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Category      model.Category `json:"category"`
	CategoryLabel string         `json:"categoryLabel"`
	Image         string         `json:"image"`
	Price         int64          `json:"price"`
}

func (h *Handler) sweetResponse(sweet model.Sweet) sweetResponse {
	label, err := model.CategoryLabel(sweet.Category)
	if err != nil {
		h.logger.Warn("sweet with unknown category", zap.String("name", sweet.Name), zap.String("category", string(sweet.Category)))
		label = "Unknown"
	}

	return sweetResponse{
		Name:          sweet.Name,
		Description:   sweet.Description,
		Category:      sweet.Category,
		CategoryLabel: label,
		Image:         sweet.Image,
		Price:         sweet.Price,
	}
}

// GetSweets возвращает каталог витрины.
func (h *Handler) GetSweets(w http.ResponseWriter, r *http.Request) {
	sweets, err := h.service.Sweets(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]sweetResponse, 0, len(sweets))
	for _, sweet := range sweets {
		resp = append(resp, h.sweetResponse(sweet))
	}
	h.writeJSON(w, resp)
}

// reviewStatsResponse отдаёт агрегат отзывов. Средняя оценка показывается
// с точностью до одного знака после запятой.
type reviewStatsResponse struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

func newReviewStatsResponse(stats model.ReviewStats) reviewStatsResponse {
	return reviewStatsResponse{
		Average: math.Round(stats.Average*10) / 10,
		Count:   stats.Count,
	}
}

type sweetDetailResponse struct {
	Sweet   sweetResponse       `json:"sweet"`
	Hygiene reviewStatsResponse `json:"hygiene"`
}

// GetSweet возвращает карточку сладости вместе с агрегатом отзывов о гигиене.
func (h *Handler) GetSweet(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	sweet, err := h.service.SweetByName(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	stats, err := h.service.ReviewStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, sweetDetailResponse{Sweet: h.sweetResponse(sweet), Hygiene: newReviewStatsResponse(stats)})
}

type addSweetRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Image       string `json:"image"`
	Price       int64  `json:"price"`
}

// AddSweet добавляет позицию каталога от имени администратора.
func (h *Handler) AddSweet(w http.ResponseWriter, r *http.Request) {
	var req addSweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "name, description and category are required", http.StatusUnprocessableEntity)
		return
	}

	sweet := model.Sweet{
		Name:        req.Name,
		Description: req.Description,
		Category:    model.Category(req.Category),
		Image:       req.Image,
		Price:       req.Price,
	}

	if err := h.service.AddSweet(r.Context(), sweet); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type updatePriceRequest struct {
	NewPrice int64 `json:"newPrice"`
}

// UpdateSweetPrice изменяет цену позиции каталога от имени администратора.
func (h *Handler) UpdateSweetPrice(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var req updatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateSweetPrice(r.Context(), name, req.NewPrice); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetReviews возвращает все отзывы о гигиене.
func (h *Handler) GetReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.Reviews(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	h.writeJSON(w, reviews)
}

// GetReviewStats возвращает среднюю оценку и количество отзывов.
func (h *Handler) GetReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ReviewStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, newReviewStatsResponse(stats))
}

type submitReviewRequest struct {
	Rating     int    `json:"rating"`
	ReviewText string `json:"reviewText"`
}

// SubmitReview принимает отзыв о гигиене от текущего вызывающего.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req submitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SubmitReview(r.Context(), req.Rating, req.ReviewText); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// GetProfile возвращает профиль текущего вызывающего.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.CallerProfile(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if profile == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, profile)
}

type profileRequest struct {
	Name string `json:"name" validate:"required"`
}

// SaveProfile сохраняет профиль текущего вызывающего.
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "name is required", http.StatusUnprocessableEntity)
		return
	}

	if err := h.service.SaveCallerProfile(r.Context(), model.UserProfile{Name: req.Name}); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetProfileByPrincipal возвращает профиль по ссылке на идентичность.
func (h *Handler) GetProfileByPrincipal(w http.ResponseWriter, r *http.Request) {
	principal := pathParam(r, "principal")

	profile, err := h.service.ProfileByPrincipal(r.Context(), principal)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if profile == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, profile)
}

type assignRoleRequest struct {
	User string `json:"user" validate:"required"`
	Role string `json:"role" validate:"required"`
}

// AssignRole назначает роль другой идентичности от имени администратора.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "user and role are required", http.StatusUnprocessableEntity)
		return
	}

	if err := h.service.AssignRole(r.Context(), req.User, model.Role(req.Role)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
