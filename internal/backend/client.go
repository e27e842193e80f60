// Package backend предоставляет клиент удалённого сервиса кондитерской.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/sweetshop-storefront/internal/model"
)

// ErrUnavailable возвращается при любой ошибке транспорта или отказе сервиса;
// причина отказа для клиента непрозрачна.
var (
	ErrUnavailable = errors.New("sweetshop service unavailable")
	// ErrNotFound возвращается, если запрошенный ресурс отсутствует на сервисе.
	ErrNotFound = errors.New("resource not found")
)

// TokenSource возвращает токен текущей сессии либо пустую строку для анонимного
// вызывающего.
type TokenSource func() string

// Client инкапсулирует HTTP-взаимодействие с сервисом кондитерской.
// Чтения каталога и отзывов идут через клиент с повторами; мутации и запрос
// роли выполняются без повторов.
type Client struct {
	baseURL     string
	readClient  *http.Client
	plainClient *http.Client
	token       TokenSource
}

// NewClient создаёт клиент сервиса кондитерской по указанному адресу.
func NewClient(baseURL string, token TokenSource) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 2
	retry.RetryWaitMin = 100 * time.Millisecond
	retry.RetryWaitMax = time.Second
	retry.HTTPClient.Timeout = 5 * time.Second
	retry.Logger = nil

	if token == nil {
		token = func() string { return "" }
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		readClient:  retry.StandardClient(),
		plainClient: &http.Client{Timeout: 5 * time.Second},
		token:       token,
	}
}

func (c *Client) endpoint(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

// doJSON выполняет запрос и декодирует JSON-ответ в out, если out не nil.
// Ответ 204 и 404 обрабатываются до декодирования.
func (c *Client) doJSON(ctx context.Context, httpClient *http.Client, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := c.token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusNoContent:
		return errNoContent
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errNoContent — внутренний маркер ответа 204 для операций с опциональным результатом.
var errNoContent = errors.New("no content")

// ListSweets возвращает каталог в порядке, определённом сервисом.
func (c *Client) ListSweets(ctx context.Context) ([]model.Sweet, error) {
	var sweets []model.Sweet
	err := c.doJSON(ctx, c.readClient, http.MethodGet, "/api/sweets", nil, &sweets)
	if errors.Is(err, errNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sweets: %w", err)
	}
	return sweets, nil
}

// AddSweet добавляет новую позицию каталога.
func (c *Client) AddSweet(ctx context.Context, sweet model.Sweet) error {
	if err := c.doJSON(ctx, c.plainClient, http.MethodPost, "/api/sweets", sweet, nil); err != nil {
		return fmt.Errorf("add sweet: %w", err)
	}
	return nil
}

type priceUpdateRequest struct {
	NewPrice int64 `json:"newPrice"`
}

// UpdateSweetPrice изменяет цену существующей позиции каталога.
func (c *Client) UpdateSweetPrice(ctx context.Context, name string, newPrice int64) error {
	path := "/api/sweets/" + url.PathEscape(name) + "/price"
	if err := c.doJSON(ctx, c.plainClient, http.MethodPut, path, priceUpdateRequest{NewPrice: newPrice}, nil); err != nil {
		return fmt.Errorf("update sweet price: %w", err)
	}
	return nil
}

// ListReviews возвращает все отзывы о гигиене.
func (c *Client) ListReviews(ctx context.Context) ([]model.Review, error) {
	var reviews []model.Review
	err := c.doJSON(ctx, c.readClient, http.MethodGet, "/api/reviews", nil, &reviews)
	if errors.Is(err, errNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

type reviewRequest struct {
	Rating     int    `json:"rating"`
	ReviewText string `json:"reviewText,omitempty"`
}

// SubmitReview отправляет отзыв от имени текущего вызывающего.
func (c *Client) SubmitReview(ctx context.Context, rating int, reviewText string) error {
	req := reviewRequest{Rating: rating, ReviewText: reviewText}
	if err := c.doJSON(ctx, c.plainClient, http.MethodPost, "/api/reviews", req, nil); err != nil {
		return fmt.Errorf("submit review: %w", err)
	}
	return nil
}

// CallerProfile возвращает профиль текущего вызывающего либо nil, если профиль
// ещё не сохранён.
func (c *Client) CallerProfile(ctx context.Context) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := c.doJSON(ctx, c.readClient, http.MethodGet, "/api/profile", nil, &profile)
	if errors.Is(err, errNoContent) || errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get caller profile: %w", err)
	}
	return &profile, nil
}

// SaveCallerProfile сохраняет профиль текущего вызывающего.
func (c *Client) SaveCallerProfile(ctx context.Context, profile model.UserProfile) error {
	if err := c.doJSON(ctx, c.plainClient, http.MethodPut, "/api/profile", profile, nil); err != nil {
		return fmt.Errorf("save caller profile: %w", err)
	}
	return nil
}

// ProfileByPrincipal возвращает профиль по ссылке на идентичность либо nil,
// если профиль отсутствует.
func (c *Client) ProfileByPrincipal(ctx context.Context, principal string) (*model.UserProfile, error) {
	var profile model.UserProfile
	path := "/api/profiles/" + url.PathEscape(principal)
	err := c.doJSON(ctx, c.readClient, http.MethodGet, path, nil, &profile)
	if errors.Is(err, errNoContent) || errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

type roleResponse struct {
	Role model.Role `json:"role"`
}

// CallerRole возвращает роль текущего вызывающего. Запрос выполняется без
// повторов: для анонимного вызывающего отказ штатен и должен завершаться быстро.
// Если роль не назначена, сервис отвечает 204 и роль считается guest.
func (c *Client) CallerRole(ctx context.Context) (model.Role, error) {
	var resp roleResponse
	err := c.doJSON(ctx, c.plainClient, http.MethodGet, "/api/role", nil, &resp)
	if errors.Is(err, errNoContent) {
		return model.RoleGuest, nil
	}
	if err != nil {
		return "", fmt.Errorf("get caller role: %w", err)
	}
	if !resp.Role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrUnavailable, resp.Role)
	}
	return resp.Role, nil
}

type assignRoleRequest struct {
	User string     `json:"user"`
	Role model.Role `json:"role"`
}

// AssignRole назначает роль указанной идентичности.
func (c *Client) AssignRole(ctx context.Context, principal string, role model.Role) error {
	req := assignRoleRequest{User: principal, Role: role}
	if err := c.doJSON(ctx, c.plainClient, http.MethodPost, "/api/roles", req, nil); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

type adminResponse struct {
	Admin bool `json:"admin"`
}

// IsCallerAdmin сообщает, является ли текущий вызывающий администратором.
func (c *Client) IsCallerAdmin(ctx context.Context) (bool, error) {
	var resp adminResponse
	err := c.doJSON(ctx, c.readClient, http.MethodGet, "/api/role/admin", nil, &resp)
	if errors.Is(err, errNoContent) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is caller admin: %w", err)
	}
	return resp.Admin, nil
}
