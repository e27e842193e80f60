// Package identity содержит сессию вызывающего и клиент внешнего провайдера
// идентичности. Провайдер непрозрачен: витрина получает от него ссылку на
// идентичность и токен, не интерпретируя их содержимое.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrLoginFailed возвращается, если церемония входа завершилась отказом
// провайдера или была прервана пользователем.
var ErrLoginFailed = errors.New("login failed")

// Credentials описывает результат успешной церемонии входа.
type Credentials struct {
	Principal string `json:"principal"`
	Token     string `json:"token"`
}

// Provider определяет границу провайдера идентичности. Login блокируется до
// завершения внешней церемонии входа.
type Provider interface {
	Login(ctx context.Context) (Credentials, error)
	Logout()
}

// HTTPProvider обращается к провайдеру идентичности по HTTP.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProvider создаёт клиент провайдера идентичности по указанному адресу.
// Запрос входа не повторяется автоматически: незавершённую церемонию нельзя
// перезапускать без участия пользователя.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Login выполняет церемонию входа и возвращает идентичность с токеном.
func (p *HTTPProvider) Login(ctx context.Context) (Credentials, error) {
	base := p.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/login", nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %s", ErrLoginFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credentials{}, fmt.Errorf("%w: unexpected status %d", ErrLoginFailed, resp.StatusCode)
	}

	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: decode response: %s", ErrLoginFailed, err)
	}
	if creds.Principal == "" || creds.Token == "" {
		return Credentials{}, fmt.Errorf("%w: empty credentials", ErrLoginFailed)
	}

	return creds, nil
}

// Logout завершает сессию на стороне провайдера. Операция синхронна и не
// может завершиться ошибкой для вызывающего.
func (p *HTTPProvider) Logout() {}
