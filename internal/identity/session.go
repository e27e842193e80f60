package identity

import (
	"context"
	"errors"
	"sync"
)

// ErrLoginInProgress возвращается при повторной попытке входа, пока идёт
// незавершённая церемония.
var ErrLoginInProgress = errors.New("login already in progress")

// State описывает состояние сессии.
type State int

const (
	// StateAnonymous — вызывающий не вошёл в систему.
	StateAnonymous State = iota
	// StateAuthenticating — идёт церемония входа; повторный вход запрещён.
	StateAuthenticating
	// StateAuthenticated — вызывающий вошёл в систему.
	StateAuthenticated
)

// String возвращает строковое представление состояния сессии.
func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Snapshot — мгновенный снимок сессии для middleware и обработчиков.
type Snapshot struct {
	State     State
	Principal string
}

// Anonymous сообщает, является ли вызывающий анонимным.
func (s Snapshot) Anonymous() bool {
	return s.State != StateAuthenticated
}

// Session хранит текущую идентичность вызывающего. Процесс обслуживает одного
// пользователя, поэтому сессия одна на процесс; сама идентичность витриной
// не сохраняется и живёт только до выхода или перезапуска.
type Session struct {
	provider Provider

	mu    sync.Mutex
	state State
	creds Credentials
}

// NewSession создаёт анонимную сессию поверх указанного провайдера.
func NewSession(provider Provider) *Session {
	return &Session{provider: provider}
}

// Login выполняет вход через провайдера идентичности. Пока церемония не
// завершена, повторные вызовы отклоняются с ErrLoginInProgress. Неудачный
// вход возвращает сессию в анонимное состояние; ошибка не фатальна.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateAuthenticating {
		s.mu.Unlock()
		return ErrLoginInProgress
	}
	if s.state == StateAuthenticated {
		s.mu.Unlock()
		return nil
	}
	s.state = StateAuthenticating
	s.mu.Unlock()

	creds, err := s.provider.Login(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateAnonymous
		s.creds = Credentials{}
		return err
	}

	s.state = StateAuthenticated
	s.creds = creds
	return nil
}

// Logout синхронно завершает сессию и возвращает её в анонимное состояние.
func (s *Session) Logout() {
	s.mu.Lock()
	s.state = StateAnonymous
	s.creds = Credentials{}
	s.mu.Unlock()

	s.provider.Logout()
}

// Snapshot возвращает текущее состояние сессии и ссылку на идентичность.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Principal: s.creds.Principal}
}

// Token возвращает токен текущей сессии либо пустую строку для анонимного
// вызывающего. Сигнатура совместима с backend.TokenSource.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return ""
	}
	return s.creds.Token
}
