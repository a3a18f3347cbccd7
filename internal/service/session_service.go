package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gastos-cloud/internal/domain"
	"gastos-cloud/internal/keyvalue"
	"gastos-cloud/internal/remote"
	"gastos-cloud/internal/watch"
)

var (
	ErrNoSession          = errors.New("no active session")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// authDataKey es la clave bajo la que se persiste la sesión en el storage local.
const authDataKey = "authData"

// storedSession es el formato persistido de la credencial.
type storedSession struct {
	UserID              string `json:"userId"`
	Token               string `json:"token"`
	TokenExpirationDate string `json:"tokenExpirationDate"`
	Email               string `json:"email"`
}

// SessionService es el dueño de la credencial vigente: login, signup,
// restauración desde el storage local, logout y auto-logout al expirar.
// Nunca hay más de una credencial viva ni más de un timer armado.
type SessionService struct {
	logger   *zap.Logger
	identity remote.IdentityClient
	storage  keyvalue.Store
	feed     *watch.Feed[*domain.Credential]

	mu      sync.Mutex
	current *domain.Credential
	timer   *time.Timer
}

// NewSessionService crea el servicio de sesión. Con storage nil usa memoria.
func NewSessionService(logger *zap.Logger, identity remote.IdentityClient, storage keyvalue.Store) *SessionService {
	if storage == nil {
		storage = keyvalue.NewMemoryStore()
	}
	s := &SessionService{
		logger:   logger,
		identity: identity,
		storage:  storage,
		feed:     watch.NewFeed[*domain.Credential](),
	}
	// Estado inicial observable: sin sesión.
	s.feed.Publish(nil)
	return s
}

// Credentials expone el stream de la credencial (nil cuando no hay sesión).
func (s *SessionService) Credentials() *watch.Feed[*domain.Credential] {
	return s.feed
}

// Login inicia sesión contra el proveedor de identidad.
func (s *SessionService) Login(ctx context.Context, email, password string) (domain.Credential, error) {
	return s.authenticate(ctx, email, password, s.identity.SignIn)
}

// Signup registra la cuenta y deja la sesión iniciada.
func (s *SessionService) Signup(ctx context.Context, email, password string) (domain.Credential, error) {
	return s.authenticate(ctx, email, password, s.identity.SignUp)
}

func (s *SessionService) authenticate(ctx context.Context, email, password string, call func(context.Context, string, string) (remote.AuthResponse, error)) (domain.Credential, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.Credential{}, ErrInvalidCredentials
	}

	resp, err := call(ctx, email, password)
	if err != nil {
		return domain.Credential{}, err
	}

	cred, err := credentialFrom(resp)
	if err != nil {
		return domain.Credential{}, err
	}
	if err := s.persist(ctx, cred); err != nil {
		return domain.Credential{}, fmt.Errorf("persist session: %w", err)
	}
	s.install(cred)
	return cred, nil
}

// Restore rehidrata la sesión persistida. Devuelve false cuando no hay nada
// utilizable: clave ausente, datos corruptos o token ya vencido. Es
// idempotente: siempre re-deriva del storage, sin mezclar con el estado vivo.
func (s *SessionService) Restore(ctx context.Context) (bool, error) {
	raw, ok, err := s.storage.Get(ctx, authDataKey)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("session storage read failed", zap.Error(err))
		}
		return false, nil
	}
	if !ok {
		return false, nil
	}

	var stored storedSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return false, nil
	}
	expiresAt, err := time.Parse(time.RFC3339, stored.TokenExpirationDate)
	if err != nil || stored.Token == "" || stored.UserID == "" {
		return false, nil
	}
	if !expiresAt.After(time.Now().UTC()) {
		return false, nil
	}

	s.install(domain.Credential{
		UserID:    stored.UserID,
		Email:     stored.Email,
		Token:     stored.Token,
		ExpiresAt: expiresAt,
	})
	return true, nil
}

// Logout desarma el timer, limpia el estado y borra la sesión persistida.
// Siempre tiene éxito, incluso sin sesión activa.
func (s *SessionService) Logout(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current = nil
	s.mu.Unlock()

	s.feed.Publish(nil)

	if err := s.storage.Remove(ctx, authDataKey); err != nil && s.logger != nil {
		s.logger.Warn("session storage remove failed", zap.Error(err))
	}
}

// Credential devuelve una copia de la credencial si hay una viva.
func (s *SessionService) Credential() (domain.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || !s.current.Live() {
		return domain.Credential{}, false
	}
	return *s.current, true
}

// Token devuelve el token vigente, si lo hay.
func (s *SessionService) Token() (string, bool) {
	cred, ok := s.Credential()
	return cred.Token, ok
}

// Email devuelve el email del usuario autenticado, si lo hay.
func (s *SessionService) Email() (string, bool) {
	cred, ok := s.Credential()
	return cred.Email, ok
}

// SubjectID devuelve el id del usuario autenticado, si lo hay.
func (s *SessionService) SubjectID() (string, bool) {
	cred, ok := s.Credential()
	return cred.UserID, ok
}

// IsAuthenticated indica si hay una credencial viva.
func (s *SessionService) IsAuthenticated() bool {
	_, ok := s.Credential()
	return ok
}

// install reemplaza la credencial vigente y re-arma el timer de expiración.
// Armar cancela cualquier timer anterior: solo hay un slot.
func (s *SessionService) install(cred domain.Credential) {
	s.mu.Lock()
	s.current = &cred
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(cred.Remaining(), s.expire)
	s.mu.Unlock()

	published := cred
	s.feed.Publish(&published)
}

// expire es el auto-logout: al vencer el token se comporta igual que Logout.
func (s *SessionService) expire() {
	if s.logger != nil {
		s.logger.Info("session expired, logging out")
	}
	s.Logout(context.Background())
}

func (s *SessionService) persist(ctx context.Context, cred domain.Credential) error {
	data, err := json.Marshal(storedSession{
		UserID:              cred.UserID,
		Token:               cred.Token,
		TokenExpirationDate: cred.ExpiresAt.Format(time.RFC3339),
		Email:               cred.Email,
	})
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, authDataKey, string(data))
}

// credentialFrom arma la credencial a partir de la respuesta del proveedor.
// Si expiresIn no sirve, cae al claim exp del propio id token.
func credentialFrom(resp remote.AuthResponse) (domain.Credential, error) {
	var expiresAt time.Time
	if lifetime, err := resp.Lifetime(); err == nil {
		expiresAt = time.Now().UTC().Add(lifetime)
	} else if claimExpiry, claimErr := remote.TokenExpiry(resp.Token); claimErr == nil {
		expiresAt = claimExpiry
	} else {
		return domain.Credential{}, err
	}

	return domain.Credential{
		UserID:    resp.UserID,
		Email:     resp.Email,
		Token:     resp.Token,
		ExpiresAt: expiresAt,
	}, nil
}
