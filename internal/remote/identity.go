package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// IdentityClient define el contrato contra el proveedor de identidad.
type IdentityClient interface {
	SignIn(ctx context.Context, email, password string) (AuthResponse, error)
	SignUp(ctx context.Context, email, password string) (AuthResponse, error)
}

// AuthResponse es la respuesta del proveedor al iniciar sesión o registrarse.
type AuthResponse struct {
	Token        string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	UserID       string `json:"localId"`
}

// Lifetime interpreta expiresIn (segundos en decimal) como duración.
func (r AuthResponse) Lifetime() (time.Duration, error) {
	seconds, err := strconv.ParseInt(strings.TrimSpace(r.ExpiresIn), 10, 64)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("identity expiresIn invalid: %q", r.ExpiresIn)
	}
	return time.Duration(seconds) * time.Second, nil
}

// Códigos de error conocidos del proveedor de identidad.
const (
	CodeEmailExists     = "EMAIL_EXISTS"
	CodeEmailNotFound   = "EMAIL_NOT_FOUND"
	CodeInvalidPassword = "INVALID_PASSWORD"
)

// IdentityError es un fallo clasificado del proveedor de identidad.
type IdentityError struct {
	Code   string
	Status int
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity error [%s] (HTTP %d)", e.Code, e.Status)
}

// UserMessage traduce el código a un mensaje apto para mostrar al usuario.
func (e *IdentityError) UserMessage() string {
	switch e.Code {
	case CodeEmailExists:
		return "This Email Address already exists"
	case CodeEmailNotFound:
		return "Email Address could not be found"
	case CodeInvalidPassword:
		return "Invalid Password"
	default:
		return "Could not sign you in, please try again."
	}
}

// HTTPIdentityClient implementa IdentityClient contra la API REST del proveedor.
type HTTPIdentityClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPIdentityClient construye el cliente apuntando al endpoint de cuentas.
func NewHTTPIdentityClient(baseURL, apiKey string, logger *zap.Logger) *HTTPIdentityClient {
	return &HTTPIdentityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *HTTPIdentityClient) SignIn(ctx context.Context, email, password string) (AuthResponse, error) {
	return c.post(ctx, "accounts:signInWithPassword", email, password)
}

func (c *HTTPIdentityClient) SignUp(ctx context.Context, email, password string) (AuthResponse, error) {
	return c.post(ctx, "accounts:signUp", email, password)
}

type authRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type identityErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPIdentityClient) post(ctx context.Context, action, email, password string) (AuthResponse, error) {
	reqBody := authRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, action, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return AuthResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp identityErrorResponse
		code := ""
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			code = strings.TrimSpace(errResp.Error.Message)
		}
		if c.logger != nil {
			c.logger.Warn("identity request failed",
				zap.String("action", action),
				zap.Int("status", resp.StatusCode),
				zap.String("code", code),
			)
		}
		return AuthResponse{}, &IdentityError{Code: code, Status: resp.StatusCode}
	}

	var authResp AuthResponse
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return AuthResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if authResp.Token == "" || authResp.UserID == "" {
		return AuthResponse{}, errors.New("identity response incomplete")
	}
	return authResp, nil
}

// TokenExpiry extrae el claim exp del id token sin verificar la firma.
// Se usa como respaldo cuando el proveedor no reporta expiresIn.
func TokenExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse id token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("id token without exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
