// Package remotetest levanta un backend falso en memoria (identidad, record
// store y blob store) con los mismos formatos de wire que el servicio real.
// Pensado para tests de integración del cliente.
package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type storedUser struct {
	ID           string
	Email        string
	PasswordHash string
}

type storedRecord struct {
	Title    string    `json:"title"`
	UserID   string    `json:"userId"`
	Value    float64   `json:"value"`
	ImageURL string    `json:"imageUrl"`
	Dtg      time.Time `json:"dtg"`
}

// Server es el backend falso. Todas las operaciones son seguras para uso
// concurrente desde múltiples tests.
type Server struct {
	mu            sync.Mutex
	users         map[string]storedUser
	expenses      map[string]storedRecord
	secret        []byte
	lifetime      time.Duration
	omitExpiresIn bool

	httpSrv *httptest.Server
}

// NewServer arranca el backend falso con tokens de una hora.
func NewServer() *Server {
	s := &Server{
		users:    make(map[string]storedUser),
		expenses: make(map[string]storedRecord),
		secret:   []byte("remotetest-secret"),
		lifetime: time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/accounts:signInWithPassword", s.handleSignIn)
	mux.HandleFunc("/accounts:signUp", s.handleSignUp)
	mux.HandleFunc("/expenses.json", s.handleCollection)
	mux.HandleFunc("/expenses/", s.handleRecord)
	mux.HandleFunc("/storeImage", s.handleStoreImage)
	s.httpSrv = httptest.NewServer(mux)
	return s
}

// Close apaga el servidor HTTP.
func (s *Server) Close() {
	s.httpSrv.Close()
}

// URL es la base común de identidad, base de datos y storage.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// StorageURL es el endpoint de subida de blobs.
func (s *Server) StorageURL() string {
	return s.httpSrv.URL + "/storeImage"
}

// SetTokenLifetime cambia la vida de los tokens emitidos de acá en adelante.
func (s *Server) SetTokenLifetime(lifetime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifetime = lifetime
}

// OmitExpiresIn hace que las respuestas de identidad no incluyan expiresIn,
// para ejercitar el fallback al claim exp del token.
func (s *Server) OmitExpiresIn(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitExpiresIn = omit
}

// RecordCount devuelve cuántos gastos hay guardados.
func (s *Server) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expenses)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	email, password, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	user, exists := s.users[email]
	s.mu.Unlock()
	if !exists {
		writeIdentityError(w, "EMAIL_NOT_FOUND")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		writeIdentityError(w, "INVALID_PASSWORD")
		return
	}
	s.writeAuthResponse(w, user)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	email, password, ok := decodeAuthRequest(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	if _, exists := s.users[email]; exists {
		s.mu.Unlock()
		writeIdentityError(w, "EMAIL_EXISTS")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		s.mu.Unlock()
		http.Error(w, "hash failed", http.StatusInternalServerError)
		return
	}
	user := storedUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	s.users[email] = user
	s.mu.Unlock()

	s.writeAuthResponse(w, user)
}

func (s *Server) writeAuthResponse(w http.ResponseWriter, user storedUser) {
	s.mu.Lock()
	lifetime := s.lifetime
	omit := s.omitExpiresIn
	s.mu.Unlock()

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		http.Error(w, "sign failed", http.StatusInternalServerError)
		return
	}

	resp := map[string]string{
		"idToken":      token,
		"email":        user.Email,
		"refreshToken": uuid.NewString(),
		"localId":      user.ID,
	}
	if !omit {
		resp["expiresIn"] = jsonSeconds(lifetime)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.authorize(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		filter := strings.Trim(r.URL.Query().Get("equalTo"), `"`)
		if r.URL.Query().Get("orderBy") == "" {
			filter = uid
		}
		s.mu.Lock()
		out := make(map[string]storedRecord)
		for id, rec := range s.expenses {
			if rec.UserID == filter {
				out[id] = rec
			}
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var rec storedRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		id := "-" + uuid.NewString()
		s.mu.Lock()
		s.expenses[id] = rec
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"name": id})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/expenses/"), ".json")

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		rec, exists := s.expenses[id]
		s.mu.Unlock()
		if !exists {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPut:
		var rec storedRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.expenses[id] = rec
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		s.mu.Lock()
		delete(s.expenses, id)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, nil)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStoreImage(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") || !s.validToken(strings.TrimPrefix(header, "Bearer ")) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	file, fileHeader, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "missing image", http.StatusBadRequest)
		return
	}
	file.Close()

	path := "images/" + uuid.NewString() + "-" + fileHeader.Filename
	writeJSON(w, http.StatusOK, map[string]string{
		"imageUrl":  s.httpSrv.URL + "/" + path,
		"imagePath": path,
	})
}

// authorize valida el query param auth y devuelve el uid del token.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.URL.Query().Get("auth")
	uid := s.subjectOf(token)
	if uid == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return "", false
	}
	return uid, true
}

func (s *Server) validToken(token string) bool {
	return s.subjectOf(token) != ""
}

func (s *Server) subjectOf(token string) string {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return ""
	}
	return claims.Subject
}

func decodeAuthRequest(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return "", "", false
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeIdentityError(w, "INVALID_REQUEST")
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(req.Email)), req.Password, true
}

func writeIdentityError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]string{"message": code},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(d.Seconds()), 10)
}
