package domain

import "time"

// Credential representa la sesión autenticada contra el proveedor de identidad.
type Credential struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"tokenExpirationDate"`
}

// Remaining devuelve cuánto le queda de vida al token.
func (c Credential) Remaining() time.Duration {
	return time.Until(c.ExpiresAt)
}

// Live indica si el token todavía es válido.
func (c Credential) Live() bool {
	return c.Remaining() > 0
}
