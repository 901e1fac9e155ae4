package domain

import "time"

// Session es la ventana de actividad de un usuario autenticado.
// La expiración se calcula a partir de LastActivity, no se almacena.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	IssuedAt     time.Time `json:"issued_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Expired indica si pasó más de timeout desde la última actividad.
func (s Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}

// ExpiresAt es el instante a partir del cual la sesión deja de ser válida.
func (s Session) ExpiresAt(timeout time.Duration) time.Time {
	return s.LastActivity.Add(timeout)
}
