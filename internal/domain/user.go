package domain

import "time"

// Plan identifica el plan de suscripción de una familia.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// User es la cuenta de un padre o madre.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Mobile       string    `json:"mobile,omitempty"`
	FamilyNotes  string    `json:"family_notes,omitempty"`
	PasswordHash string    `json:"-"`
	Plan         Plan      `json:"plan"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName devuelve nombre y apellido separados por un espacio.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Family es el perfil familiar editable desde /family.
type Family struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Mobile    string `json:"mobile,omitempty"`
	Notes     string `json:"notes,omitempty"`
}
