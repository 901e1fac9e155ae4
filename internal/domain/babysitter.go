package domain

import "time"

// ResponseStatus es el estado de una solicitud enviada a una niñera.
type ResponseStatus string

const (
	StatusPending   ResponseStatus = "Pending"
	StatusAvailable ResponseStatus = "Available"
	StatusDeclined  ResponseStatus = "Declined"
)

type Babysitter struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Mobile    string    `json:"mobile"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Parent struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"-"`
}

// BabysitterRequest es una fila de la tabla de solicitudes: una por niñera invitada.
type BabysitterRequest struct {
	ID                  string         `json:"id"`
	ParentID            string         `json:"parent_id,omitempty"`
	BabysitterID        string         `json:"babysitter_id,omitempty"`
	BabysitterFirstName string         `json:"babysitter_first_name"`
	BabysitterMobile    string         `json:"-"`
	Date                string         `json:"date"`
	TimeRange           string         `json:"time_range"`
	Notes               string         `json:"notes,omitempty"`
	Parent              *Parent        `json:"parent,omitempty"`
	Status              ResponseStatus `json:"status"`
	Response            string         `json:"response,omitempty"`
}

// ResponseUpdate es el payload de la mutación de respuesta.
type ResponseUpdate struct {
	Status   ResponseStatus `json:"status"`
	Response string         `json:"response"`
}
