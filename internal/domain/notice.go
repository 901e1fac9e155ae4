package domain

// NoticeVariant replica las variantes de los toasts del cliente.
type NoticeVariant string

const (
	NoticeDefault     NoticeVariant = "default"
	NoticeSuccess     NoticeVariant = "success"
	NoticeError       NoticeVariant = "error"
	NoticeDestructive NoticeVariant = "destructive"
)

// Notice es una notificación visible para el usuario.
type Notice struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Variant     NoticeVariant `json:"variant"`
}

// SessionExpiredNotice se emite cuando el guard cierra una sesión inactiva.
var SessionExpiredNotice = Notice{
	Title:       "Session Expired",
	Description: "Please log in again for security reasons.",
	Variant:     NoticeDestructive,
}
