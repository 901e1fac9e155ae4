// Package phone normaliza números de teléfono al formato +1XXXXXXXXXX.
package phone

import "strings"

// Normalize convierte texto arbitrario en un número canónico "+1" + 10 dígitos.
// Devuelve "" cuando el número no es normalizable.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	digits := stripNonDigits(raw)
	if digits == "" {
		return ""
	}

	switch {
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) < 10:
		return ""
	default:
		// TODO: decidir cómo tratar extensiones y prefijos de país distintos de 1; hoy se truncan.
		return "+1" + digits[len(digits)-10:]
	}
}

// Valid indica si s ya está en forma canónica.
func Valid(s string) bool {
	if len(s) != 12 || !strings.HasPrefix(s, "+1") {
		return false
	}
	for i := 2; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Equal compara dos números crudos por su forma canónica.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
