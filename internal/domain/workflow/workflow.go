package workflow

import "errors"

// Role es el conjunto cerrado de roles del sistema.
// No hay herencia: los guards consultan el tag directamente.
type Role string

const (
	RoleUser        Role = "user"
	RoleVet         Role = "vet"
	RoleClinic      Role = "clinic"
	RoleMarketOwner Role = "market_owner"
	RoleAdmin       Role = "admin"
)

// Actor es el descriptor de identidad que llega desde auth.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsProvider indica si el actor puede atender care requests / appointments.
func (a Actor) IsProvider() bool {
	return a.Role == RoleVet || a.Role == RoleClinic
}

var (
	// ErrNotFound: instancia inexistente. También se usa donde Forbidden debe ser
	// indistinguible de NotFound (instancias sensibles a privacidad).
	ErrNotFound = errors.New("not found")

	// ErrForbidden: autenticado pero sin permiso. Solo para paths donde el split
	// 403/404 es explícito (sellers, admin).
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition: el edge pedido no existe desde el estado actual.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrValidationFailed: edge legal pero payload incompleto (ej. diagnosis vacío).
	ErrValidationFailed = errors.New("validation failed")

	// ErrStaleState: el update condicional perdió contra una transición concurrente.
	// El caller debe recargar y reevaluar contra el estado nuevo.
	ErrStaleState = errors.New("stale state")
)

// Table describe los edges legales de una máquina de estados.
type Table[S comparable] map[S][]S

func (t Table[S]) Can(from, to S) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal indica que no hay edges salientes desde s.
func (t Table[S]) Terminal(s S) bool {
	return len(t[s]) == 0
}
