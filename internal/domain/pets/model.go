package pets

import "time"

// PetStatus define la situación de la mascota en el marketplace.
// @Enum owned, for_sale, for_adoption, lost, found
type PetStatus string

const (
	StatusOwned       PetStatus = "owned"
	StatusForSale     PetStatus = "for_sale"
	StatusForAdoption PetStatus = "for_adoption"
	StatusLost        PetStatus = "lost"
	StatusFound       PetStatus = "found"
)

// Pet representa el perfil de una mascota registrada por su dueño.
type Pet struct {
	ID          string
	OwnerUserID string

	Name    string
	Species string // dog, cat, ...
	Breed   string
	Gender  string // male, female, unknown
	Age     string

	Status     PetStatus
	Vaccinated bool

	Location    string
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}
