package healthrecords

import "time"

// HealthRecord es el historial clínico visible para el dueño de la mascota.
// Los records derivados de un care request completado llevan CareRequestID.
type HealthRecord struct {
	ID     string
	PetID  string
	UserID string // dueño al momento de crear el record

	RecordType string // checkup, care_request, vaccine, ...
	Title      string

	Diagnosis    string
	Prescription string
	Notes        string

	CareRequestID string

	Date      time.Time
	CreatedAt time.Time
}
