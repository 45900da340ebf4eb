package healthrecords

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"petsy-backend/internal/domain/workflow"
	"petsy-backend/internal/middleware"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/pets/{petID}/health-records", listHealthRecordsHandler(svc))
}

type recordResponse struct {
	ID            string    `json:"id"`
	PetID         string    `json:"pet_id"`
	RecordType    string    `json:"record_type"`
	Title         string    `json:"title"`
	Diagnosis     string    `json:"diagnosis,omitempty"`
	Prescription  string    `json:"prescription,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CareRequestID string    `json:"care_request_id,omitempty"`
	Date          time.Time `json:"date"`
	CreatedAt     time.Time `json:"created_at"`
}

// listHealthRecordsHandler godoc
// @Summary Historial clínico de una mascota
// @Description Solo el dueño (o admin) puede verlo; para el resto la mascota "no existe".
// @Tags health-records
// @Produce json
// @Success 200 {array} recordResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "pet not found"
// @Router /pets/{petID}/health-records [get]
func listHealthRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		actor := workflow.Actor{ID: claims.UserID, Role: workflow.Role(claims.Role)}
		items, err := svc.ListForActor(r.Context(), chi.URLParam(r, "petID"), actor)
		if err != nil {
			http.Error(w, "pet not found", http.StatusNotFound)
			return
		}

		out := make([]recordResponse, 0, len(items))
		for _, rec := range items {
			out = append(out, recordResponse{
				ID:            rec.ID,
				PetID:         rec.PetID,
				RecordType:    rec.RecordType,
				Title:         rec.Title,
				Diagnosis:     rec.Diagnosis,
				Prescription:  rec.Prescription,
				Notes:         rec.Notes,
				CareRequestID: rec.CareRequestID,
				Date:          rec.Date,
				CreatedAt:     rec.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
