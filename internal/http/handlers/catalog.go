package handlers

import (
	"net/http"

	"github.com/wolfman30/careconnect-platform/internal/catalog"
)

// CatalogHandler lists the selectable entities. Unavailable entries are
// included with available=false so clients can render them disabled.
type CatalogHandler struct {
	registry *catalog.Registry
}

func NewCatalogHandler(reg *catalog.Registry) *CatalogHandler {
	return &CatalogHandler{registry: reg}
}

// GET /catalog/doctors
func (h *CatalogHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"doctors": h.registry.Doctors()})
}

// GET /catalog/time-slots
func (h *CatalogHandler) TimeSlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"time_slots": h.registry.TimeSlots()})
}

// GET /catalog/medicines
func (h *CatalogHandler) Medicines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"medicines": h.registry.Medicines()})
}
