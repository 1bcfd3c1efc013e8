package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"accessmap-server/middleware"
	"accessmap-server/models"
	"accessmap-server/services"
	"accessmap-server/utils/errors"
)

type LocationHandler struct {
	service *services.LocationService
}

func NewLocationHandler(service *services.LocationService) *LocationHandler {
	return &LocationHandler{service: service}
}

func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var input models.LocationCreate
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	loc, err := h.service.Create(r.Context(), &input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"id":            loc.ID,
		"location_type": loc.LocationType,
		"subject":       middleware.SubjectFromContext(r.Context()),
	}).Info("Location created")
	writeJSON(w, http.StatusCreated, loc)
}

func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *LocationHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var input models.LocationUpdate
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	loc, err := h.service.Update(r.Context(), mux.Vars(r)["id"], &input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *LocationHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	found, err := h.service.Delete(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !found {
		middleware.WriteError(w, errors.ErrNotFound)
		return
	}
	logrus.WithFields(logrus.Fields{
		"id":      id,
		"subject": middleware.SubjectFromContext(r.Context()),
	}).Info("Location deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := paginationParams(q)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), listFilterParams(q), page)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListByType serves the per-type convenience routes such as /stairs.
func (h *LocationHandler) ListByType(t models.LocationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := paginationParams(r.URL.Query())
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		list, err := h.service.ListByType(r.Context(), t, page)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (h *LocationHandler) SearchProximity(w http.ResponseWriter, r *http.Request) {
	query, err := proximityParams(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	hits, err := h.service.SearchNearby(r.Context(), query)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}
