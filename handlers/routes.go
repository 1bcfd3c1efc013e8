package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"accessmap-server/metrics"
	"accessmap-server/middleware"
	"accessmap-server/models"
	"accessmap-server/services"
	"accessmap-server/utils/errors"
)

// APIV1Prefix is the versioned mount point; every route is also served
// from the root.
const APIV1Prefix = "/api/v1"

// RouterConfig carries what NewRouter needs to wire the routes.
type RouterConfig struct {
	Locations      *services.LocationService
	Auth           *services.AuthService
	Health         map[string]Pinger
	JWTSecret      string
	AllowedOrigins []string
	RateRPS        float64
	RateBurst      int
}

var typeRoutes = []struct {
	path string
	t    models.LocationType
}{
	{"/stairs", models.LocationTypeStairs},
	{"/sidewalks", models.LocationTypeSidewalk},
	{"/charging-stations", models.LocationTypeChargingStation},
	{"/subway-toilets", models.LocationTypeSubwayToilet},
	{"/wheelchair-ramps", models.LocationTypeWheelchairRamp},
}

// NewRouter builds the full HTTP handler. Mutating location routes require an
// admin bearer token when JWTSecret is set.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, errors.ErrNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, errors.NewAPIError("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed))
	})
	r.Use(middleware.RequestLogger)
	r.Use(middleware.ErrorMiddleware())
	r.Use(middleware.RateLimitMiddleware(cfg.RateRPS, cfg.RateBurst))

	r.HandleFunc("/", Root).Methods(http.MethodGet)
	r.HandleFunc("/health", HealthHandler(cfg.Health)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	mountAPI(r, cfg)
	mountAPI(r.PathPrefix(APIV1Prefix).Subrouter(), cfg)

	// CORS wraps the router so preflight requests never hit method matching.
	return middleware.CORSMiddleware(cfg.AllowedOrigins)(r)
}

func mountAPI(r *mux.Router, cfg RouterConfig) {
	h := NewLocationHandler(cfg.Locations)

	if cfg.Auth != nil {
		r.HandleFunc("/auth/token", NewAuthHandler(cfg.Auth).IssueToken).Methods(http.MethodPost)
	}

	read := r.PathPrefix("/").Subrouter()
	// Registered before /locations/{id} so "search" is not taken as an id.
	read.HandleFunc("/locations/search/proximity", h.SearchProximity).Methods(http.MethodGet)
	read.HandleFunc("/locations", h.ListLocations).Methods(http.MethodGet)
	read.HandleFunc("/locations/{id}", h.GetLocation).Methods(http.MethodGet)
	for _, tr := range typeRoutes {
		read.HandleFunc(tr.path, h.ListByType(tr.t)).Methods(http.MethodGet)
	}

	write := r.PathPrefix("/").Subrouter()
	if cfg.JWTSecret != "" {
		write.Use(middleware.JWTMiddleware(cfg.JWTSecret))
	}
	write.HandleFunc("/locations", h.CreateLocation).Methods(http.MethodPost)
	write.HandleFunc("/locations/{id}", h.UpdateLocation).Methods(http.MethodPut)
	write.HandleFunc("/locations/{id}", h.DeleteLocation).Methods(http.MethodDelete)
}
