package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetdesk/fleetdesk-backend/api/controllers"
	"github.com/fleetdesk/fleetdesk-backend/api/middleware"
	"github.com/fleetdesk/fleetdesk-backend/internal/agents"
	"github.com/fleetdesk/fleetdesk-backend/internal/drafts"
	"github.com/fleetdesk/fleetdesk-backend/internal/drivers"
	"github.com/fleetdesk/fleetdesk-backend/internal/managers"
	"github.com/fleetdesk/fleetdesk-backend/internal/parks"
	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/fleetdesk/fleetdesk-backend/pkg/redis"
)

// Deps carries everything the router mounts. Probes and the rate limiter are
// optional; nil entries degrade to skipped checks and an unthrottled bot
// surface.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Probes  map[string]controllers.Pinger
	Limiter redis.RateLimiter
	Metrics prometheus.Gatherer

	Managers managers.Service
	Agents   agents.Service
	Parks    parks.Service
	Drivers  drivers.Service
	Drafts   drafts.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, deps.Probes))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.TelegramAuth(cfg.Telegram, logg))

		r.Post("/link", controllers.Link(deps.Agents, logg))
		r.Get("/profile", controllers.Profile(deps.Managers, logg))

		r.Route("/drivers", func(r chi.Router) {
			r.Get("/", controllers.DriversList(deps.Managers, deps.Drivers, logg))
			r.Post("/link", controllers.DriversLink(deps.Managers, deps.Drivers, logg))
			r.Post("/status", controllers.DriversStatus(deps.Managers, deps.Drivers, logg))
			r.Get("/{driverID}", controllers.DriversGet(deps.Managers, deps.Drivers, logg))
			r.Patch("/{driverID}", controllers.DriversUpdate(deps.Managers, deps.Drivers, logg))
			r.Get("/{driverID}/balance", controllers.DriversBalance(deps.Managers, deps.Drivers, logg))
			r.Delete("/{driverID}/link", controllers.DriversUnlink(deps.Managers, deps.Drivers, logg))
		})

		r.Patch("/cars/{carID}", controllers.CarsUpdate(deps.Managers, deps.Drivers, logg))
		r.Get("/workrules", controllers.WorkRules(deps.Managers, deps.Drivers, logg))
		r.Get("/fleets", controllers.Fleets(deps.Managers, deps.Drivers, logg))

		r.Post("/park", controllers.ParkSubmit(deps.Managers, deps.Parks, logg))
		r.Delete("/park", controllers.ParkDetach(deps.Managers, deps.Parks, logg))

		r.Route("/draft", func(r chi.Router) {
			r.Get("/", controllers.DraftGet(deps.Agents, deps.Drafts, logg))
			r.Patch("/", controllers.DraftPatch(deps.Agents, deps.Drafts, logg))
			r.Post("/submit", controllers.DraftSubmit(deps.Agents, deps.Drafts, logg))
		})
	})

	r.Route("/bot", func(r chi.Router) {
		r.Use(
			middleware.BotSecret(cfg.Telegram, logg),
			middleware.BotRateLimit(cfg.BotRateLimit, deps.Limiter, logg),
		)

		r.Post("/agents/link", controllers.BotAgentsLink(deps.Agents, logg))
		r.Get("/agents/{telegramID}", controllers.BotAgentsGet(deps.Agents, logg))
	})

	return r
}
