package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gatehousehq/gatehouse/internal/admission"
	"github.com/gatehousehq/gatehouse/internal/auth"
	"github.com/gatehousehq/gatehouse/internal/credential"
	"github.com/gatehousehq/gatehouse/internal/handler"
	"github.com/gatehousehq/gatehouse/internal/middleware"
	"github.com/gatehousehq/gatehouse/internal/notify"
	"github.com/gatehousehq/gatehouse/internal/store"
	ws "github.com/gatehousehq/gatehouse/internal/websocket"
)

// Config carries the secrets and building-level switches the server is
// started with. Tunable admission limits live in the policy store instead.
type Config struct {
	CredentialSecret []byte
	IdentitySecret   []byte

	// OverrideSecretHash is the bcrypt hash of the override secret; when
	// empty, OverrideSecret is compared directly.
	OverrideSecretHash string
	OverrideSecret     string

	// KioskDegraded lets the kiosk check guests in without a bearer token.
	// Only for physically supervised lobbies.
	KioskDegraded   bool
	NightCutoffHour int
	Location        *time.Location

	TermsVersion     string
	AgreementVersion string
	PostmarkToken    string
	FromEmail        string
}

const (
	visitTTL           = 12 * time.Hour
	rollingWindow      = 30 * 24 * time.Hour
	acceptanceValidity = 365 * 24 * time.Hour
	credentialTTL      = 7 * 24 * time.Hour
	decisionTimeout    = 5 * time.Second
	rewardMilestone    = 3
)

type Server struct {
	db          *sql.DB
	cfg         Config
	hub         *ws.Hub
	checkinH    *handler.CheckinHandler
	credentialH *handler.CredentialHandler
	invitationH *handler.InvitationHandler
	policyH     *handler.PolicyHandler
	guestH      *handler.GuestHandler
	visitH      *handler.VisitHandler
	hostH       *handler.HostHandler
	invitations *store.InvitationStore
	dispatcher  *notify.Dispatcher
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	guestStore := store.NewGuestStore(db)
	acceptanceStore := store.NewAcceptanceStore(db)
	invitationStore := store.NewInvitationStore(db)
	visitStore := store.NewVisitStore(db)
	policyStore := store.NewPolicyStore(db)
	rewardStore := store.NewRewardStore(db)
	hostStore := store.NewHostStore(db)

	codec := credential.NewCodec(cfg.CredentialSecret, credentialTTL)
	authority := admission.NewAuthority(cfg.OverrideSecretHash, cfg.OverrideSecret)

	emailClient := notify.NewClient(cfg.PostmarkToken, cfg.FromEmail)
	dispatcher := notify.NewDispatcher(emailClient, rewardStore, logger)

	engine := admission.NewEngine(db, guestStore, acceptanceStore, invitationStore,
		visitStore, policyStore, rewardStore, hostStore, authority, dispatcher,
		admission.Config{
			NightCutoffHour:    cfg.NightCutoffHour,
			Location:           cfg.Location,
			VisitTTL:           visitTTL,
			RollingWindow:      rollingWindow,
			AcceptanceValidity: acceptanceValidity,
			TermsVersion:       cfg.TermsVersion,
			AgreementVersion:   cfg.AgreementVersion,
			DecisionTimeout:    decisionTimeout,
			RewardMilestone:    rewardMilestone,
		}, logger.With("component", "admission"))

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		checkinH:    handler.NewCheckinHandler(engine, codec, hub),
		credentialH: handler.NewCredentialHandler(codec, invitationStore, guestStore, acceptanceStore, acceptanceValidity),
		invitationH: handler.NewInvitationHandler(invitationStore, guestStore, hostStore, acceptanceStore, codec, dispatcher, cfg.TermsVersion, cfg.AgreementVersion),
		policyH:     handler.NewPolicyHandler(policyStore, hub),
		guestH:      handler.NewGuestHandler(guestStore, acceptanceStore, hub),
		visitH:      handler.NewVisitHandler(visitStore, hub),
		hostH:       handler.NewHostHandler(hostStore),
		invitations: invitationStore,
		dispatcher:  dispatcher,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// InvitationStore returns the invitation store for the expiry sweep.
func (s *Server) InvitationStore() *store.InvitationStore {
	return s.invitations
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Dispatcher returns the notification dispatcher so shutdown can drain it.
func (s *Server) Dispatcher() *notify.Dispatcher {
	return s.dispatcher
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	// The kiosk surface: identity comes from a bearer token, or from the
	// explicit degraded mode when the building runs the kiosk unauthenticated.
	kioskAuth := middleware.KioskIdentity(s.cfg.IdentitySecret, s.cfg.KioskDegraded)
	outerMux.Handle("POST /api/checkin",
		s.rateLimited(kioskAuth(http.HandlerFunc(s.checkinH.Checkin))))

	// Staff routes — wrapped with RequireIdentity middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	identityMiddleware := middleware.RequireIdentity(s.cfg.IdentitySecret)
	outerMux.Handle("/api/", identityMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.Handler) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP, 30, time.Minute)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	// Credential issuance
	mux.HandleFunc("POST /api/credentials/single", s.credentialH.IssueSingle)
	mux.HandleFunc("POST /api/credentials/batch", s.credentialH.IssueBatch)

	// Invitations
	mux.HandleFunc("POST /api/invitations", s.invitationH.Create)
	mux.HandleFunc("GET /api/invitations", s.invitationH.ListByHost)
	mux.HandleFunc("GET /api/invitations/{id}", s.invitationH.Get)
	mux.HandleFunc("POST /api/invitations/{id}/activate", s.invitationH.Activate)

	// Policy
	mux.HandleFunc("GET /api/policy", s.policyH.Get)
	mux.Handle("PUT /api/policy", adminOnly(http.HandlerFunc(s.policyH.Update)))

	// Guests
	mux.HandleFunc("GET /api/guests", s.guestH.List)
	mux.HandleFunc("GET /api/guests/{id}", s.guestH.Get)
	mux.HandleFunc("POST /api/guests/{id}/acceptance", s.guestH.RecordAcceptance)
	mux.Handle("POST /api/guests/{id}/blacklist", adminOnly(http.HandlerFunc(s.guestH.Blacklist)))
	mux.Handle("DELETE /api/guests/{id}/blacklist", adminOnly(http.HandlerFunc(s.guestH.Unblacklist)))

	// Visits
	mux.HandleFunc("GET /api/visits/active", s.visitH.Active)
	mux.HandleFunc("GET /api/visits/{id}", s.visitH.Get)
	mux.HandleFunc("POST /api/visits/{id}/checkout", s.visitH.Checkout)

	// Hosts
	mux.Handle("POST /api/hosts", adminOnly(http.HandlerFunc(s.hostH.Create)))
	mux.HandleFunc("GET /api/hosts", s.hostH.List)
	mux.HandleFunc("GET /api/hosts/{id}", s.hostH.Get)
}
