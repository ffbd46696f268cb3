package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/ecochallenge/internal/catalog"
	"github.com/dukerupert/ecochallenge/internal/config"
	"github.com/dukerupert/ecochallenge/internal/handler"
	"github.com/dukerupert/ecochallenge/internal/middleware"
	"github.com/dukerupert/ecochallenge/internal/notify"
	"github.com/dukerupert/ecochallenge/internal/progression"
	"github.com/dukerupert/ecochallenge/internal/push"
	"github.com/dukerupert/ecochallenge/internal/store"
	ws "github.com/dukerupert/ecochallenge/internal/websocket"
)

type Server struct {
	db               *sql.DB
	hub              *ws.Hub
	authH            *handler.AuthHandler
	profileH         *handler.ProfileHandler
	challengeH       *handler.ChallengeHandler
	progressionH     *handler.ProgressionHandler
	achievementH     *handler.AchievementHandler
	communityH       *handler.CommunityHandler
	adminH           *handler.AdminHandler
	pushH            *handler.PushHandler
	userStore        *store.UserStore
	sessionStore     *store.SessionStore
	rateLimiter      *middleware.RateLimiter
	dispatcher       *notify.Dispatcher
	websocketOrigins []string
	logger           *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db).WithTTL(time.Duration(cfg.SessionTTL))
	profileStore := store.NewProfileStore(db)
	challengeStore := store.NewChallengeStore(db)
	achievementStore := store.NewAchievementStore(db)

	cat, err := catalog.New(challengeStore, achievementStore, cfg.CacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("create catalog: %w", err)
	}

	// Push notification service
	pushStore := store.NewPushStore(db)
	pushCfg := push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subscriber,
	}
	var dispatcher *notify.Dispatcher
	var pushH *handler.PushHandler
	if pushCfg.Enabled() {
		pushLogger := logger.With("component", "push")
		pushSvc := push.NewService(pushCfg)
		delivery := push.NewDelivery(pushSvc, pushStore, pushLogger)
		dispatcher = notify.New(hub, delivery, logger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, delivery, logger.With("component", "push_handler"))
	} else {
		dispatcher = notify.New(hub, nil, logger)
	}

	engine := progression.New(progression.Deps{
		Profiles:     profileStore,
		Challenges:   challengeStore,
		Catalog:      cat,
		Achievements: achievementStore,
		Notifier:     dispatcher,
		Logger:       logger,
	})

	return &Server{
		db:               db,
		hub:              hub,
		authH:            handler.NewAuthHandler(userStore, profileStore, sessionStore, cfg.AdminEmails, time.Duration(cfg.SessionTTL), logger.With("component", "auth")),
		profileH:         handler.NewProfileHandler(profileStore, hub, logger.With("component", "profile")),
		challengeH:       handler.NewChallengeHandler(challengeStore, cat, logger.With("component", "challenge")),
		progressionH:     handler.NewProgressionHandler(engine, challengeStore, hub, logger.With("component", "progression_handler")),
		achievementH:     handler.NewAchievementHandler(achievementStore, cat, logger.With("component", "achievement")),
		communityH:       handler.NewCommunityHandler(profileStore, cfg.LeaderboardSize, logger.With("component", "community")),
		adminH:           handler.NewAdminHandler(challengeStore, achievementStore, cat, hub, logger.With("component", "admin")),
		pushH:            pushH,
		userStore:        userStore,
		sessionStore:     sessionStore,
		rateLimiter:      middleware.NewRateLimiter(),
		dispatcher:       dispatcher,
		websocketOrigins: cfg.WebSocketOrigins,
		logger:           logger,
	}, nil
}

func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Dispatcher is exposed so shutdown can wait for in-flight pushes.
func (s *Server) Dispatcher() *notify.Dispatcher {
	return s.dispatcher
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// Profile
	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.HandleFunc("PUT /api/profile", s.profileH.Update)

	// Challenges
	mux.HandleFunc("GET /api/challenges", s.challengeH.List)
	mux.HandleFunc("GET /api/challenges/categories", s.challengeH.Categories)
	mux.HandleFunc("GET /api/challenges/available", s.challengeH.Available)
	mux.HandleFunc("POST /api/challenges/{id}/start", s.challengeH.Start)
	mux.HandleFunc("GET /api/enrollments", s.challengeH.Enrollments)
	mux.HandleFunc("GET /api/enrollments/today", s.challengeH.Today)

	// Progression
	mux.HandleFunc("POST /api/enrollments/{id}/complete", s.progressionH.Complete)
	mux.HandleFunc("POST /api/trees", s.progressionH.PlantTree)
	mux.HandleFunc("GET /api/progress/weekly", s.progressionH.Weekly)

	// Achievements
	mux.HandleFunc("GET /api/achievements", s.achievementH.List)
	mux.HandleFunc("GET /api/achievements/unlocked", s.achievementH.Unlocked)
	mux.HandleFunc("GET /api/achievements/status", s.achievementH.Status)

	// Community
	mux.HandleFunc("GET /api/leaderboard", s.communityH.Leaderboard)
	mux.HandleFunc("GET /api/community/stats", s.communityH.Stats)

	// Push notifications (only when configured)
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}

	// Admin
	mux.Handle("POST /api/admin/challenges", middleware.RequireAdmin(http.HandlerFunc(s.adminH.CreateChallenge)))
	mux.Handle("PUT /api/admin/challenges/{id}/active", middleware.RequireAdmin(http.HandlerFunc(s.adminH.SetChallengeActive)))
	mux.Handle("POST /api/admin/achievements", middleware.RequireAdmin(http.HandlerFunc(s.adminH.CreateAchievement)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.websocketOrigins))
}
