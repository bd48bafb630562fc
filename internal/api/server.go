package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tclient "go.temporal.io/sdk/client"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/auth"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/config"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/providers"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/rag"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/review"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/storage"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/vector"
)

type Server struct {
	cfg           config.Config
	db            *storage.DB
	bidRepo       *storage.BidRepo
	knowledgeRepo *storage.KnowledgeRepo
	chunkRepo     *storage.ChunkRepo
	notifyRepo    *storage.NotificationRepo
	archiveRepo   *storage.ArchiveRepo
	inviteRepo    *storage.InviteRepo
	userRepo      *storage.UserRepo
	searcher      *vector.Searcher
	providers     *providers.Manager
	extractor     *rag.Extractor
	drafter       *rag.Drafter
	review        *review.Service
	temporal      tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg.LLMProviders, cfg.EmbedProviders, cfg.EmbedDim)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}

	bidRepo := storage.NewBidRepo(db)
	knowledgeRepo := storage.NewKnowledgeRepo(db)
	notifyRepo := storage.NewNotificationRepo(db)
	archiveRepo := storage.NewArchiveRepo(db)
	searcher := vector.NewSearcher(db.Pool)
	return &Server{
		cfg:           cfg,
		db:            db,
		bidRepo:       bidRepo,
		knowledgeRepo: knowledgeRepo,
		chunkRepo:     storage.NewChunkRepo(db),
		notifyRepo:    notifyRepo,
		archiveRepo:   archiveRepo,
		inviteRepo:    storage.NewInviteRepo(db),
		userRepo:      storage.NewUserRepo(db),
		searcher:      searcher,
		providers:     pm,
		extractor:     rag.NewExtractor(pm, cfg.ExtractMaxChars),
		drafter:       rag.NewDrafter(pm, knowledgeRepo, searcher, cfg.EmbedDim, cfg.TopKPerNS, cfg.TopNFinal),
		review:        review.NewService(bidRepo, notifyRepo, archiveRepo),
		temporal:      tc,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.cfg.JWTSecret, func(w http.ResponseWriter, status int, message string) {
			writeErr(w, status, fmt.Errorf("%s", message))
		}))

		r.Route("/bids", func(r chi.Router) {
			r.Get("/", s.handleListBids)
			r.Post("/", s.handleCreateBid)
			r.Get("/review-queue", s.handleReviewQueue)
			r.Route("/{bidID}", func(r chi.Router) {
				r.Get("/", s.handleGetBid)
				r.Delete("/", s.handleDeleteBid)
				r.Post("/extract", s.handleExtractSections)
				r.Post("/submit", s.handleSubmitBid)
				r.Post("/finalize", s.handleFinalizeBid)
				r.Post("/complete", s.handleCompleteBid)
				r.Route("/sections/{index}", func(r chi.Router) {
					r.Put("/", s.handleSaveSection)
					r.Post("/draft", s.handleDraftSection)
					r.Post("/flag", s.handleFlagSection)
					r.Post("/approve", s.handleApproveSection)
				})
			})
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", s.handleListKnowledge)
			r.Post("/", s.handleUploadKnowledge)
			r.Get("/selftest", s.handleKnowledgeSelftest)
			r.Post("/reindex", s.handleReindexKnowledge)
			r.Route("/{docID}", func(r chi.Router) {
				r.Get("/", s.handleGetKnowledge)
				r.Delete("/", s.handleDeleteKnowledge)
				r.Get("/status", s.handleIngestStatus)
				r.Put("/mapping", s.handleUpdateMapping)
			})
		})

		r.Route("/team", func(r chi.Router) {
			r.Get("/members", s.handleListMembers)
			r.Route("/invites", func(r chi.Router) {
				r.Get("/", s.handleListInvites)
				r.Post("/", s.handleCreateInvite)
				r.Post("/accept", s.handleAcceptInvite)
				r.Delete("/{inviteID}", s.handleRevokeInvite)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleListNotifications)
			r.Post("/read-all", s.handleMarkAllNotificationsRead)
			r.Post("/{notificationID}/read", s.handleMarkNotificationRead)
		})

		r.Route("/archives", func(r chi.Router) {
			r.Get("/", s.handleListArchives)
			r.Put("/{archiveID}/outcome", s.handleArchiveOutcome)
			r.Post("/{archiveID}/restore", s.handleRestoreArchive)
		})
	})

	return withCORS(r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "MP-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "MP-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "MP-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "MP-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "MP-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusUnauthorized:
		code = "MP-API-4010"
		msg = "Authentication required."
	case status == http.StatusForbidden:
		code = "MP-API-4030"
		msg = "You do not have permission to do that."
	case status == http.StatusNotFound:
		code = "MP-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "MP-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "MP-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "MP-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "bid_name is required"):
			msg = "Bid name is required."
		case strings.Contains(low, "no tender file"):
			msg = "A tender document is required."
		case strings.Contains(low, "no file provided"):
			msg = "A document file is required."
		case strings.Contains(low, "notes are required"):
			msg = "Flagging a section requires notes."
		case strings.Contains(low, "not fully drafted"):
			msg = "Every section needs an answer before submission."
		case strings.Contains(low, "not every section is approved"):
			msg = "All sections must be approved before final approval."
		case strings.Contains(low, "section index"):
			msg = "Section index is out of range."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(low, "mapping"):
			msg = "Template mapping is incomplete or malformed."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
