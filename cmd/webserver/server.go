package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"pdfquiz"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
)

const (
	sessionName    = "quiz-session"
	sessionUserKey = "user_id"

	generateTimeout = 5 * time.Minute
)

type ctxKey int

const identityKey ctxKey = iota

// Server serves the quiz API
type Server struct {
	cfg       *pdfquiz.Config
	db        *pdfquiz.DB
	generator *pdfquiz.QuizGenerator
	store     *sessions.CookieStore
	attempts  *attemptRegistry
}

// NewServer wires the handlers to their dependencies
func NewServer(cfg *pdfquiz.Config, db *pdfquiz.DB, generator *pdfquiz.QuizGenerator) *Server {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   !cfg.Development,
		SameSite: http.SameSiteLaxMode,
	}

	return &Server{
		cfg:       cfg,
		db:        db,
		generator: generator,
		store:     store,
		attempts:  newAttemptRegistry(db, cfg.RequireAnswer),
	}
}

// Routes returns the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Route("/quizzes", func(r chi.Router) {
			r.Get("/", s.handleListQuizzes)
			r.Post("/", s.handleCreateQuiz)

			r.Route("/{quizID}", func(r chi.Router) {
				r.Get("/", s.handleGetQuiz)
				r.Delete("/", s.handleDeleteQuiz)

				r.Post("/attempt", s.handleStartAttempt)
				r.Get("/attempt", s.handleGetAttempt)
				r.Post("/attempt/{action}", s.handleAttemptAction)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	session, _ := s.store.Get(r, sessionName)
	session.Values[sessionUserKey] = userID
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.store.Get(r, sessionName)
	delete(session.Values, sessionUserKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.store.Get(r, sessionName)
		if err != nil {
			pdfquiz.VerboseLog("Ignoring unreadable session cookie: %v", err)
		}
		userID, _ := session.Values[sessionUserKey].(string)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, pdfquiz.Identity{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) pdfquiz.Identity {
	id, _ := ctx.Value(identityKey).(pdfquiz.Identity)
	return id
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	quizzes, err := s.db.ListQuizHistories(r.Context(), id.UserID)
	if err != nil {
		log.Printf("Failed to list quizzes: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list quizzes")
		return
	}

	q := r.URL.Query()
	filter := pdfquiz.ParseHistoryFilter(q.Get("search"), q.Get("status"), q.Get("sort"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quizzes": pdfquiz.FilterHistories(quizzes, filter),
		"total":   len(quizzes),
	})
}

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "only PDF files under the upload limit are allowed")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with a PDF file")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	doc, err := pdfquiz.ReadDocument(header.Filename, header.Header.Get("Content-Type"), file, s.cfg.MaxUploadBytes)
	switch {
	case errors.Is(err, pdfquiz.ErrDocumentTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, pdfquiz.ErrUnsupportedDocument):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()

	quiz, err := s.generator.GenerateQuiz(ctx, id.UserID, doc)
	if err != nil {
		log.Printf("Failed to generate quiz for %s: %v", header.Filename, err)
		writeError(w, http.StatusBadGateway, "failed to generate quiz, please try again")
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	quizID := chi.URLParam(r, "quizID")

	quiz, err := s.db.GetQuizHistory(r.Context(), quizID, id.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := map[string]interface{}{"quiz": quiz}
	result, err := s.db.GetResult(r.Context(), quizID, id.UserID)
	switch {
	case err == nil:
		resp["result"] = result
	case !errors.Is(err, pdfquiz.ErrNotFound):
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	quizID := chi.URLParam(r, "quizID")

	if err := s.db.DeleteQuizHistory(r.Context(), quizID, id.UserID); err != nil {
		writeStoreError(w, err)
		return
	}
	s.attempts.discard(id, quizID)
	w.WriteHeader(http.StatusNoContent)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, pdfquiz.ErrNotFound) {
		writeError(w, http.StatusNotFound, "quiz not found")
		return
	}
	log.Printf("Store error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
