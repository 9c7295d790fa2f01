package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pdfquiz"

	"github.com/go-chi/chi/v5"
)

// attemptIdleTimeout is how long an untouched attempt stays in the registry
const attemptIdleTimeout = 2 * time.Hour

// attempt is one user's quiz-taking session for one quiz
type attempt struct {
	mu      sync.Mutex
	session *pdfquiz.QuizSession
	saveErr string

	lastUsed time.Time // guarded by the registry mutex
}

type attemptState struct {
	pdfquiz.SessionState
	SaveError string `json:"save_error,omitempty"`
}

func (a *attempt) state() attemptState {
	return attemptState{SessionState: a.session.Snapshot(), SaveError: a.saveErr}
}

// attemptRegistry holds the live sessions. Requests for the same attempt are
// serialized by the attempt's mutex. Replaced, discarded and expired attempts
// are kept in retired until their save has finished.
type attemptRegistry struct {
	mu            sync.Mutex
	attempts      map[string]*attempt
	retired       []*attempt
	sink          pdfquiz.ResultSink
	requireAnswer bool
	idleTimeout   time.Duration
	now           func() time.Time
}

func newAttemptRegistry(sink pdfquiz.ResultSink, requireAnswer bool) *attemptRegistry {
	return &attemptRegistry{
		attempts:      make(map[string]*attempt),
		sink:          sink,
		requireAnswer: requireAnswer,
		idleTimeout:   attemptIdleTimeout,
		now:           time.Now,
	}
}

func attemptKey(id pdfquiz.Identity, quizID string) string {
	return id.UserID + "/" + quizID
}

// start replaces any previous attempt of the user on this quiz
func (ar *attemptRegistry) start(id pdfquiz.Identity, quiz *pdfquiz.QuizHistory) *attempt {
	a := &attempt{}
	a.session = pdfquiz.NewQuizSession(quiz.Questions, pdfquiz.SessionOptions{
		QuizID:        quiz.ID,
		Identity:      id,
		Sink:          ar.sink,
		RequireAnswer: ar.requireAnswer,
		// the save outlives the request that triggered it
		Context: context.Background(),
		OnSaveError: func(err error) {
			a.mu.Lock()
			a.saveErr = "failed to save quiz answers: " + err.Error()
			a.mu.Unlock()
		},
	})

	ar.mu.Lock()
	defer ar.mu.Unlock()

	now := ar.now()
	ar.pruneLocked(now)

	key := attemptKey(id, quiz.ID)
	if old, ok := ar.attempts[key]; ok {
		ar.retireLocked(old)
	}
	a.lastUsed = now
	ar.attempts[key] = a
	return a
}

func (ar *attemptRegistry) get(id pdfquiz.Identity, quizID string) (*attempt, bool) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	a, ok := ar.attempts[attemptKey(id, quizID)]
	if ok {
		a.lastUsed = ar.now()
	}
	return a, ok
}

func (ar *attemptRegistry) discard(id pdfquiz.Identity, quizID string) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	key := attemptKey(id, quizID)
	if a, ok := ar.attempts[key]; ok {
		delete(ar.attempts, key)
		ar.retireLocked(a)
	}
}

// retireLocked keeps a until the next prune finds it idle, since a request
// that fetched it earlier may still submit it
func (ar *attemptRegistry) retireLocked(a *attempt) {
	ar.retired = append(ar.retired, a)
}

// pruneLocked drops idle attempts and retired attempts whose save has finished
func (ar *attemptRegistry) pruneLocked(now time.Time) {
	for key, a := range ar.attempts {
		if now.Sub(a.lastUsed) > ar.idleTimeout {
			delete(ar.attempts, key)
			ar.retireLocked(a)
		}
	}

	kept := ar.retired[:0]
	for _, a := range ar.retired {
		if a.session.Saving() {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(ar.retired); i++ {
		ar.retired[i] = nil
	}
	ar.retired = kept
}

// waitAll blocks until no attempt, live or retired, has a save in flight
func (ar *attemptRegistry) waitAll() {
	ar.mu.Lock()
	all := make([]*attempt, 0, len(ar.attempts)+len(ar.retired))
	for _, a := range ar.attempts {
		all = append(all, a)
	}
	all = append(all, ar.retired...)
	ar.mu.Unlock()

	for _, a := range all {
		a.session.Wait()
	}
}

func (s *Server) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	quizID := chi.URLParam(r, "quizID")

	quiz, err := s.db.GetQuizHistory(r.Context(), quizID, id.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	a := s.attempts.start(id, quiz)
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusCreated, a.state())
}

func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	a, ok := s.attempts.get(identityFrom(r.Context()), chi.URLParam(r, "quizID"))
	if !ok {
		writeError(w, http.StatusNotFound, "no attempt in progress")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, a.state())
}

func (s *Server) handleAttemptAction(w http.ResponseWriter, r *http.Request) {
	a, ok := s.attempts.get(identityFrom(r.Context()), chi.URLParam(r, "quizID"))
	if !ok {
		writeError(w, http.StatusNotFound, "no attempt in progress")
		return
	}

	var label pdfquiz.Label
	action := chi.URLParam(r, "action")
	if action == "answer" {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "failed to parse form")
			return
		}
		l, ok := pdfquiz.ParseLabel(r.FormValue("label"))
		if !ok {
			writeError(w, http.StatusBadRequest, "label must be one of A, B, C, D")
			return
		}
		label = l
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch action {
	case "answer":
		a.session.SelectAnswer(label)
	case "next":
		a.session.NextQuestion()
	case "previous":
		a.session.PreviousQuestion()
	case "reset":
		a.session.Reset()
		a.saveErr = ""
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	writeJSON(w, http.StatusOK, a.state())
}
