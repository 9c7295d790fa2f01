package pdfquiz

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// SessionOptions configures a QuizSession
type SessionOptions struct {
	// QuizID of the persisted quiz. Empty means practice mode: nothing is saved.
	QuizID string
	// Identity of the user taking the quiz. Anonymous sessions are not saved.
	Identity Identity
	Sink     ResultSink
	// OnSaveError is called from the persistence goroutine when the sink fails
	OnSaveError func(error)
	// RequireAnswer makes NextQuestion a no-op while the current question is unanswered
	RequireAnswer bool
	// Context is the parent of the persistence call. Defaults to context.Background.
	Context context.Context
}

// QuizSession walks a fixed sequence of questions, records one answer per
// question and scores the attempt once the last question is passed.
//
// A session is not safe for concurrent use; callers serialize access.
// Persistence runs in its own goroutine and only reads a copy of the answers.
type QuizSession struct {
	questions []Question
	opts      SessionOptions

	currentIndex int
	answers      []Label
	submitted    bool
	score        int

	inflight sync.WaitGroup
	saving   atomic.Int32
}

// NewQuizSession creates a session positioned on the first question
func NewQuizSession(questions []Question, opts SessionOptions) *QuizSession {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return &QuizSession{
		questions: qs,
		opts:      opts,
		answers:   make([]Label, len(qs)),
	}
}

// Len returns the number of questions
func (s *QuizSession) Len() int { return len(s.questions) }

// QuizID returns the persisted quiz id, empty in practice mode
func (s *QuizSession) QuizID() string { return s.opts.QuizID }

func (s *QuizSession) CurrentIndex() int { return s.currentIndex }

func (s *QuizSession) Submitted() bool { return s.submitted }

// CurrentQuestion returns the question under the cursor. ok is false for an empty session.
func (s *QuizSession) CurrentQuestion() (q Question, ok bool) {
	if len(s.questions) == 0 {
		return Question{}, false
	}
	return s.questions[s.currentIndex], true
}

// Questions returns a copy of the question sequence
func (s *QuizSession) Questions() []Question {
	qs := make([]Question, len(s.questions))
	copy(qs, s.questions)
	return qs
}

// Answers returns a copy of the answer slots; unanswered slots are LabelNone
func (s *QuizSession) Answers() []Label {
	answers := make([]Label, len(s.answers))
	copy(answers, s.answers)
	return answers
}

// Score returns the number of correct answers. ok is false until submission.
func (s *QuizSession) Score() (score int, ok bool) {
	if !s.submitted {
		return 0, false
	}
	return s.score, true
}

// NormalizedScore returns score/N in [0,1]. ok is false until submission.
func (s *QuizSession) NormalizedScore() (float64, bool) {
	if !s.submitted {
		return 0, false
	}
	return normalize(s.score, len(s.questions)), true
}

// Progress returns the share of questions already passed, as a percentage
func (s *QuizSession) Progress() float64 {
	if len(s.questions) == 0 {
		return 0
	}
	return float64(s.currentIndex) / float64(len(s.questions)) * 100
}

// Saving reports whether a persistence call is still in flight
func (s *QuizSession) Saving() bool {
	return s.saving.Load() > 0
}

// CanAdvance reports whether NextQuestion would change state
func (s *QuizSession) CanAdvance() bool {
	if s.submitted {
		return false
	}
	if s.opts.RequireAnswer && len(s.answers) > 0 && s.answers[s.currentIndex] == LabelNone {
		return false
	}
	return true
}

// SelectAnswer records label for the current question, replacing any earlier
// choice. Invalid labels and calls after submission are ignored.
func (s *QuizSession) SelectAnswer(label Label) {
	if s.submitted || len(s.questions) == 0 {
		return
	}
	idx := label.Index()
	if idx < 0 || idx >= len(s.questions[s.currentIndex].Options) {
		VerboseLog("Ignoring answer %q for question %d", label, s.currentIndex+1)
		return
	}
	s.answers[s.currentIndex] = label
}

// NextQuestion advances the cursor, or submits the attempt when on the last question
func (s *QuizSession) NextQuestion() {
	if !s.CanAdvance() {
		return
	}
	if s.currentIndex < len(s.questions)-1 {
		s.currentIndex++
		return
	}
	s.submit()
}

// PreviousQuestion moves the cursor back. It never submits.
func (s *QuizSession) PreviousQuestion() {
	if s.submitted {
		return
	}
	if s.currentIndex > 0 {
		s.currentIndex--
	}
}

// Reset clears the cursor, answers and score, keeping the questions.
// A persistence call already in flight is not cancelled.
func (s *QuizSession) Reset() {
	s.currentIndex = 0
	s.answers = make([]Label, len(s.questions))
	s.submitted = false
	s.score = 0
}

// Wait blocks until every persistence call started by this session has returned
func (s *QuizSession) Wait() {
	s.inflight.Wait()
}

func (s *QuizSession) submit() {
	if s.submitted {
		return
	}
	s.submitted = true

	correct := 0
	for i, q := range s.questions {
		if s.answers[i] != LabelNone && s.answers[i] == q.Answer {
			correct++
		}
	}
	s.score = correct

	if s.opts.QuizID == "" || s.opts.Identity.Anonymous() || s.opts.Sink == nil {
		VerboseLog("Quiz finished with %d/%d, not saving (quiz=%q anonymous=%v)",
			correct, len(s.questions), s.opts.QuizID, s.opts.Identity.Anonymous())
		return
	}

	record := QuizAnswer{
		QuizID:  s.opts.QuizID,
		UserID:  s.opts.Identity.UserID,
		Answers: s.Answers(),
		Score:   normalize(correct, len(s.questions)),
	}

	s.saving.Add(1)
	s.inflight.Add(1)
	go s.persist(record)
}

func (s *QuizSession) persist(record QuizAnswer) {
	defer s.inflight.Done()
	defer s.saving.Add(-1)

	if err := s.opts.Sink.SaveResult(s.opts.Context, record); err != nil {
		log.Printf("Failed to save quiz answers for quiz %s: %v", record.QuizID, err)
		if s.opts.OnSaveError != nil {
			s.opts.OnSaveError(err)
		}
		return
	}
	VerboseLog("Saved answers for quiz %s (user %s, score %.2f)", record.QuizID, record.UserID, record.Score)
}

func normalize(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// QuestionView is a question without its answer key
type QuestionView struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// ReviewItem shows one question after submission
type ReviewItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   Label    `json:"answer"`
	Selected Label    `json:"selected"`
	Correct  bool     `json:"correct"`
}

// SessionState is a serializable view of a session
type SessionState struct {
	QuizID          string        `json:"quiz_id,omitempty"`
	CurrentIndex    int           `json:"current_index"`
	Total           int           `json:"total"`
	Progress        float64       `json:"progress"`
	Current         *QuestionView `json:"current,omitempty"`
	Answers         []Label       `json:"answers"`
	CanAdvance      bool          `json:"can_advance"`
	Submitted       bool          `json:"submitted"`
	Score           *int          `json:"score,omitempty"`
	NormalizedScore *float64      `json:"normalized_score,omitempty"`
	Saving          bool          `json:"saving"`
	Review          []ReviewItem  `json:"review,omitempty"`
}

// Snapshot returns the current state. The answer key is only included after submission.
func (s *QuizSession) Snapshot() SessionState {
	state := SessionState{
		QuizID:       s.opts.QuizID,
		CurrentIndex: s.currentIndex,
		Total:        len(s.questions),
		Answers:      s.Answers(),
		CanAdvance:   s.CanAdvance(),
		Submitted:    s.submitted,
		Saving:       s.Saving(),
	}

	if !s.submitted {
		state.Progress = s.Progress()
		if q, ok := s.CurrentQuestion(); ok {
			state.Current = &QuestionView{Question: q.Question, Options: append([]string(nil), q.Options...)}
		}
		return state
	}

	score, _ := s.Score()
	normalized, _ := s.NormalizedScore()
	state.Score = &score
	state.NormalizedScore = &normalized
	state.Review = make([]ReviewItem, len(s.questions))
	for i, q := range s.questions {
		state.Review[i] = ReviewItem{
			Question: q.Question,
			Options:  append([]string(nil), q.Options...),
			Answer:   q.Answer,
			Selected: s.answers[i],
			Correct:  s.answers[i] == q.Answer,
		}
	}
	return state
}
