package pdfquiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultNumQuestions is the number of questions generated for each document
const DefaultNumQuestions = 4

// Label identifies an option by position
type Label string

const (
	LabelNone Label = ""
	LabelA    Label = "A"
	LabelB    Label = "B"
	LabelC    Label = "C"
	LabelD    Label = "D"
)

// Labels maps option index to label
var Labels = []Label{LabelA, LabelB, LabelC, LabelD}

// Index returns the option index of the label, or -1 when it is not a valid label
func (l Label) Index() int {
	for i, label := range Labels {
		if label == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is one of A, B, C or D
func (l Label) Valid() bool {
	return l.Index() >= 0
}

// ParseLabel accepts a label in any case, surrounded by whitespace
func ParseLabel(s string) (Label, bool) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return LabelNone, false
	}
	return l, true
}

// MarshalJSON encodes an unset label as null
func (l Label) MarshalJSON() ([]byte, error) {
	if l == LabelNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(l))
}

// UnmarshalJSON decodes null as an unset label
func (l *Label) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = LabelNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = Label(s)
	return nil
}

// Question represents a single multiple choice question with four options
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   Label    `json:"answer"`
}

// ErrInvalidQuestions is returned when a question set does not have the expected shape
var ErrInvalidQuestions = errors.New("invalid question set")

// ValidateQuestions checks that there are exactly n questions, each with four
// non-empty options and an answer label
func ValidateQuestions(questions []Question, n int) error {
	if len(questions) != n {
		return fmt.Errorf("%w: expected %d questions, got %d", ErrInvalidQuestions, n, len(questions))
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrInvalidQuestions, i+1)
		}
		if len(q.Options) != len(Labels) {
			return fmt.Errorf("%w: question %d has %d options", ErrInvalidQuestions, i+1, len(q.Options))
		}
		for j, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return fmt.Errorf("%w: question %d option %s is empty", ErrInvalidQuestions, i+1, Labels[j])
			}
		}
		if !q.Answer.Valid() {
			return fmt.Errorf("%w: question %d has answer %q", ErrInvalidQuestions, i+1, q.Answer)
		}
	}
	return nil
}

// QuizHistory is a generated quiz owned by a user
type QuizHistory struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	DocTitle  string     `json:"doc_title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at"`

	// LatestScore is the normalized score of the most recent attempt, nil when unanswered
	LatestScore *float64 `json:"latest_score,omitempty"`
}

// Answered reports whether the quiz has at least one stored result
func (h QuizHistory) Answered() bool {
	return h.LatestScore != nil
}

// QuizAnswer is a submitted attempt as stored by a ResultSink
type QuizAnswer struct {
	ID        string    `json:"id,omitempty"`
	QuizID    string    `json:"quiz_id"`
	UserID    string    `json:"user_id"`
	Answers   []Label   `json:"answers"`
	Score     float64   `json:"score"` // correct / total, in [0,1]
	CreatedAt time.Time `json:"created_at"`
}

// GenerationRequest represents a request to generate questions from a document
type GenerationRequest struct {
	QuizID         string `json:"quiz_id,omitempty"`
	FileName       string `json:"file_name"`
	NumQuestions   int    `json:"num_questions"`
	SourceMaterial string `json:"source_material"`
}
