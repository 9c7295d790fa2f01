package pdfquiz

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// TitleSource names a quiz after its document
type TitleSource interface {
	GenerateTitle(ctx context.Context, fileName string) string
}

// HistoryStore persists generated quizzes
type HistoryStore interface {
	CreateQuizHistory(ctx context.Context, quiz *QuizHistory) error
}

const defaultGenerateAttempts = 3

// QuizGenerator turns a document into a stored quiz
type QuizGenerator struct {
	source       QuestionSource
	titles       TitleSource
	store        HistoryStore
	numQuestions int
	attempts     int
}

// NewQuizGenerator creates a new quiz generator. titles and store may be nil:
// the file name is then used as title and nothing is stored.
func NewQuizGenerator(source QuestionSource, titles TitleSource, store HistoryStore, numQuestions int) *QuizGenerator {
	if numQuestions <= 0 {
		numQuestions = DefaultNumQuestions
	}
	return &QuizGenerator{
		source:       source,
		titles:       titles,
		store:        store,
		numQuestions: numQuestions,
		attempts:     defaultGenerateAttempts,
	}
}

// GenerateQuiz generates questions for doc and stores them as a quiz owned by
// userID. The model is asked again when it returns a malformed question set.
func (qg *QuizGenerator) GenerateQuiz(ctx context.Context, userID string, doc *Document) (*QuizHistory, error) {
	quizID := uuid.NewString()
	req := GenerationRequest{
		QuizID:         quizID,
		FileName:       doc.Name,
		NumQuestions:   qg.numQuestions,
		SourceMaterial: doc.Text,
	}

	log.Printf("Starting quiz generation for %s, target questions: %d", doc.Name, req.NumQuestions)

	var (
		questions []Question
		err       error
	)
	for attempt := 1; attempt <= qg.attempts; attempt++ {
		questions, err = qg.source.GenerateQuestions(ctx, req)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrInvalidQuestions) || ctx.Err() != nil {
			return nil, fmt.Errorf("failed to generate questions: %w", err)
		}
		log.Printf("Attempt %d/%d for %s returned unusable questions: %v", attempt, qg.attempts, doc.Name, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions after %d attempts: %w", qg.attempts, err)
	}

	title := FallbackTitle(doc.Name)
	if qg.titles != nil {
		title = qg.titles.GenerateTitle(ctx, doc.Name)
	}

	quiz := &QuizHistory{
		ID:        quizID,
		UserID:    userID,
		DocTitle:  title,
		Questions: questions,
	}

	if qg.store != nil {
		if err := qg.store.CreateQuizHistory(ctx, quiz); err != nil {
			return nil, err
		}
	}

	log.Printf("Quiz generation complete: %d questions for '%s'", len(quiz.Questions), quiz.DocTitle)
	return quiz, nil
}
