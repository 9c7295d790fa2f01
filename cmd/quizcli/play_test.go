package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pdfquiz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cliQuestions() []pdfquiz.Question {
	return []pdfquiz.Question{
		{Question: "Capital of France?", Options: []string{"Paris", "Rome", "Madrid", "Berlin"}, Answer: pdfquiz.LabelA},
		{Question: "2 + 2?", Options: []string{"3", "4", "5", "22"}, Answer: pdfquiz.LabelB},
		{Question: "Water boils at?", Options: []string{"50C", "80C", "100C", "120C"}, Answer: pdfquiz.LabelC},
		{Question: "Largest planet?", Options: []string{"Mars", "Venus", "Earth", "Jupiter"}, Answer: pdfquiz.LabelD},
	}
}

func TestPlay_PracticeMode(t *testing.T) {
	session := pdfquiz.NewQuizSession(cliQuestions(), pdfquiz.SessionOptions{RequireAnswer: true})
	in := strings.NewReader("n\nx\na\nn\nb\nn\np\nn\nc\nn\na\nn\nq\n")
	var out bytes.Buffer

	require.NoError(t, play(in, &out, session))

	assert.True(t, session.Submitted())
	score, _ := session.Score()
	assert.Equal(t, 3, score)
	assert.Contains(t, out.String(), "Please select an answer first")
	assert.Contains(t, out.String(), "Please enter A, B, C, or D")
	assert.Contains(t, out.String(), "Score: 3/4 (75.0%)")
	assert.Contains(t, out.String(), "yours: A, correct: D) Jupiter")
}

func TestPlay_RetryResetsSession(t *testing.T) {
	session := pdfquiz.NewQuizSession(cliQuestions(), pdfquiz.SessionOptions{RequireAnswer: true})
	in := strings.NewReader("a\nn\na\nn\na\nn\na\nn\nr\na\nn\nb\nn\nc\nn\nd\nn\nq\n")
	var out bytes.Buffer

	require.NoError(t, play(in, &out, session))

	score, _ := session.Score()
	assert.Equal(t, 4, score)
	assert.Contains(t, out.String(), "Score: 1/4 (25.0%)")
	assert.Contains(t, out.String(), "Score: 4/4 (100.0%)")
}

func TestPlay_QuitMidway(t *testing.T) {
	session := pdfquiz.NewQuizSession(cliQuestions(), pdfquiz.SessionOptions{RequireAnswer: true})
	var out bytes.Buffer

	require.NoError(t, play(strings.NewReader("a\nn\nq\n"), &out, session))

	assert.False(t, session.Submitted())
	assert.Equal(t, 1, session.CurrentIndex())
	assert.Contains(t, out.String(), "Bye!")
}

func TestPlay_SavesResult(t *testing.T) {
	var (
		mu    sync.Mutex
		saved []pdfquiz.QuizAnswer
	)
	sink := pdfquiz.ResultSinkFunc(func(ctx context.Context, answer pdfquiz.QuizAnswer) error {
		mu.Lock()
		defer mu.Unlock()
		saved = append(saved, answer)
		return nil
	})
	session := pdfquiz.NewQuizSession(cliQuestions(), pdfquiz.SessionOptions{
		QuizID:        "quiz-1",
		Identity:      pdfquiz.Identity{UserID: "user-1"},
		Sink:          sink,
		RequireAnswer: true,
	})

	require.NoError(t, play(strings.NewReader("a\nn\nb\nn\nc\nn\nd\nn\n\n"), &bytes.Buffer{}, session))
	session.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, saved, 1)
	assert.Equal(t, 1.0, saved[0].Score)
}

func TestLoadQuestions(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`[
		{"question": "Q", "options": ["a", "b", "c", "d"], "answer": "B"}
	]`), 0644))

	questions, err := loadQuestions(good)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, pdfquiz.LabelB, questions[0].Answer)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"question": "Q", "options": ["a"], "answer": "B"}]`), 0644))
	_, err = loadQuestions(bad)
	assert.ErrorIs(t, err, pdfquiz.ErrInvalidQuestions)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0644))
	_, err = loadQuestions(empty)
	assert.Error(t, err)
}
