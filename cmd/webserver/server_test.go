package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdfquiz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct{}

func (stubSource) GenerateQuestions(ctx context.Context, req pdfquiz.GenerationRequest) ([]pdfquiz.Question, error) {
	return testQuestions(), nil
}

func testQuestions() []pdfquiz.Question {
	return []pdfquiz.Question{
		{Question: "Q1", Options: []string{"a", "b", "c", "d"}, Answer: pdfquiz.LabelA},
		{Question: "Q2", Options: []string{"a", "b", "c", "d"}, Answer: pdfquiz.LabelB},
		{Question: "Q3", Options: []string{"a", "b", "c", "d"}, Answer: pdfquiz.LabelC},
		{Question: "Q4", Options: []string{"a", "b", "c", "d"}, Answer: pdfquiz.LabelD},
	}
}

type testEnv struct {
	server  *Server
	handler http.Handler
	db      *pdfquiz.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &pdfquiz.Config{
		SessionSecret:  "test-secret",
		NumQuestions:   4,
		MaxUploadBytes: 1 << 20,
		RequireAnswer:  true,
		Development:    true,
	}
	db, err := pdfquiz.OpenDB(context.Background(), pdfquiz.DriverSQLite, filepath.Join(t.TempDir(), "quiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	server := NewServer(cfg, db, pdfquiz.NewQuizGenerator(stubSource{}, nil, db, cfg.NumQuestions))
	return &testEnv{server: server, handler: server.Routes(), db: db}
}

func (e *testEnv) do(t *testing.T, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, userID string) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"user_id":"`+userID+`"}`))
	rec := e.do(t, req, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func (e *testEnv) seedQuiz(t *testing.T, userID string) *pdfquiz.QuizHistory {
	t.Helper()
	quiz := &pdfquiz.QuizHistory{UserID: userID, DocTitle: "Seeded", Questions: testQuestions()}
	require.NoError(t, e.db.CreateQuizHistory(context.Background(), quiz))
	return quiz
}

func (e *testEnv) action(t *testing.T, cookies []*http.Cookie, quizID, action, label string) attemptState {
	t.Helper()
	var body io.Reader
	if label != "" {
		body = strings.NewReader("label=" + label)
	}
	req := httptest.NewRequest(http.MethodPost, "/quizzes/"+quizID+"/attempt/"+action, body)
	if label != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := e.do(t, req, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeState(t, rec)
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) attemptState {
	t.Helper()
	var state attemptState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state
}

func TestRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/quizzes", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRequiresUserID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"user_id":"  "}`)), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttemptFlow(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user-1")
	quiz := env.seedQuiz(t, "user-1")

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/quizzes/"+quiz.ID+"/attempt", nil), cookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	state := decodeState(t, rec)
	assert.Equal(t, 4, state.Total)
	assert.False(t, state.CanAdvance)
	require.NotNil(t, state.Current)
	assert.Equal(t, "Q1", state.Current.Question)
	assert.NotContains(t, rec.Body.String(), `"answer"`)

	// advancing without an answer is refused
	state = env.action(t, cookies, quiz.ID, "next", "")
	assert.Equal(t, 0, state.CurrentIndex)

	state = env.action(t, cookies, quiz.ID, "previous", "")
	assert.Equal(t, 0, state.CurrentIndex)

	for _, label := range []string{"a", "B", "D", "D"} {
		env.action(t, cookies, quiz.ID, "answer", label)
		state = env.action(t, cookies, quiz.ID, "next", "")
	}
	assert.True(t, state.Submitted)
	require.NotNil(t, state.Score)
	assert.Equal(t, 3, *state.Score)
	assert.Equal(t, 0.75, *state.NormalizedScore)
	require.Len(t, state.Review, 4)

	// frozen after submission
	state = env.action(t, cookies, quiz.ID, "answer", "C")
	assert.Equal(t, pdfquiz.LabelD, state.Answers[3])

	env.server.attempts.waitAll()

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/quizzes/"+quiz.ID, nil), cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Quiz   pdfquiz.QuizHistory `json:"quiz"`
		Result *pdfquiz.QuizAnswer `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.NotNil(t, detail.Result)
	assert.Equal(t, 0.75, detail.Result.Score)
	assert.Equal(t, []pdfquiz.Label{pdfquiz.LabelA, pdfquiz.LabelB, pdfquiz.LabelD, pdfquiz.LabelD}, detail.Result.Answers)

	state = env.action(t, cookies, quiz.ID, "reset", "")
	assert.False(t, state.Submitted)
	assert.Equal(t, 0, state.CurrentIndex)
	assert.Nil(t, state.Score)
}

func TestAttemptActionErrors(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user-1")
	quiz := env.seedQuiz(t, "user-1")

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/quizzes/"+quiz.ID+"/attempt/next", nil), cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/quizzes/"+quiz.ID+"/attempt", nil), cookies)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/quizzes/"+quiz.ID+"/attempt/answer", strings.NewReader("label=E"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = env.do(t, req, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/quizzes/"+quiz.ID+"/attempt/jump", nil), cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuizzesAreScopedToUser(t *testing.T) {
	env := newTestEnv(t)
	quiz := env.seedQuiz(t, "user-1")
	other := env.login(t, "user-2")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/quizzes/"+quiz.ID, nil), other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/quizzes/"+quiz.ID+"/attempt", nil), other)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/quizzes/"+quiz.ID, nil), other)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndDeleteQuizzes(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user-1")
	quiz := env.seedQuiz(t, "user-1")
	env.seedQuiz(t, "user-1")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/quizzes?status=unanswered&sort=title_asc", nil), cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Quizzes []pdfquiz.QuizHistory `json:"quizzes"`
		Total   int                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Quizzes, 2)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/quizzes/"+quiz.ID, nil), cookies)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/quizzes/"+quiz.ID, nil), cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateQuizRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user-1")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text pretending to be a pdf"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/quizzes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(t, req, cookies)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func uploadRequest(t *testing.T, fileName string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/quizzes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreateQuizFromPDF(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user-1")

	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "photosynthesis.pdf"))
	require.NoError(t, err)

	rec := env.do(t, uploadRequest(t, "photosynthesis.pdf", data), cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var quiz pdfquiz.QuizHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quiz))
	assert.NotEmpty(t, quiz.ID)
	assert.Equal(t, "photosynthesis", quiz.DocTitle)
	assert.Len(t, quiz.Questions, 4)

	stored, err := env.db.GetQuizHistory(context.Background(), quiz.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, testQuestions(), stored.Questions)
}

func TestCreateQuizRejectsOversizedUpload(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user-1")

	// past the upload limit plus the form overhead allowance
	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 3<<20)...)
	rec := env.do(t, uploadRequest(t, "huge.pdf", data), cookies)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCreateQuizRequiresMultipart(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/quizzes", strings.NewReader(`{"file":"notes.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateQuizRequiresFile(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user-1")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "nothing attached"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/quizzes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(t, req, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "user-1")

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/logout", nil), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
