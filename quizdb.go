package pdfquiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a quiz or result does not exist for the user
var ErrNotFound = errors.New("not found")

// DB stores quiz histories and submitted answers. It works with both the
// sqlite3 and the pgx (Postgres) drivers.
type DB struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// OpenDB opens a new database connection and makes sure the schema exists
func OpenDB(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &DB{db: db, driver: driver, now: time.Now}
	if err := store.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// sqliteDSN turns on foreign key enforcement, which sqlite leaves off per connection
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.db.Close()
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables(ctx context.Context) error {
	scoreType := "REAL"
	if db.driver == DriverPostgres {
		scoreType = "DOUBLE PRECISION"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS quiz_histories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			doc_title TEXT NOT NULL,
			questions TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_histories_user ON quiz_histories(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS quiz_answers (
			id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL REFERENCES quiz_histories(id),
			user_id TEXT NOT NULL,
			answers TEXT NOT NULL,
			score ` + scoreType + ` NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_answers_quiz_user ON quiz_answers(quiz_id, user_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// CreateQuizHistory stores a generated quiz. An empty ID is filled in.
func (db *DB) CreateQuizHistory(ctx context.Context, quiz *QuizHistory) error {
	if quiz.UserID == "" {
		return fmt.Errorf("failed to create quiz: user id is required")
	}
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = db.now()
	}

	questionsJSON, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}

	_, err = db.db.ExecContext(ctx,
		"INSERT INTO quiz_histories (id, user_id, doc_title, questions, created_at) VALUES ($1, $2, $3, $4, $5)",
		quiz.ID, quiz.UserID, quiz.DocTitle, string(questionsJSON), quiz.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}
	return nil
}

// GetQuizHistory retrieves a quiz owned by userID
func (db *DB) GetQuizHistory(ctx context.Context, id, userID string) (*QuizHistory, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT h.id, h.user_id, h.doc_title, h.questions, h.created_at,
			(SELECT a.score FROM quiz_answers a WHERE a.quiz_id = h.id AND a.user_id = h.user_id
				ORDER BY a.created_at DESC LIMIT 1)
		FROM quiz_histories h WHERE h.id = $1 AND h.user_id = $2`,
		id, userID,
	)
	quiz, err := scanQuizHistory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return quiz, nil
}

// ListQuizHistories retrieves all quizzes of a user, newest first
func (db *DB) ListQuizHistories(ctx context.Context, userID string) ([]QuizHistory, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT h.id, h.user_id, h.doc_title, h.questions, h.created_at,
			(SELECT a.score FROM quiz_answers a WHERE a.quiz_id = h.id AND a.user_id = h.user_id
				ORDER BY a.created_at DESC LIMIT 1)
		FROM quiz_histories h WHERE h.user_id = $1 ORDER BY h.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []QuizHistory
	for rows.Next() {
		quiz, err := scanQuizHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		quizzes = append(quizzes, *quiz)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quizzes: %w", err)
	}
	return quizzes, nil
}

// DeleteQuizHistory deletes a quiz and every answer submitted for it
func (db *DB) DeleteQuizHistory(ctx context.Context, id, userID string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, "SELECT user_id FROM quiz_histories WHERE id = $1", id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM quiz_answers WHERE quiz_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete quiz answers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM quiz_histories WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// SaveResult stores a submitted attempt
func (db *DB) SaveResult(ctx context.Context, answer QuizAnswer) error {
	if answer.QuizID == "" || answer.UserID == "" {
		return fmt.Errorf("failed to save answers: quiz id and user id are required")
	}
	if answer.Score < 0 || answer.Score > 1 {
		return fmt.Errorf("failed to save answers: score %v out of range", answer.Score)
	}
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = db.now()
	}

	answersJSON, err := json.Marshal(answer.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	_, err = db.db.ExecContext(ctx,
		"INSERT INTO quiz_answers (id, quiz_id, user_id, answers, score, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		answer.ID, answer.QuizID, answer.UserID, string(answersJSON), answer.Score, answer.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save answers: %w", err)
	}
	return nil
}

// GetResult retrieves the most recent attempt of a user for a quiz
func (db *DB) GetResult(ctx context.Context, quizID, userID string) (*QuizAnswer, error) {
	var (
		answer      QuizAnswer
		answersJSON string
		createdAt   int64
	)
	err := db.db.QueryRowContext(ctx,
		`SELECT id, quiz_id, user_id, answers, score, created_at FROM quiz_answers
		WHERE quiz_id = $1 AND user_id = $2 ORDER BY created_at DESC LIMIT 1`,
		quizID, userID,
	).Scan(&answer.ID, &answer.QuizID, &answer.UserID, &answersJSON, &answer.Score, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("result for quiz %s: %w", quizID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if err := json.Unmarshal([]byte(answersJSON), &answer.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	answer.CreatedAt = time.Unix(0, createdAt)
	return &answer, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuizHistory(row rowScanner) (*QuizHistory, error) {
	var (
		quiz          QuizHistory
		questionsJSON string
		createdAt     int64
		latest        sql.NullFloat64
	)
	if err := row.Scan(&quiz.ID, &quiz.UserID, &quiz.DocTitle, &questionsJSON, &createdAt, &latest); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questionsJSON), &quiz.Questions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	quiz.CreatedAt = time.Unix(0, createdAt)
	if latest.Valid {
		score := latest.Float64
		quiz.LatestScore = &score
	}
	return &quiz, nil
}
