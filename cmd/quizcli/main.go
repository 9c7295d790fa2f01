package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"pdfquiz"
)

func main() {
	var (
		pdfPath       = flag.String("pdf", "", "PDF document to generate questions from")
		questionsPath = flag.String("questions", "", "JSON file with a question array (skips generation)")
		outputFile    = flag.String("output", "", "Write the generated questions to this JSON file")
		apiKey        = flag.String("api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		model         = flag.String("model", "gpt-4o", "OpenAI model")
		numQuestions  = flag.Int("questions-count", pdfquiz.DefaultNumQuestions, "Number of questions to generate")
		dbDriver      = flag.String("db-driver", pdfquiz.DriverSQLite, "Database driver (sqlite3 or pgx)")
		dbDSN         = flag.String("db", "", "Database DSN; results are only saved when set")
		userID        = flag.String("user", "", "User id the quiz and results belong to")
		quizID        = flag.String("quiz-id", "", "Play a stored quiz (requires -db and -user)")
		verbose       = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	pdfquiz.SetVerbose(*verbose)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var db *pdfquiz.DB
	if *dbDSN != "" {
		var err error
		db, err = pdfquiz.OpenDB(ctx, *dbDriver, *dbDSN)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}

	var (
		questions []pdfquiz.Question
		id        string
	)

	switch {
	case *quizID != "":
		if db == nil || *userID == "" {
			log.Fatal("-quiz-id requires -db and -user")
		}
		quiz, err := db.GetQuizHistory(ctx, *quizID, *userID)
		if err != nil {
			log.Fatalf("Failed to load quiz: %v", err)
		}
		questions, id = quiz.Questions, quiz.ID
		fmt.Printf("📚 %s\n", quiz.DocTitle)

	case *questionsPath != "":
		var err error
		questions, err = loadQuestions(*questionsPath)
		if err != nil {
			log.Fatalf("Failed to load questions: %v", err)
		}

	case *pdfPath != "":
		key := *apiKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			log.Fatal("OpenAI API key is required. Use -api-key flag or set OPENAI_API_KEY environment variable.")
		}

		f, err := os.Open(*pdfPath)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", *pdfPath, err)
		}
		doc, err := pdfquiz.ReadDocument(filepath.Base(*pdfPath), "application/pdf", f, 5<<20)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to read document: %v", err)
		}

		// only stored quizzes have an id, so results are saved only with -db and -user
		var store pdfquiz.HistoryStore
		if db != nil && *userID != "" {
			store = db
		}
		generator := pdfquiz.NewQuizGenerator(
			pdfquiz.NewQuestionMaker(key, *model, ""),
			pdfquiz.NewTitleGenerator(key, *model),
			store,
			*numQuestions,
		)

		fmt.Println("⏳ Generating questions... (this may take a moment)")
		quiz, err := generator.GenerateQuiz(ctx, *userID, doc)
		if err != nil {
			log.Fatalf("Failed to generate quiz: %v", err)
		}
		questions = quiz.Questions
		if store != nil {
			id = quiz.ID
		}
		fmt.Printf("📚 %s\n", quiz.DocTitle)

	default:
		log.Fatal("One of -pdf, -questions or -quiz-id is required")
	}

	if *outputFile != "" {
		output, err := json.MarshalIndent(questions, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal questions: %v", err)
		}
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			log.Fatalf("Failed to write output file: %v", err)
		}
		log.Printf("Questions saved to: %s", *outputFile)
	}

	opts := pdfquiz.SessionOptions{
		QuizID:        id,
		Identity:      pdfquiz.Identity{UserID: *userID},
		RequireAnswer: true,
		OnSaveError: func(err error) {
			fmt.Fprintf(os.Stderr, "⚠️  Your score could not be saved: %v\n", err)
		},
	}
	if db != nil {
		opts.Sink = db
	}
	session := pdfquiz.NewQuizSession(questions, opts)
	if session.QuizID() == "" {
		fmt.Println("🎯 Practice mode: results will not be saved")
	}
	if err := play(os.Stdin, os.Stdout, session); err != nil {
		log.Fatalf("Quiz aborted: %v", err)
	}
}

func loadQuestions(path string) ([]pdfquiz.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var questions []pdfquiz.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := pdfquiz.ValidateQuestions(questions, len(questions)); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%s has no questions", path)
	}
	return questions, nil
}
