package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"pdfquiz"
)

var errQuit = errors.New("quit")

// play drives session from line-based input until the user leaves the results screen
func play(in io.Reader, out io.Writer, session *pdfquiz.QuizSession) error {
	scanner := bufio.NewScanner(in)

	for {
		if err := answerQuestions(scanner, out, session); err != nil {
			if errors.Is(err, errQuit) {
				fmt.Fprintln(out, "👋 Bye!")
				return nil
			}
			return err
		}

		printResults(out, session)

		fmt.Fprint(out, "Press r to retry, anything else to quit: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if strings.ToLower(strings.TrimSpace(scanner.Text())) != "r" {
			return nil
		}
		session.Reset()
		fmt.Fprintln(out)
	}
}

func answerQuestions(scanner *bufio.Scanner, out io.Writer, session *pdfquiz.QuizSession) error {
	for !session.Submitted() {
		printQuestion(out, session)

		last := session.CurrentIndex() == session.Len()-1
		next := "n=next"
		if last {
			next = "n=submit"
		}
		fmt.Fprintf(out, "Answer (A/B/C/D), %s, p=previous, q=quit: ", next)

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return errQuit
		}
		input := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(input) {
		case "q":
			return errQuit
		case "p":
			session.PreviousQuestion()
		case "n", "":
			if !session.CanAdvance() {
				fmt.Fprintln(out, "Please select an answer first")
				continue
			}
			session.NextQuestion()
		default:
			label, ok := pdfquiz.ParseLabel(input)
			if !ok {
				fmt.Fprintln(out, "Please enter A, B, C, or D")
				continue
			}
			session.SelectAnswer(label)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func printQuestion(out io.Writer, session *pdfquiz.QuizSession) {
	q, ok := session.CurrentQuestion()
	if !ok {
		return
	}
	selected := session.Answers()[session.CurrentIndex()]

	fmt.Fprintf(out, "Question %d/%d (%.0f%%):\n", session.CurrentIndex()+1, session.Len(), session.Progress())
	fmt.Fprintf(out, "%s\n\n", q.Question)
	for i, option := range q.Options {
		marker := " "
		if pdfquiz.Labels[i] == selected {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s) %s\n", marker, pdfquiz.Labels[i], option)
	}
	fmt.Fprintln(out)
}

func printResults(out io.Writer, session *pdfquiz.QuizSession) {
	state := session.Snapshot()

	fmt.Fprintln(out, "🎉 Quiz completed!")
	fmt.Fprintln(out)
	for i, item := range state.Review {
		if item.Correct {
			fmt.Fprintf(out, "✅ %d. %s\n", i+1, item.Question)
			continue
		}
		selected := "no answer"
		if item.Selected != pdfquiz.LabelNone {
			selected = string(item.Selected)
		}
		fmt.Fprintf(out, "❌ %d. %s\n   yours: %s, correct: %s) %s\n",
			i+1, item.Question, selected, item.Answer, item.Options[item.Answer.Index()])
	}

	score, _ := session.Score()
	normalized, _ := session.NormalizedScore()
	fmt.Fprintf(out, "\n🏆 Score: %d/%d (%.1f%%)\n", score, session.Len(), normalized*100)

	switch {
	case normalized >= 0.8:
		fmt.Fprintln(out, "🌟 Excellent work!")
	case normalized >= 0.6:
		fmt.Fprintln(out, "👍 Good job!")
	default:
		fmt.Fprintln(out, "📚 Keep studying!")
	}

	if session.Saving() {
		fmt.Fprintln(out, "Saving score...")
		session.Wait()
	}
	fmt.Fprintln(out)
}
