package pdfquiz

import (
	"context"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const maxTitleLen = 80

// TitleGenerator names quizzes after the uploaded document
type TitleGenerator struct {
	client *openai.Client
	model  string
}

// NewTitleGenerator creates a new title generator with OpenAI client
func NewTitleGenerator(apiKey, model string) *TitleGenerator {
	return NewTitleGeneratorWithClient(openai.NewClient(apiKey), model)
}

// NewTitleGeneratorWithClient uses an existing client
func NewTitleGeneratorWithClient(client *openai.Client, model string) *TitleGenerator {
	if model == "" {
		model = openai.GPT4o
	}
	return &TitleGenerator{client: client, model: model}
}

// GenerateTitle returns a short title for a quiz built from fileName.
// It never fails: any model error falls back to the file name.
func (tg *TitleGenerator) GenerateTitle(ctx context.Context, fileName string) string {
	fallback := FallbackTitle(fileName)

	resp, err := tg.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: tg.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "Generate a title for a quiz based on the following (PDF) file name. " +
					"Try and extract as much info from the file name as possible. " +
					"If the file name is just numbers or incoherent, just return quiz. " +
					"Reply with the title only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fileName,
			},
		},
		MaxTokens: 32,
	})
	if err != nil {
		VerboseLog("Title generation failed for %q: %v", fileName, err)
		return fallback
	}
	if len(resp.Choices) == 0 {
		return fallback
	}

	title := cleanTitle(resp.Choices[0].Message.Content)
	if title == "" {
		return fallback
	}
	return title
}

// FallbackTitle derives a title from the file name alone
func FallbackTitle(fileName string) string {
	base := filepath.Base(fileName)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.NewReplacer("_", " ", "-", " ").Replace(title)
	title = strings.Join(strings.Fields(title), " ")
	if title == "" || title == "." {
		return "Quiz"
	}
	return cleanTitle(title)
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	s = strings.TrimSpace(strings.TrimPrefix(s, "Title:"))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if r := []rune(s); len(r) > maxTitleLen {
		s = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	return s
}
