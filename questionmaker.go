package pdfquiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// QuestionSource supplies an ordered, validated question set for a document
type QuestionSource interface {
	GenerateQuestions(ctx context.Context, req GenerationRequest) ([]Question, error)
}

// MaxSourceChars caps how much document text is sent to the model
const MaxSourceChars = 60000

const submitQuestionsTool = "submit_questions"

// QuestionMaker generates questions from document text with an OpenAI chat model
type QuestionMaker struct {
	client *openai.Client
	model  string
	logDir string
}

// NewQuestionMaker creates a new question maker with OpenAI client.
// When logDir is not empty every request and response is written to a per-quiz log file.
func NewQuestionMaker(apiKey, model, logDir string) *QuestionMaker {
	return NewQuestionMakerWithClient(openai.NewClient(apiKey), model, logDir)
}

// NewQuestionMakerWithClient uses an existing client, e.g. one pointed at another base URL
func NewQuestionMakerWithClient(client *openai.Client, model, logDir string) *QuestionMaker {
	if model == "" {
		model = openai.GPT4o
	}
	return &QuestionMaker{client: client, model: model, logDir: logDir}
}

// GenerateQuestions asks the model for req.NumQuestions questions about the document
func (qm *QuestionMaker) GenerateQuestions(ctx context.Context, req GenerationRequest) ([]Question, error) {
	if req.NumQuestions <= 0 {
		req.NumQuestions = DefaultNumQuestions
	}
	if strings.TrimSpace(req.SourceMaterial) == "" {
		return nil, fmt.Errorf("failed to generate questions: document %q has no text", req.FileName)
	}

	log.Printf("Generating %d questions for document: %s", req.NumQuestions, req.FileName)

	var logger *LLMLogger
	if qm.logDir != "" && req.QuizID != "" {
		l, err := NewLLMLogger(qm.logDir, req.QuizID, req)
		if err != nil {
			log.Printf("Failed to create logger for quiz %s: %v", req.QuizID, err)
		} else {
			logger = l
			defer logger.Close()
		}
	}

	prompt := qm.buildPrompt(req)
	if logger != nil {
		logger.LogLLMRequest("QuestionMaker", prompt)
	}

	resp, err := qm.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: qm.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are a teacher. Your job is to take a document and create a multiple choice test " +
					"based on its content. Each option should be roughly equal in length.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        submitQuestionsTool,
					Description: "Submit generated quiz questions",
					Parameters:  questionsSchema(req.NumQuestions),
				},
			},
		},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: submitQuestionsTool},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	VerboseLog("Received response with %d choices", len(resp.Choices))

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}
	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("no tool calls in response")
	}
	toolCall := choice.Message.ToolCalls[0]
	if toolCall.Function.Name != submitQuestionsTool {
		return nil, fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}

	if logger != nil {
		logger.LogLLMResponse("QuestionMaker", toolCall.Function.Arguments)
	}

	questions, err := parseQuestionsArguments(toolCall.Function.Arguments)
	if err != nil {
		return nil, err
	}
	if err := ValidateQuestions(questions, req.NumQuestions); err != nil {
		if logger != nil {
			logger.Logf("Rejected generated questions: %v\n", err)
		}
		return nil, err
	}

	log.Printf("Generated %d questions", len(questions))
	return questions, nil
}

func (qm *QuestionMaker) buildPrompt(req GenerationRequest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Create a multiple choice test of exactly %d questions from the document %q.\n\n",
		req.NumQuestions, req.FileName))

	sb.WriteString("Document text:\n")
	sb.WriteString(truncateText(req.SourceMaterial, MaxSourceChars))
	sb.WriteString("\n\n")

	sb.WriteString("Requirements:\n")
	sb.WriteString("- Each question must have exactly 4 options\n")
	sb.WriteString("- The answer is the letter of the correct option: A, B, C or D\n")
	sb.WriteString("- Questions must be answerable from the document alone\n")
	sb.WriteString("- Incorrect options should be plausible but clearly wrong\n")
	sb.WriteString(fmt.Sprintf("- Use the %s tool to return your questions\n", submitQuestionsTool))

	return sb.String()
}

func questionsSchema(n int) map[string]interface{} {
	labels := make([]string, len(Labels))
	for i, l := range Labels {
		labels[i] = string(l)
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"questions": map[string]interface{}{
				"type":     "array",
				"minItems": n,
				"maxItems": n,
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"question": map[string]interface{}{
							"type":        "string",
							"description": "The question text",
						},
						"options": map[string]interface{}{
							"type":        "array",
							"items":       map[string]interface{}{"type": "string"},
							"minItems":    len(Labels),
							"maxItems":    len(Labels),
							"description": "Four possible answers to the question",
						},
						"answer": map[string]interface{}{
							"type":        "string",
							"enum":        labels,
							"description": "The correct answer, where A is the first option, B the second, and so on",
						},
					},
					"required": []string{"question", "options", "answer"},
				},
			},
		},
		"required": []string{"questions"},
	}
}

func parseQuestionsArguments(arguments string) ([]Question, error) {
	var toolArgs struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(arguments), &toolArgs); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	for i := range toolArgs.Questions {
		if l, ok := ParseLabel(string(toolArgs.Questions[i].Answer)); ok {
			toolArgs.Questions[i].Answer = l
		}
	}
	return toolArgs.Questions, nil
}
