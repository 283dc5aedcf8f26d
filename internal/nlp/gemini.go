package nlp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

// GeminiClassifier asks a Gemini model for an intent and slots as a JSON object.
type GeminiClassifier struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	intents  []string
	language string
	now      func() time.Time

	// generate is replaced in tests.
	generate func(ctx context.Context, system, text string) (string, error)
}

var _ Classifier = (*GeminiClassifier)(nil)

// NewGeminiClassifier builds a classifier that answers with one of intents.
func NewGeminiClassifier(ctx context.Context, apiKey, modelID, language string, intents []string) (*GeminiClassifier, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("nlp: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("nlp: create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelID)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = responseSchema(intents)

	c := &GeminiClassifier{
		client:   client,
		model:    model,
		intents:  intents,
		language: language,
		now:      time.Now,
	}
	c.generate = c.generateContent
	return c, nil
}

func responseSchema(intents []string) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"intent":   {Type: genai.TypeString, Enum: intents},
			"date":     {Type: genai.TypeString, Description: "First date mentioned, YYYY-MM-DD"},
			"date1":    {Type: genai.TypeString, Description: "Second date mentioned, YYYY-MM-DD"},
			"duration": {Type: genai.TypeString, Description: "Number of days mentioned, digits only"},
		},
		Required: []string{"intent"},
	}
}

func (c *GeminiClassifier) Classify(ctx context.Context, text string) (Result, error) {
	raw, err := c.generate(ctx, c.systemPrompt(), text)
	if err != nil {
		return Result{}, err
	}
	return ParseResult(raw)
}

func (c *GeminiClassifier) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You classify messages sent to an annual-leave assistant.\n")
	fmt.Fprintf(&b, "Messages are written in %q. Today is %s.\n", c.language, c.now().Format("Monday 2006-01-02"))
	b.WriteString("Answer with a JSON object with an \"intent\" field set to exactly one of:\n")
	for _, name := range c.intents {
		b.WriteString("- " + name + "\n")
	}
	fmt.Fprintf(&b, "Use %s when none fits or the message is not understandable.\n", FallbackIntent)
	b.WriteString("When the message mentions dates, resolve them against today and set \"date\" and \"date1\" in the order mentioned. ")
	b.WriteString("When it mentions a number of days, set \"duration\". Omit fields the message does not mention.")
	return b.String()
}

func (c *GeminiClassifier) generateContent(ctx context.Context, system, text string) (string, error) {
	// Work on a copy so concurrent turns do not share SystemInstruction.
	model := *c.model
	model.SystemInstruction = genai.NewUserContent(genai.Text(system))

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("nlp: gemini classification failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out.WriteString(string(t))
		}
	}
	return out.String(), nil
}

func (c *GeminiClassifier) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
