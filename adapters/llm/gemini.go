package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultMaxTokens      = 4096
	defaultTimeoutSeconds = 60

	maxAttempts = 3
)

const notesSystemPrompt = `You write speaker notes for presentation slides.
The notes are read aloud word for word by a voice assistant.
Write 60 to 120 words of plain conversational prose. No markdown, no bullet points, no stage directions.`

const deckSystemPrompt = `You draft presentations.
Every slide has a short title, three to five concise bullet points and speaker notes of 60 to 120 words
written as plain conversational prose that can be read aloud word for word.`

// GeminiConfig holds configuration for the Gemini generator
// Required fields:
// - APIKey: Google AI API key
// Optional fields fall back to the defaults above.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	return nil
}

// contentModel is the part of the genai client the generator calls
type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements repositories.NotesGenerator using Google's Gemini API
type GeminiGenerator struct {
	models          contentModel
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	timeout         time.Duration
	retryDelay      time.Duration
}

// Ensure GeminiGenerator implements the NotesGenerator interface
var _ repositories.NotesGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new Gemini generator
func NewGeminiGenerator(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiGenerator, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiGenerator(client.Models, config, logger), nil
}

func newGeminiGenerator(models contentModel, config GeminiConfig, logger *zap.Logger) *GeminiGenerator {
	g := &GeminiGenerator{
		models:          models,
		logger:          logger,
		model:           config.Model,
		temperature:     config.Temperature,
		maxOutputTokens: config.MaxOutputTokens,
		timeout:         time.Duration(config.TimeoutSeconds) * time.Second,
		retryDelay:      time.Second,
	}

	if g.model == "" {
		g.model = defaultModel
		logger.Info("Using default model", zap.String("model", g.model))
	}
	if g.temperature == 0 {
		g.temperature = defaultTemperature
		logger.Info("Using default temperature", zap.Float32("temperature", g.temperature))
	}
	if g.maxOutputTokens == 0 {
		g.maxOutputTokens = defaultMaxTokens
	}
	if g.timeout == 0 {
		g.timeout = defaultTimeoutSeconds * time.Second
	}

	return g
}

// GenerateNotes implements repositories.NotesGenerator
func (g *GeminiGenerator) GenerateNotes(ctx context.Context, deckTitle string, slide entities.Slide) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Presentation: %s\n", deckTitle)
	fmt.Fprintf(&prompt, "Slide title: %s\n", slide.Title)
	if len(slide.Content) > 0 {
		prompt.WriteString("Slide bullets:\n")
		for _, line := range slide.Content {
			fmt.Fprintf(&prompt, "- %s\n", line)
		}
	}
	if notes := strings.TrimSpace(slide.Notes); notes != "" {
		fmt.Fprintf(&prompt, "Existing draft notes: %s\n", notes)
	}
	prompt.WriteString("Write the speaker notes for this slide.")

	text, err := g.generate(ctx, notesSystemPrompt, prompt.String(), nil)
	if err != nil {
		return "", err
	}

	notes := strings.TrimSpace(text)
	if notes == "" {
		return "", fmt.Errorf("gemini returned empty notes for slide %q", slide.ID)
	}

	g.logger.Info("Generated slide notes",
		zap.String("slideId", slide.ID),
		zap.Int("length", len(notes)))
	return notes, nil
}

type generatedDeck struct {
	Title  string `json:"title"`
	Slides []struct {
		Title   string   `json:"title"`
		Content []string `json:"content"`
		Notes   string   `json:"notes"`
	} `json:"slides"`
}

var deckSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title": {Type: genai.TypeString},
		"slides": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":   {Type: genai.TypeString},
					"content": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"notes":   {Type: genai.TypeString},
				},
				Required: []string{"title", "content", "notes"},
			},
		},
	},
	Required: []string{"title", "slides"},
}

// GenerateDeck implements repositories.NotesGenerator
func (g *GeminiGenerator) GenerateDeck(ctx context.Context, topic string, slideCount int) (entities.Deck, error) {
	prompt := fmt.Sprintf("Create a presentation about %q with exactly %d slides.", topic, slideCount)

	text, err := g.generate(ctx, deckSystemPrompt, prompt, deckSchema)
	if err != nil {
		return entities.Deck{}, err
	}

	deck, err := parseDeck(text)
	if err != nil {
		return entities.Deck{}, err
	}
	if deck.Title == "" {
		deck.Title = topic
	}

	g.logger.Info("Generated deck",
		zap.String("topic", topic),
		zap.Int("requested", slideCount),
		zap.Int("slides", len(deck.Slides)))
	return deck, nil
}

// parseDeck decodes a JSON deck and gives every slide a fresh id
func parseDeck(text string) (entities.Deck, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var raw generatedDeck
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return entities.Deck{}, fmt.Errorf("failed to decode generated deck: %w", err)
	}
	if len(raw.Slides) == 0 {
		return entities.Deck{}, fmt.Errorf("generated deck has no slides")
	}

	deck := entities.Deck{Title: strings.TrimSpace(raw.Title)}
	for _, s := range raw.Slides {
		deck.Slides = append(deck.Slides, entities.Slide{
			ID:      uuid.NewString(),
			Title:   strings.TrimSpace(s.Title),
			Content: s.Content,
			Notes:   strings.TrimSpace(s.Notes),
		})
	}
	return deck, nil
}

// generate runs one prompt with retries and returns the concatenated text parts
func (g *GeminiGenerator) generate(ctx context.Context, systemPrompt, prompt string, schema *genai.Schema) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   int32(g.maxOutputTokens),
	}
	if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = g.models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("gemini request cancelled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt+1) * g.retryDelay):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("gemini request failed after %d attempts: %w", maxAttempts, err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return text.String(), nil
}
