package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/repositories"
)

const (
	defaultAPIBaseURL    = "https://api.vapi.ai"
	defaultVoiceProvider = "11labs"
	defaultVoiceID       = "21m00Tcm4TlvDq8ikWAM" // Rachel voice
	defaultModelProvider = "openai"
	defaultModel         = "gpt-4o-mini"

	transportProvider = "vapi.websocket"
	requestTimeout    = 15 * time.Second
)

// Config holds configuration for the Vapi adapter
// Required fields:
// - APIKey: Vapi private API key
// Optional fields fall back to the defaults above.
type Config struct {
	APIKey        string
	APIBaseURL    string
	VoiceProvider string
	VoiceID       string
	ModelProvider string
	Model         string
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("vapi API key is required")
	}
	if config.APIBaseURL != "" && !strings.HasPrefix(config.APIBaseURL, "http") {
		return fmt.Errorf("vapi base URL must be http(s), got %q", config.APIBaseURL)
	}
	return nil
}

// Provider implements repositories.VoiceProvider on top of the Vapi call API
// with the websocket transport
type Provider struct {
	apiKey        string
	apiBaseURL    string
	voiceProvider string
	voiceID       string
	modelProvider string
	model         string

	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *zap.Logger
}

// Ensure Provider implements the VoiceProvider interface
var _ repositories.VoiceProvider = (*Provider)(nil)

// NewProvider creates a new Vapi voice provider
func NewProvider(config Config, logger *zap.Logger) (*Provider, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	p := &Provider{
		apiKey:        config.APIKey,
		apiBaseURL:    strings.TrimRight(config.APIBaseURL, "/"),
		voiceProvider: config.VoiceProvider,
		voiceID:       config.VoiceID,
		modelProvider: config.ModelProvider,
		model:         config.Model,
		httpClient:    &http.Client{Timeout: requestTimeout},
		dialer:        &websocket.Dialer{HandshakeTimeout: requestTimeout},
		logger:        logger,
	}

	if p.apiBaseURL == "" {
		p.apiBaseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", p.apiBaseURL))
	}
	if p.voiceProvider == "" {
		p.voiceProvider = defaultVoiceProvider
	}
	if p.voiceID == "" {
		p.voiceID = defaultVoiceID
		logger.Info("Using default voice ID", zap.String("voiceID", p.voiceID))
	}
	if p.modelProvider == "" {
		p.modelProvider = defaultModelProvider
	}
	if p.model == "" {
		p.model = defaultModel
		logger.Info("Using default model", zap.String("model", p.model))
	}

	return p, nil
}

type modelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type assistantModel struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Messages []modelMessage `json:"messages"`
}

type assistantVoice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type assistant struct {
	FirstMessage     string         `json:"firstMessage"`
	FirstMessageMode string         `json:"firstMessageMode"`
	Model            assistantModel `json:"model"`
	Voice            assistantVoice `json:"voice"`
}

type audioFormat struct {
	Format     string `json:"format"`
	Container  string `json:"container"`
	SampleRate int    `json:"sampleRate"`
}

type transport struct {
	Provider         string       `json:"provider"`
	AudioFormat      *audioFormat `json:"audioFormat,omitempty"`
	WebsocketCallURL string       `json:"websocketCallUrl,omitempty"`
}

// CreateCallRequest is the payload of POST /call
type CreateCallRequest struct {
	Assistant assistant         `json:"assistant"`
	Transport transport         `json:"transport"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CreateCallResponse is the subset of the created call this adapter uses
type CreateCallResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Transport transport `json:"transport"`
	Monitor   struct {
		ListenURL  string `json:"listenUrl"`
		ControlURL string `json:"controlUrl"`
	} `json:"monitor"`
}

// Start implements repositories.VoiceProvider
func (p *Provider) Start(ctx context.Context, req repositories.CallRequest, listener repositories.CallListener) (repositories.VoiceCall, error) {
	if strings.TrimSpace(req.FirstMessage) == "" {
		return nil, fmt.Errorf("first message cannot be empty")
	}

	payload := CreateCallRequest{
		Assistant: assistant{
			FirstMessage:     req.FirstMessage,
			FirstMessageMode: "assistant-speaks-first",
			Model: assistantModel{
				Provider: p.modelProvider,
				Model:    p.model,
				Messages: []modelMessage{{Role: "system", Content: req.SystemPrompt}},
			},
			Voice: assistantVoice{Provider: p.voiceProvider, VoiceID: p.voiceID},
		},
		Transport: transport{
			Provider:    transportProvider,
			AudioFormat: &audioFormat{Format: "pcm_s16le", Container: "raw", SampleRate: 16000},
		},
		Metadata: req.Metadata,
	}

	created, err := p.createCall(ctx, payload)
	if err != nil {
		return nil, err
	}
	if created.Transport.WebsocketCallURL == "" {
		return nil, fmt.Errorf("vapi call %s has no websocket URL", created.ID)
	}

	conn, _, err := p.dialer.DialContext(ctx, created.Transport.WebsocketCallURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to call %s: %w", created.ID, err)
	}

	p.logger.Info("Vapi call created",
		zap.String("vapiCallID", created.ID),
		zap.Bool("controllable", created.Monitor.ControlURL != ""))

	c := newCall(created.ID, conn, created.Monitor.ControlURL, p.httpClient, listener, p.logger)
	go c.readPump()
	return c, nil
}

func (p *Provider) createCall(ctx context.Context, payload CreateCallRequest) (CreateCallResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return CreateCallResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.apiBaseURL + "/call"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return CreateCallResponse{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	p.logger.Debug("Sending request to Vapi API", zap.String("url", url))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return CreateCallResponse{}, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(resp.Body)
		return CreateCallResponse{}, fmt.Errorf("API returned error %d: %s", resp.StatusCode, strings.TrimSpace(string(errorBody)))
	}

	var created CreateCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return CreateCallResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return created, nil
}
