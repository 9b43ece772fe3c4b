package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/username/goldfolio/backend/src/config"
	"github.com/username/goldfolio/backend/src/logger"
	"github.com/username/goldfolio/backend/src/models"
	"github.com/username/goldfolio/backend/src/resilience"
)

const classifierSystemPrompt = "You are a financial advisor specializing in gold investments. Analyze questions and provide accurate, helpful responses."

const classifierUserPromptTemplate = `Analyze the following user question and determine if it's related to gold investment.

Question: %q

Respond with a JSON object only, no other text:
{
  "isGoldRelated": true/false,
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation",
  "suggestedAction": "PURCHASE_GOLD" or "REDIRECT_TO_OTHER_API" or "GENERAL_INFO",
  "aiResponse": "appropriate response to the user"
}

Gold investment topics include gold prices and market trends, investment
strategies, digital gold purchase, gold ETFs and mutual funds, jewelry,
mining stocks, storage, gold IRAs, and gold versus other investments.
Non-gold topics include other commodities, stocks, bonds, real estate,
cryptocurrency, and general financial advice not specific to gold.`

// Keyword floor for when the remote model is unreachable or returns garbage.
var goldKeywords = []string{
	"gold", "golden", "bullion", "precious metal", "digital gold",
	"gold investment", "gold price", "gold market", "gold etf",
	"gold mutual fund", "gold ira", "gold jewelry", "gold coins",
	"gold bars", "gold mining", "gold stock", "gold fund",
}

// modelDecision is the strict response-shape contract expected from the model.
type modelDecision struct {
	IsGoldRelated   bool    `json:"isGoldRelated"`
	Confidence      float64 `json:"confidence"`
	Reasoning       string  `json:"reasoning"`
	SuggestedAction string  `json:"suggestedAction"`
	AIResponse      string  `json:"aiResponse"`
}

type classifierServiceImpl struct {
	client   *openai.Client
	registry *ModelRegistry
}

// NewClassifierService builds the classifier against OpenRouter's
// OpenAI-compatible API. With no API key configured the client stays nil and
// every classification uses the heuristic.
func NewClassifierService(registry *ModelRegistry) ClassifierService {
	var client *openai.Client
	if config.Cfg.OpenRouterAPIKey != "" {
		clientCfg := openai.DefaultConfig(config.Cfg.OpenRouterAPIKey)
		clientCfg.BaseURL = config.Cfg.OpenRouterBaseURL
		client = openai.NewClientWithConfig(clientCfg)
	} else {
		logger.L.Warn("OPENROUTER_API_KEY not configured, classifier will use the keyword heuristic only")
	}
	return &classifierServiceImpl{client: client, registry: registry}
}

// Classify never fails: the remote model is preferred, the keyword heuristic
// is the guaranteed floor.
func (c *classifierServiceImpl) Classify(ctx context.Context, question string) Classification {
	start := time.Now()

	chain := resilience.Chain[Classification]{
		Name:           "classifier",
		AttemptTimeout: config.Cfg.ClassifierTimeout,
		Fallback: func() (Classification, string) {
			return c.heuristic(question), models.DecisionSourceHeuristic
		},
	}
	if c.client != nil {
		modelID, settings := c.registry.Current()
		chain.Attempts = []resilience.Attempt[Classification]{{
			Name: modelID,
			Run: func(ctx context.Context) (Classification, error) {
				return c.classifyWithModel(ctx, modelID, settings, question)
			},
		}}
	}

	result, err := chain.Execute(ctx)
	if err != nil {
		// Unreachable with the fallback set, but keep the floor total anyway.
		result = resilience.Result[Classification]{Value: c.heuristic(question)}
	}

	classification := result.Value
	classification.ProcessingTime = time.Since(start)
	return classification
}

func (c *classifierServiceImpl) classifyWithModel(ctx context.Context, modelID string, settings ModelSettings, question string) (Classification, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(classifierUserPromptTemplate, question)},
		},
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Classification{}, fmt.Errorf("model returned no choices")
	}

	var decision modelDecision
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		return Classification{}, fmt.Errorf("model response is not the expected JSON shape: %w", err)
	}
	if decision.AIResponse == "" || decision.SuggestedAction == "" {
		return Classification{}, fmt.Errorf("model response is missing required fields")
	}
	if decision.Confidence < 0 {
		decision.Confidence = 0
	}
	if decision.Confidence > 1 {
		decision.Confidence = 1
	}

	return Classification{
		IsGoldRelated:   decision.IsGoldRelated,
		Confidence:      decision.Confidence,
		Reasoning:       decision.Reasoning,
		SuggestedAction: decision.SuggestedAction,
		Response:        decision.AIResponse,
		DecisionSource:  models.DecisionSourceModel,
	}, nil
}

// heuristic is the deterministic keyword-membership fallback. It always
// terminates and always returns a decision.
func (c *classifierServiceImpl) heuristic(question string) Classification {
	lowered := strings.ToLower(question)

	isGoldRelated := false
	for _, keyword := range goldKeywords {
		if strings.Contains(lowered, keyword) {
			isGoldRelated = true
			break
		}
	}

	classification := Classification{
		IsGoldRelated:  isGoldRelated,
		DecisionSource: models.DecisionSourceHeuristic,
	}
	if isGoldRelated {
		classification.Confidence = 0.7
		classification.Reasoning = "Contains gold-related keywords"
		classification.SuggestedAction = models.ActionPurchaseGold
		classification.Response = "Great question about gold investment! Gold has been a reliable store of value for centuries. Digital gold offers a convenient way to invest in gold without physical storage concerns. Would you like to learn more about purchasing digital gold?"
	} else {
		classification.Confidence = 0.6
		classification.Reasoning = "No gold-related keywords found"
		classification.SuggestedAction = models.ActionRedirectOther
		classification.Response = "This question doesn't appear to be related to gold investment. I'd be happy to redirect you to the appropriate service for your query."
	}
	return classification
}
