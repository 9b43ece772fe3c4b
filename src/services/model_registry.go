package services

import (
	"fmt"
	"sync"
)

// ModelSettings describes one selectable inference model.
type ModelSettings struct {
	MaxTokens   int     `json:"maxTokens"`
	Temperature float32 `json:"temperature"`
	Description string  `json:"description"`
}

// ModelInfo is the public view of a registered model.
type ModelInfo struct {
	Key         string  `json:"key"`
	ModelID     string  `json:"modelId"`
	Description string  `json:"description"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float32 `json:"temperature"`
}

// Recommendation names a model suited to a use case.
type Recommendation struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// ModelPricing is the approximate per-token cost of one model.
type ModelPricing struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

var defaultModelSettings = ModelSettings{MaxTokens: 500, Temperature: 0.3}

// ModelRegistry holds the selectable inference models and the active
// selection. The selection is explicit state owned by the registry, passed to
// whoever needs it, so classification decisions stay reproducible.
type ModelRegistry struct {
	mu       sync.RWMutex
	current  string
	models   map[string]string // key -> model id
	settings map[string]ModelSettings
	order    []string
}

// NewModelRegistry registers the supported OpenRouter models and selects
// defaultModel as active.
func NewModelRegistry(defaultModel string) *ModelRegistry {
	r := &ModelRegistry{
		current: defaultModel,
		models: map[string]string{
			"claude35Sonnet": "anthropic/claude-3.5-sonnet",
			"claude35Haiku":  "anthropic/claude-3.5-haiku",
			"claude3Opus":    "anthropic/claude-3-opus",
			"gpt4o":          "openai/gpt-4o",
			"gpt4oMini":      "openai/gpt-4o-mini",
			"gpt35Turbo":     "openai/gpt-3.5-turbo",
			"geminiPro":      "google/gemini-pro",
			"geminiFlash":    "google/gemini-flash-1.5",
			"llama3":         "meta-llama/llama-3.1-8b-instruct",
			"llama370b":      "meta-llama/llama-3.1-70b-instruct",
			"mistral7b":      "mistralai/mistral-7b-instruct",
			"mixtral8x7b":    "mistralai/mixtral-8x7b-instruct",
		},
		settings: map[string]ModelSettings{
			"anthropic/claude-3.5-sonnet":      {MaxTokens: 500, Temperature: 0.3, Description: "Claude 3.5 Sonnet - Balanced performance and cost"},
			"openai/gpt-4o":                    {MaxTokens: 500, Temperature: 0.3, Description: "GPT-4o - Latest OpenAI model with excellent reasoning"},
			"google/gemini-pro":                {MaxTokens: 500, Temperature: 0.3, Description: "Gemini Pro - Google's advanced language model"},
			"meta-llama/llama-3.1-70b-instruct": {MaxTokens: 500, Temperature: 0.3, Description: "Llama 3.1 70B - Meta's largest open model"},
		},
		order: []string{
			"claude35Sonnet", "claude35Haiku", "claude3Opus",
			"gpt4o", "gpt4oMini", "gpt35Turbo",
			"geminiPro", "geminiFlash",
			"llama3", "llama370b",
			"mistral7b", "mixtral8x7b",
		},
	}
	return r
}

// Current returns the active model id and its settings.
func (r *ModelRegistry) Current() (string, ModelSettings) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.settingsFor(r.current)
}

func (r *ModelRegistry) settingsFor(modelID string) ModelSettings {
	if s, ok := r.settings[modelID]; ok {
		return s
	}
	return defaultModelSettings
}

// Switch selects a different model by its registry key.
func (r *ModelRegistry) Switch(modelKey string) (ModelInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	modelID, ok := r.models[modelKey]
	if !ok {
		return ModelInfo{}, fmt.Errorf("%w: model %q not found", ErrValidation, modelKey)
	}
	r.current = modelID
	s := r.settingsFor(modelID)
	return ModelInfo{
		Key:         modelKey,
		ModelID:     modelID,
		Description: s.Description,
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
	}, nil
}

// Available lists all registered models in a stable order.
func (r *ModelRegistry) Available() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelInfo, 0, len(r.order))
	for _, key := range r.order {
		modelID := r.models[key]
		s := r.settingsFor(modelID)
		description := s.Description
		if description == "" {
			description = "No description available"
		}
		out = append(out, ModelInfo{
			Key:         key,
			ModelID:     modelID,
			Description: description,
			MaxTokens:   s.MaxTokens,
			Temperature: s.Temperature,
		})
	}
	return out
}

// Get resolves one model by registry key or by full model id.
func (r *ModelRegistry) Get(keyOrID string) (ModelInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := keyOrID
	modelID, ok := r.models[key]
	if !ok {
		for k, id := range r.models {
			if id == keyOrID {
				key, modelID, ok = k, id, true
				break
			}
		}
	}
	if !ok {
		return ModelInfo{}, fmt.Errorf("%w: model %q", ErrNotFound, keyOrID)
	}

	s := r.settingsFor(modelID)
	return ModelInfo{
		Key:         key,
		ModelID:     modelID,
		Description: s.Description,
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
	}, nil
}

// Pricing returns the approximate cost table for the models that publish one.
func (r *ModelRegistry) Pricing() map[string]ModelPricing {
	return map[string]ModelPricing{
		"anthropic/claude-3.5-sonnet": {Input: "$3.00 per 1M tokens", Output: "$15.00 per 1M tokens"},
		"anthropic/claude-3.5-haiku":  {Input: "$0.25 per 1M tokens", Output: "$1.25 per 1M tokens"},
		"openai/gpt-4o":               {Input: "$5.00 per 1M tokens", Output: "$15.00 per 1M tokens"},
		"openai/gpt-4o-mini":          {Input: "$0.15 per 1M tokens", Output: "$0.60 per 1M tokens"},
		"google/gemini-pro":           {Input: "$0.50 per 1M tokens", Output: "$1.50 per 1M tokens"},
	}
}

// Recommended maps common use cases to model choices.
func (r *ModelRegistry) Recommended() map[string]Recommendation {
	return map[string]Recommendation{
		"bestPerformance": {Model: "anthropic/claude-3.5-sonnet", Reason: "Excellent reasoning and analysis capabilities"},
		"bestCost":        {Model: "anthropic/claude-3.5-haiku", Reason: "Fast and cost-effective for simple tasks"},
		"bestReasoning":   {Model: "openai/gpt-4o", Reason: "Superior reasoning and problem-solving abilities"},
		"bestSpeed":       {Model: "google/gemini-flash-1.5", Reason: "Very fast response times"},
	}
}
