package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

const systemPrompt = `You grade short answers to learning quests.
Reply with a JSON object: {"score": <integer 0-100>, "reasoning": "<one or two sentences>"}.`

// ChatCompleter is the part of the OpenAI client the evaluator needs
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the LLM evaluator
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI grades answers with a chat model and falls back on any failure
type OpenAI struct {
	client   ChatCompleter
	model    string
	timeout  time.Duration
	fallback ports.Evaluator
	logger   logrus.FieldLogger
}

// NewOpenAI creates an LLM evaluator from config
func NewOpenAI(cfg OpenAIConfig, fallback ports.Evaluator, logger logrus.FieldLogger) ports.Evaluator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewOpenAIWithClient(openai.NewClientWithConfig(clientCfg), cfg.Model, cfg.Timeout, fallback, logger)
}

// NewOpenAIWithClient creates an LLM evaluator around an existing client
func NewOpenAIWithClient(client ChatCompleter, model string, timeout time.Duration, fallback ports.Evaluator, logger logrus.FieldLogger) ports.Evaluator {
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if fallback == nil {
		fallback = NewHeuristic()
	}
	return &OpenAI{
		client:   client,
		model:    model,
		timeout:  timeout,
		fallback: fallback,
		logger:   logger.WithField("component", "openai_evaluator"),
	}
}

// Evaluate never fails: any API or parsing problem yields the fallback grade
func (o *OpenAI) Evaluate(ctx context.Context, quest *core.Quest, answer string) core.Evaluation {
	eval, err := o.grade(ctx, quest, answer)
	if err != nil {
		o.logger.WithError(err).WithField("quest_id", quest.ID).Warn("LLM grading failed, using heuristic")
		return o.fallback.Evaluate(ctx, quest, answer)
	}
	return eval
}

func (o *OpenAI) grade(ctx context.Context, quest *core.Quest, answer string) (core.Evaluation, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Quest: %s\nTask: %s\nKey ideas: %s\n\nAnswer:\n%s",
		quest.Title, quest.Prompt, strings.Join(quest.Keywords, ", "), answer)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	if err != nil {
		return core.Evaluation{}, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return core.Evaluation{}, errors.New("no choices returned")
	}

	eval, err := ParseGrade(resp.Choices[0].Message.Content)
	if err != nil {
		return core.Evaluation{}, err
	}
	eval.UsedLLM = true
	return eval, nil
}

var (
	scoreKeys     = []string{"score", "rating", "points", "grade"}
	reasoningKeys = []string{"reasoning", "explanation", "feedback", "rationale", "comment"}
)

// ParseGrade normalizes a loosely shaped JSON grade. It accepts several key
// names and numeric or string scores, and fails when no score is present.
func ParseGrade(content string) (core.Evaluation, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return core.Evaluation{}, errors.Wrap(err, "grade is not a JSON object")
	}

	score, ok := firstNumber(raw, scoreKeys)
	if !ok {
		return core.Evaluation{}, errors.New("grade has no score")
	}

	reasoning := firstString(raw, reasoningKeys)
	if reasoning == "" {
		reasoning = "Graded by language model."
	}

	return core.Evaluation{
		Score:     clampScore(int(math.Round(score))),
		Reasoning: reasoning,
	}, nil
}

func firstNumber(raw map[string]interface{}, keys []string) (float64, bool) {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, "/100")), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func firstString(raw map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
