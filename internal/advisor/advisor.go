package advisor

import (
	"context"
	"fmt"

	"rsi-lens/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultModel = "gpt-4o-mini"

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// Interpreter turns RSI readings into a short plain-language commentary.
type Interpreter struct {
	tracer trace.Tracer
	llm    LLMClient
	model  string
}

func NewInterpreter(tracer trace.Tracer, llm LLMClient, model string) *Interpreter {
	if model == "" {
		model = defaultModel
	}
	return &Interpreter{tracer: tracer, llm: llm, model: model}
}

// Interpret comments on a single live reading.
func (i *Interpreter) Interpret(ctx context.Context, result domain.LiveRSIResult) (string, error) {
	ctx, span := i.tracer.Start(ctx, "advisor.interpret")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", result.Symbol))

	reply, err := i.callLLM(ctx, BuildLivePrompt(result))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("advisor unavailable: %w", err)
	}
	return reply, nil
}

// InterpretSeries comments on the trend of a historical series.
func (i *Interpreter) InterpretSeries(ctx context.Context, series *domain.RSISeries) (string, error) {
	ctx, span := i.tracer.Start(ctx, "advisor.interpret-series")
	defer span.End()

	if series == nil || len(series.Points) == 0 {
		return "", fmt.Errorf("no RSI points to interpret")
	}
	span.SetAttributes(
		attribute.String("symbol", series.Symbol),
		attribute.Int("points", len(series.Points)),
	)

	reply, err := i.callLLM(ctx, BuildSeriesPrompt(series))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("advisor unavailable: %w", err)
	}
	return reply, nil
}

func (i *Interpreter) callLLM(ctx context.Context, userPrompt string) (string, error) {
	ctx, span := i.tracer.Start(ctx, "advisor.llm-call")
	defer span.End()

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}
	span.SetAttributes(
		attribute.String("llm.model", i.model),
		attribute.Int("llm.message_count", len(messages)),
	)

	completion, err := i.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:    i.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	reply := completion.Choices[0].Message.Content
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
