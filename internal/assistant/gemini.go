package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GeminiFactory opens Gemini chat sessions on a shared client.
type GeminiFactory struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	logger *slog.Logger
}

// NewGeminiFactory creates the Gemini client. Google Search grounding is
// enabled on every session when search is true.
func NewGeminiFactory(ctx context.Context, log *slog.Logger, apiKey, model string, search bool) (*GeminiFactory, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	config := &genai.GenerateContentConfig{}
	if search {
		config.Tools = append(config.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return &GeminiFactory{
		client: client,
		model:  model,
		config: config,
		logger: log.With(slog.String("component", "gemini")),
	}, nil
}

func (f *GeminiFactory) NewSession(ctx context.Context) (Session, error) {
	chat, err := f.client.Chats.Create(ctx, f.model, f.config, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini chat create: %w", err)
	}
	return &geminiSession{chat: chat, logger: f.logger}, nil
}

type geminiSession struct {
	chat   *genai.Chat
	logger *slog.Logger
}

func (s *geminiSession) Send(ctx context.Context, question string) (Response, error) {
	resp, err := s.chat.SendMessage(ctx, genai.Part{Text: question})
	if err != nil {
		return Response{}, fmt.Errorf("gemini API error: %w", err)
	}
	out := responseFromGemini(resp)
	s.logger.Debug("gemini response",
		slog.Int("parts", len(out.Parts)),
		slog.Int("sources", len(out.Sources)),
	)
	return out, nil
}

// responseFromGemini keeps the first candidate. Thought parts are reported as
// non-text so they never reach the user.
func responseFromGemini(resp *genai.GenerateContentResponse) Response {
	if resp == nil || len(resp.Candidates) == 0 {
		return Response{}
	}
	cand := resp.Candidates[0]
	var out Response
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				out.Parts = append(out.Parts, Part{Kind: PartText, Text: part.Text})
				continue
			}
			out.Parts = append(out.Parts, Part{Kind: PartOther})
		}
	}
	if cand.GroundingMetadata != nil {
		seen := map[string]struct{}{}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			if _, ok := seen[chunk.Web.URI]; ok {
				continue
			}
			seen[chunk.Web.URI] = struct{}{}
			out.Sources = append(out.Sources, Source{Title: chunk.Web.Title, URL: chunk.Web.URI})
		}
	}
	return out
}
