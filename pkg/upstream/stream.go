package upstream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"corvus-hq/rookery/pkg/proxy/types"
)

// wireChunk is one JSON-delimited event from the upstream stream. The shape
// follows the OpenAI chat.completion.chunk schema, with the upstream's
// reasoning_content extension.
type wireChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role             string `json:"role"`
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage"`
	Error *wireError `json:"error"`
}

// wireUsage carries the final token counts, including the detailed
// per-modality categories when the upstream reports them.
type wireUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	NumSourcesUsed      int `json:"num_sources_used"`
	PromptTokensDetails struct {
		TextTokens   int `json:"text_tokens"`
		AudioTokens  int `json:"audio_tokens"`
		ImageTokens  int `json:"image_tokens"`
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionTokensDetails struct {
		ReasoningTokens          int `json:"reasoning_tokens"`
		AudioTokens              int `json:"audio_tokens"`
		AcceptedPredictionTokens int `json:"accepted_prediction_tokens"`
		RejectedPredictionTokens int `json:"rejected_prediction_tokens"`
	} `json:"completion_tokens_details"`
}

// wireError is the error payload the upstream may put in a first chunk.
type wireError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// toUsage converts wire usage to the public Usage shape.
func (u *wireUsage) toUsage() types.Usage {
	usage := types.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	pd := u.PromptTokensDetails
	if pd.TextTokens != 0 || pd.AudioTokens != 0 || pd.ImageTokens != 0 || pd.CachedTokens != 0 {
		usage.PromptTokensDetails = &types.PromptTokensDetails{
			TextTokens:   pd.TextTokens,
			AudioTokens:  pd.AudioTokens,
			ImageTokens:  pd.ImageTokens,
			CachedTokens: pd.CachedTokens,
		}
	}
	cd := u.CompletionTokensDetails
	if cd.ReasoningTokens != 0 || cd.AudioTokens != 0 || cd.AcceptedPredictionTokens != 0 || cd.RejectedPredictionTokens != 0 {
		usage.CompletionTokensDetails = &types.CompletionTokensDetails{
			ReasoningTokens:          cd.ReasoningTokens,
			AudioTokens:              cd.AudioTokens,
			AcceptedPredictionTokens: cd.AcceptedPredictionTokens,
			RejectedPredictionTokens: cd.RejectedPredictionTokens,
		}
	}
	return usage
}

// streamAccumulator consumes the upstream SSE stream chunk by chunk,
// accumulating the assembled message without retaining raw frames. Only one
// completed chunk is held in memory at a time.
type streamAccumulator struct {
	content        strings.Builder
	reasoning      strings.Builder
	deltas         []types.Delta
	finishReason   string
	usage          *wireUsage
	numSourcesUsed int
	upstreamError  *wireError
}

// consumeStream reads the SSE body to completion or first error. It returns
// nil on a normally terminated stream; a mid-stream read error is returned
// for the caller to classify.
func (a *streamAccumulator) consumeStream(ctx context.Context, body io.Reader) error {
	scanner := bufio.NewScanner(body)
	// Completion deltas are small but tool-call argument frames can run long.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			// Comments and event-type lines are ignored.
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var chunk wireChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// A malformed frame mid-stream; skip it rather than fail
			// the whole attempt.
			continue
		}

		if chunk.Error != nil {
			a.upstreamError = chunk.Error
			return nil
		}

		for _, choice := range chunk.Choices {
			d := choice.Delta
			if d.Content != "" {
				a.content.WriteString(d.Content)
			}
			if d.ReasoningContent != "" {
				a.reasoning.WriteString(d.ReasoningContent)
			}
			if d.Content != "" || d.ReasoningContent != "" || d.Role != "" {
				a.deltas = append(a.deltas, types.Delta{
					Role:             d.Role,
					Content:          d.Content,
					ReasoningContent: d.ReasoningContent,
				})
			}
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				a.finishReason = *choice.FinishReason
			}
		}

		if chunk.Usage != nil {
			a.usage = chunk.Usage
			a.numSourcesUsed = chunk.Usage.NumSourcesUsed
		}
	}

	return scanner.Err()
}
