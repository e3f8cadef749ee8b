package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarmBlock(t *testing.T) {
	assert.Equal(t, genai.HarmBlockNone, harmBlock("none"))
	assert.Equal(t, genai.HarmBlockLowAndAbove, harmBlock("LOW"))
	assert.Equal(t, genai.HarmBlockMediumAndAbove, harmBlock("medium"))
	assert.Equal(t, genai.HarmBlockOnlyHigh, harmBlock("high"))
	assert.Equal(t, genai.HarmBlockMediumAndAbove, harmBlock(""))
}

func TestSafetySettings_CoversAllCategories(t *testing.T) {
	settings := safetySettings("high")
	require.Len(t, settings, 4)
	for _, s := range settings {
		assert.Equal(t, genai.HarmBlockOnlyHigh, s.Threshold)
	}
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Born "), genai.Text("1820.")}},
		}},
	}
	assert.Equal(t, "Born 1820.", responseText(resp))
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, p, "empty provider disables the LLM")

	_, err = NewProvider(context.Background(), Config{Provider: "bogus"})
	require.Error(t, err)

	p, err = NewProvider(context.Background(), Config{Provider: "Claude", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = NewProvider(context.Background(), Config{Provider: "gemini"})
	require.Error(t, err, "gemini requires a key")
}
