package perception

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	resp *genai.GenerateContentResponse
	err  error

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

func TestGeminiClient_CompleteWithSystem(t *testing.T) {
	fake := &fakeModels{resp: textResponse(` {"task":"recommendation"} `)}
	c := newGeminiClient(fake, "")

	out, err := c.CompleteWithSystem(context.Background(), "be a router", "gift for dad")
	require.NoError(t, err)

	assert.Equal(t, `{"task":"recommendation"}`, out)
	assert.Equal(t, DefaultGeminiModel, fake.gotModel)
	require.Len(t, fake.gotContents, 1)
	assert.Equal(t, "gift for dad", fake.gotContents[0].Parts[0].Text)
	require.NotNil(t, fake.gotConfig.SystemInstruction)
	assert.Equal(t, "be a router", fake.gotConfig.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "application/json", fake.gotConfig.ResponseMIMEType)
}

func TestGeminiClient_NoSystemInstruction(t *testing.T) {
	fake := &fakeModels{resp: textResponse(`{}`)}
	_, err := newGeminiClient(fake, "gemini-2.5-pro").Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Nil(t, fake.gotConfig.SystemInstruction)
	assert.Equal(t, "gemini-2.5-pro", fake.gotModel)
}

func TestGeminiClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeModels
		wantErr string
	}{
		{name: "sdk error", fake: &fakeModels{err: errors.New("quota")}, wantErr: "quota"},
		{name: "no candidates", fake: &fakeModels{resp: &genai.GenerateContentResponse{}}, wantErr: "no candidates"},
		{name: "nil response", fake: &fakeModels{}, wantErr: "no candidates"},
		{name: "empty text", fake: &fakeModels{resp: textResponse("   ")}, wantErr: "empty response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newGeminiClient(tt.fake, "m").Complete(context.Background(), "x")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}
