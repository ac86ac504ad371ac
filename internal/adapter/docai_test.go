package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creditparse-cli/internal/model"
	"github.com/sells-group/creditparse-cli/internal/resilience"
	"github.com/sells-group/creditparse-cli/pkg/docai"
)

type fakeDocAIClient struct {
	resp *docai.ProcessResponse
	err  error

	gotReq docai.ProcessRequest
}

func (f *fakeDocAIClient) Process(_ context.Context, req docai.ProcessRequest) (*docai.ProcessResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testDoc() model.RawDocument {
	return model.RawDocument{
		ID:           "doc-1",
		Content:      []byte("%PDF-1.4 fake"),
		DeclaredType: "application/pdf",
	}
}

func TestDocAI_Extract(t *testing.T) {
	fake := &fakeDocAIClient{resp: &docai.ProcessResponse{
		Document: docai.Document{
			Text: "Name: Jane Doe",
			Entities: []docai.Entity{
				{Type: "person_name", MentionText: "Jane Doe", Confidence: 0.95},
			},
			Pages: []docai.Page{{PageNumber: 1, Confidence: 0.9}},
		},
	}}

	att, err := NewDocAIWithClient(fake).Extract(context.Background(), testDoc())
	require.NoError(t, err)

	assert.Equal(t, "docai", att.Provider)
	assert.Equal(t, 1, att.Tier)
	assert.Equal(t, model.StatusOK, att.Status)
	assert.Equal(t, "Name: Jane Doe", att.Text)
	require.Len(t, att.Entities, 1)
	assert.Equal(t, "person_name", att.Entities[0].Type)
	// Native [0,1] confidences land on the 0-100 scale.
	assert.InDelta(t, 95, att.Entities[0].Confidence, 0.001)
	// 0.7*90 + 0.3*95
	assert.InDelta(t, 91.5, att.Confidence, 0.001)
	assert.NotEmpty(t, att.ID)

	assert.Equal(t, "application/pdf", fake.gotReq.MimeType)
}

func TestDocAI_TextOnlyResponse(t *testing.T) {
	fake := &fakeDocAIClient{resp: &docai.ProcessResponse{
		Document: docai.Document{Text: "plain text only"},
	}}

	att, err := NewDocAIWithClient(fake).Extract(context.Background(), testDoc())
	require.NoError(t, err)
	assert.InDelta(t, 70, att.Confidence, 0.001)
}

func TestDocAI_ServerErrorIsTransient(t *testing.T) {
	fake := &fakeDocAIClient{err: &docai.APIError{StatusCode: 503, Message: "unavailable"}}

	att, err := NewDocAIWithClient(fake).Extract(context.Background(), testDoc())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, model.StatusTransientError, att.Status)
	assert.NotEmpty(t, att.Error)
}

func TestDocAI_AuthErrorIsPermanent(t *testing.T) {
	fake := &fakeDocAIClient{err: &docai.APIError{StatusCode: 403, Message: "forbidden"}}

	att, err := NewDocAIWithClient(fake).Extract(context.Background(), testDoc())
	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
	assert.Equal(t, model.StatusPermanentError, att.Status)
}

func TestDocAI_ContextCancelled(t *testing.T) {
	fake := &fakeDocAIClient{err: context.Canceled}

	att, err := NewDocAIWithClient(fake).Extract(context.Background(), testDoc())
	require.Error(t, err)
	assert.Equal(t, model.StatusTimeout, att.Status)
}

func TestDocAIConfidence_Empty(t *testing.T) {
	assert.Zero(t, docaiConfidence(docai.Document{}))
}

func TestClassifyDocAIError_PassthroughNonAPI(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	assert.Equal(t, err, classifyDocAIError(err))
}
