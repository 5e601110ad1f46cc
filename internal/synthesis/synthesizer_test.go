package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLLMClient replays scripted responses and records the prompts it saw.
type stubLLMClient struct {
	responses []LLMResponse
	errs      []error
	prompts   []string
}

func (s *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	call := len(s.prompts)
	s.prompts = append(s.prompts, req.Messages[len(req.Messages)-1].Content)
	if call < len(s.errs) && s.errs[call] != nil {
		return LLMResponse{}, s.errs[call]
	}
	if call < len(s.responses) {
		return s.responses[call], nil
	}
	return LLMResponse{}, errors.New("unexpected call")
}

func TestSynthesize_TwoStages(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{
		{Text: "Patient reports a mild headache since this morning."},
		{Text: "Hi there, a headache like that often eases with rest and water. " + SafetySuffix},
	}}
	s := NewSynthesizer(llm, "", time.Second, nil, nil)

	reply, err := s.Synthesize(context.Background(), "I have a headache", "")
	require.NoError(t, err)

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[0], "I have a headache")
	assert.Contains(t, llm.prompts[0], "Do not give advice yet")
	// Stage two is grounded on stage one's output, not the raw query.
	assert.Contains(t, llm.prompts[1], "mild headache since this morning")
	assert.Contains(t, llm.prompts[1], SafetySuffix)

	assert.True(t, strings.HasSuffix(reply, SafetySuffix))
}

func TestSynthesize_AppendsSafetySuffixWhenMissing(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{
		{Text: "summary"},
		{Text: "Please rest and stay hydrated."},
	}}
	s := NewSynthesizer(llm, "", time.Second, nil, nil)

	reply, err := s.Synthesize(context.Background(), "headache", "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(reply, SafetySuffix))
	assert.Contains(t, reply, "Please rest and stay hydrated.")
}

func TestSynthesize_NormalizesStageTwoOutput(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{
		{Text: "summary"},
		{Text: "  Try *warm*   tea.\n" + SafetySuffix},
	}}
	s := NewSynthesizer(llm, "", time.Second, nil, nil)

	reply, err := s.Synthesize(context.Background(), "sore throat", "")
	require.NoError(t, err)
	assert.Equal(t, `Try "warm" tea. `+SafetySuffix, reply)
}

func TestSynthesize_PersonalizesByName(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{
		{Text: "summary"},
		{Text: "Hi Priya. " + SafetySuffix},
	}}
	s := NewSynthesizer(llm, "", time.Second, nil, nil)

	_, err := s.Synthesize(context.Background(), "headache", "Priya")
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[1], `"Priya"`)
}

func TestSynthesize_DefaultAddressTerm(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{
		{Text: "summary"},
		{Text: "ok. " + SafetySuffix},
	}}
	s := NewSynthesizer(llm, "", time.Second, nil, nil)

	_, err := s.Synthesize(context.Background(), "headache", "  ")
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[1], `"there"`)
}

func TestSynthesize_StageOneFailureAborts(t *testing.T) {
	llm := &stubLLMClient{errs: []error{errors.New("connection refused")}}
	s := NewSynthesizer(llm, "", time.Second, nil, nil)

	_, err := s.Synthesize(context.Background(), "headache", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamGeneration)
	assert.Len(t, llm.prompts, 1, "stage two must not run after a stage-one failure")
}

func TestSynthesize_EmptyModelOutputIsUpstreamError(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{{Text: "   "}}}
	s := NewSynthesizer(llm, "", time.Second, nil, nil)

	_, err := s.Synthesize(context.Background(), "headache", "")
	assert.ErrorIs(t, err, ErrUpstreamGeneration)
}

func TestSynthesize_TimeoutSurfacesAsUpstreamTimeout(t *testing.T) {
	llm := &stubLLMClient{errs: []error{context.DeadlineExceeded}}
	s := NewSynthesizer(llm, "", time.Second, nil, nil)

	_, err := s.Synthesize(context.Background(), "headache", "")
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
}

func TestEnsureSafetySuffix_NoDoubleAppend(t *testing.T) {
	reply := "Rest well. " + SafetySuffix
	assert.Equal(t, reply, ensureSafetySuffix(reply))
	assert.Equal(t, 1, strings.Count(ensureSafetySuffix(reply), SafetySuffix))
}
