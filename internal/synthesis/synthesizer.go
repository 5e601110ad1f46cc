package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mitai-health/relay/internal/observability/metrics"
	"github.com/mitai-health/relay/pkg/logging"
)

var synthTracer = otel.Tracer("mitai.internal.synthesis")

// SafetySuffix is the closing sentence every Reply must carry. The
// prompt asks the model for it, and Synthesize appends it when the
// model leaves it out.
const SafetySuffix = "If symptoms worsen or persist, please consult a healthcare provider."

var (
	// ErrUpstreamGeneration means the language model was unreachable or
	// returned no content. Surfaced to callers as a 5xx-equivalent.
	ErrUpstreamGeneration = errors.New("synthesis: language model returned no content")
	// ErrUpstreamTimeout means a model call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("synthesis: language model call timed out")
)

// Synthesizer turns a raw user utterance into a layperson-friendly,
// non-diagnostic Reply via two sequential model calls: a symptom
// condensation stage and an advice stage grounded on the condensation.
// Stage two cannot start before stage one finishes.
type Synthesizer struct {
	llm     LLMClient
	modelID string
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.PipelineMetrics
}

// NewSynthesizer builds a Synthesizer. modelID is forwarded to
// providers that select the model per request (Bedrock); the Gemini
// and OpenAI clients carry their own. timeout bounds each model call
// individually; zero means 30s.
func NewSynthesizer(llm LLMClient, modelID string, timeout time.Duration, m *metrics.PipelineMetrics, logger *logging.Logger) *Synthesizer {
	if llm == nil {
		panic("synthesis: llm client cannot be nil")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Synthesizer{llm: llm, modelID: modelID, timeout: timeout, logger: logger, metrics: m}
}

// Synthesize runs the two-stage pipeline. speakerName personalizes the
// reply when non-empty. The returned Reply is normalized and always
// ends with SafetySuffix. A stage-one failure aborts the whole
// synthesis; there are no retries.
func (s *Synthesizer) Synthesize(ctx context.Context, query, speakerName string) (string, error) {
	ctx, span := synthTracer.Start(ctx, "synthesis.synthesize")
	defer span.End()

	summary, err := s.complete(ctx, "summarize", summaryPrompt(query))
	if err != nil {
		return "", fmt.Errorf("summarization stage: %w", err)
	}

	analysis, err := s.complete(ctx, "advise", advicePrompt(summary, speakerName))
	if err != nil {
		return "", fmt.Errorf("advice stage: %w", err)
	}

	reply := ensureSafetySuffix(Normalize(analysis))
	s.logger.Debug("reply synthesized", "query_len", len(query), "reply_len", len(reply))
	return reply, nil
}

// complete performs one bounded model call. Empty output is an error:
// the pipeline has nothing to build on.
func (s *Synthesizer) complete(ctx context.Context, stage, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.llm.Complete(callCtx, LLMRequest{
		Model:       s.modelID,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		Temperature: -1,
	})
	s.metrics.ObserveStage(stage, statusLabel(err), time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstreamGeneration, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", ErrUpstreamGeneration
	}
	return resp.Text, nil
}

// summaryPrompt asks for a 2-3 line condensation of symptoms only,
// explicitly withholding advice so stage two has clean grounding.
func summaryPrompt(query string) string {
	return fmt.Sprintf(`Given a user query below, summarize it in 2-3 short lines, highlighting the main symptoms or concerns.
Do not give advice yet. Make it clear, concise, and easy to understand.
Query: %q`, query)
}

// advicePrompt turns the stage-one summary into a bounded, empathetic,
// non-diagnostic reply.
func advicePrompt(summary, speakerName string) string {
	address := "there"
	if name := strings.TrimSpace(speakerName); name != "" {
		address = name
	}
	return fmt.Sprintf(`Given the medical report below, provide a layperson-friendly, practical response.
- Include safe, evidence-based home remedies or lifestyle tips suitable for mild symptoms.
- Avoid giving professional diagnosis.
- Keep it conversational and engaging, and address the patient as %q.
- If the report is not health-related, kindly redirect the patient to seek help from a person instead of answering.
- Limit to 5-7 lines.
- Always end with: %q
Report: %q`, address, SafetySuffix, summary)
}

// ensureSafetySuffix makes the safety sentence a deterministic
// guarantee instead of a prompt-level hope.
func ensureSafetySuffix(reply string) string {
	if strings.HasSuffix(reply, SafetySuffix) {
		return reply
	}
	return reply + " " + SafetySuffix
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
