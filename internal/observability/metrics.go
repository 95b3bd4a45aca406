package observability

import "github.com/prometheus/client_golang/prometheus"

const namespace = "lifebit"

var (
	aiRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_requests_total",
		Help:      "Number of language model calls, labeled by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	aiTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_tokens_total",
		Help:      "Tokens reported by the language model, labeled by purpose and direction (prompt, completion).",
	}, []string{"purpose", "direction"})

	chatPhases = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_phases_total",
		Help:      "Number of chat turns handled, labeled by record type and resolved phase.",
	}, []string{"record_type", "phase"})

	recordsSaved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_saved_total",
		Help:      "Number of records persisted, labeled by record type and input source.",
	}, []string{"record_type", "source"})

	nutritionFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nutrition_fallbacks_total",
		Help:      "Number of nutrition estimates that fell back to fixed values, labeled by basis.",
	}, []string{"basis"})

	transcriptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcriptions_total",
		Help:      "Number of speech-to-text calls, labeled by provider and outcome.",
	}, []string{"provider", "outcome"})
)

func init() {
	prometheus.MustRegister(aiRequests, aiTokens, chatPhases, recordsSaved, nutritionFallbacks, transcriptions)
}

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// RecordAIRequest counts one model call for purpose (chat, voice, nutrition).
func RecordAIRequest(purpose string, err error) {
	aiRequests.WithLabelValues(purpose, outcome(err)).Inc()
}

// RecordAITokens adds the usage a model reported. Replies without usage
// report zero and leave the counter unchanged.
func RecordAITokens(purpose string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		aiTokens.WithLabelValues(purpose, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		aiTokens.WithLabelValues(purpose, "completion").Add(float64(completionTokens))
	}
}

func RecordChatPhase(recordType, phase string) {
	chatPhases.WithLabelValues(recordType, phase).Inc()
}

func RecordSaved(recordType, source string) {
	recordsSaved.WithLabelValues(recordType, source).Inc()
}

// RecordNutritionFallback counts a fallback estimate; basis is "amount" or "100g".
func RecordNutritionFallback(basis string) {
	nutritionFallbacks.WithLabelValues(basis).Inc()
}

func RecordTranscription(provider string, err error) {
	transcriptions.WithLabelValues(provider, outcome(err)).Inc()
}
