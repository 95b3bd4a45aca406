package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordAIRequestSplitsOutcome(t *testing.T) {
	okBefore := testutil.ToFloat64(aiRequests.WithLabelValues("chat", OutcomeOK))
	errBefore := testutil.ToFloat64(aiRequests.WithLabelValues("chat", OutcomeError))

	RecordAIRequest("chat", nil)
	RecordAIRequest("chat", errors.New("timeout"))
	RecordAIRequest("chat", nil)

	require.Equal(t, okBefore+2, testutil.ToFloat64(aiRequests.WithLabelValues("chat", OutcomeOK)))
	require.Equal(t, errBefore+1, testutil.ToFloat64(aiRequests.WithLabelValues("chat", OutcomeError)))
}

func TestRecordAITokensSkipsMissingUsage(t *testing.T) {
	promptBefore := testutil.ToFloat64(aiTokens.WithLabelValues("nutrition", "prompt"))
	completionBefore := testutil.ToFloat64(aiTokens.WithLabelValues("nutrition", "completion"))

	RecordAITokens("nutrition", 120, 30)
	RecordAITokens("nutrition", 0, 0)

	require.Equal(t, promptBefore+120, testutil.ToFloat64(aiTokens.WithLabelValues("nutrition", "prompt")))
	require.Equal(t, completionBefore+30, testutil.ToFloat64(aiTokens.WithLabelValues("nutrition", "completion")))
}

func TestRecordCountersIncrement(t *testing.T) {
	phaseBefore := testutil.ToFloat64(chatPhases.WithLabelValues("diet", "validation"))
	RecordChatPhase("diet", "validation")
	require.Equal(t, phaseBefore+1, testutil.ToFloat64(chatPhases.WithLabelValues("diet", "validation")))

	savedBefore := testutil.ToFloat64(recordsSaved.WithLabelValues("exercise", "VOICE"))
	RecordSaved("exercise", "VOICE")
	require.Equal(t, savedBefore+1, testutil.ToFloat64(recordsSaved.WithLabelValues("exercise", "VOICE")))

	fallbackBefore := testutil.ToFloat64(nutritionFallbacks.WithLabelValues("100g"))
	RecordNutritionFallback("100g")
	require.Equal(t, fallbackBefore+1, testutil.ToFloat64(nutritionFallbacks.WithLabelValues("100g")))

	sttBefore := testutil.ToFloat64(transcriptions.WithLabelValues("google", OutcomeError))
	RecordTranscription("google", errors.New("quota"))
	require.Equal(t, sttBefore+1, testutil.ToFloat64(transcriptions.WithLabelValues("google", OutcomeError)))
}
