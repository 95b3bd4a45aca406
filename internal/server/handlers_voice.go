package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Hyeon6492/LifeBit/internal/events"
	"github.com/Hyeon6492/LifeBit/internal/observability"
	"github.com/Hyeon6492/LifeBit/internal/record"
)

const (
	maxVoiceUploadBytes = 25 << 20

	voiceClipSaved      = "SAVED"
	voiceClipIncomplete = "INCOMPLETE"
)

var errVoiceReplyNotJSON = errors.New("model reply is not a JSON object")

// voiceOutcome is what processVoice decided for one transcript.
type voiceOutcome struct {
	Category   record.Category
	Transcript string
	Data       any
	Items      []map[string]any
	Missing    []string
	Message    string
}

func (a *App) processVoice(c *gin.Context) {
	if a.ai == nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "GPT 기능 비활성화됨"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "file is required")
		return
	}
	var supplied int64
	if raw := strings.TrimSpace(c.PostForm("user_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "user_id must be an integer")
			return
		}
		supplied = parsed
	}
	userID := actingUserID(c, supplied)

	file, err := fileHeader.Open()
	if err != nil {
		writeVoiceError(c, err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxVoiceUploadBytes+1))
	file.Close()
	if err != nil {
		writeVoiceError(c, err)
		return
	}
	if len(data) > maxVoiceUploadBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "audio file is too large")
		return
	}
	clip := AudioClip{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}

	ctx := c.Request.Context()
	outcome, err := a.interpretVoice(ctx, clip)
	if err != nil {
		writeVoiceError(c, err)
		return
	}
	audioKey := a.archiveAudio(ctx, userID, clip)

	clipID := uuid.NewString()
	if len(outcome.Missing) > 0 || userID <= 0 {
		missing := outcome.Missing
		if len(missing) == 0 {
			missing = []string{"user_id"}
		}
		var owner *int64
		if userID > 0 {
			owner = &userID
		}
		if err := insertVoiceClip(ctx, a.db, voiceClipRow{
			ID:         clipID,
			UserID:     owner,
			RecordType: string(outcome.Category),
			Transcript: outcome.Transcript,
			AudioKey:   audioKey,
			Status:     voiceClipIncomplete,
			ParsedData: outcome.Data,
		}); err != nil {
			writeVoiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "incomplete",
			"type":           string(outcome.Category),
			"clip_id":        clipID,
			"transcript":     outcome.Transcript,
			"parsed_data":    outcome.Data,
			"missing_fields": missing,
			"message":        outcome.Message,
		})
		return
	}

	savedIDs, published, err := a.saveVoiceRecords(ctx, userID, clipID, audioKey, outcome)
	if err != nil {
		writeVoiceError(c, err)
		return
	}
	for _, event := range published {
		a.publish(ctx, event)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"type":        string(outcome.Category),
		"clip_id":     clipID,
		"transcript":  outcome.Transcript,
		"parsed_data": outcome.Data,
		"saved_ids":   savedIDs,
		"message":     outcome.Message,
	})
}

// interpretVoice transcribes the clip, routes it to a record category and
// asks the model to extract the record. Missing fields are computed locally.
func (a *App) interpretVoice(ctx context.Context, clip AudioClip) (voiceOutcome, error) {
	if a.stt == nil {
		return voiceOutcome{}, ErrTranscriberNotConfigured
	}
	transcript, err := a.stt.Transcribe(ctx, clip)
	observability.RecordTranscription(a.stt.Provider(), err)
	if err != nil {
		return voiceOutcome{}, err
	}
	category := record.RouteTranscript(transcript)
	log.Printf("voice transcript provider=%s record_type=%s chars=%d", a.stt.Provider(), category, len([]rune(transcript)))

	temperature := a.cfg.ChatTemperature
	resp, err := a.ai.Query(ctx, AIModelRequest{
		SystemPrompt: systemPromptFor(category, record.PhaseExtraction, nil),
		UserPrompt:   transcript,
		Temperature:  &temperature,
	})
	observability.RecordAIRequest("voice", err)
	observability.RecordAITokens("voice", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if err != nil {
		return voiceOutcome{}, err
	}
	reply, ok := parseModelReply(resp.Answer)
	if !ok {
		return voiceOutcome{}, errVoiceReplyNotJSON
	}

	data := reply.SystemMessage.Data
	enrichRecordData(category, data)
	items := recordItems(data)

	var missing []string
	if len(items) == 0 {
		missing = record.MissingFields(category, record.Fields{})
	}
	seen := map[string]bool{}
	for _, item := range items {
		for _, field := range record.MissingFields(category, record.Fields(item)) {
			if !seen[field] {
				seen[field] = true
				missing = append(missing, field)
			}
		}
	}

	message := strings.TrimSpace(reply.UserMessage.Text)
	if message == "" {
		message = chatReplyFallbackText
	}
	return voiceOutcome{
		Category:   category,
		Transcript: transcript,
		Data:       data,
		Items:      items,
		Missing:    missing,
		Message:    message,
	}, nil
}

// archiveAudio stores the clip when an audio store is configured. Failures
// are logged and yield an empty key.
func (a *App) archiveAudio(ctx context.Context, userID int64, clip AudioClip) string {
	if a.audio == nil {
		return ""
	}
	key, err := a.audio.Put(ctx, audioObjectKey(userID, clip.Filename, a.now()), clip)
	if err != nil {
		log.Printf("voice archive failed user_id=%d err=%v", userID, err)
		return ""
	}
	return key
}

// saveVoiceRecords writes every extracted record plus the clip in one
// transaction. Events are returned for publishing after commit.
func (a *App) saveVoiceRecords(ctx context.Context, userID int64, clipID, audioKey string, outcome voiceOutcome) ([]int64, []events.RecordEvent, error) {
	now := a.now()
	today, _ := parseDate("", now)

	var (
		exerciseEntries []exerciseEntry
		dietEntries     []dietEntry
	)
	for _, item := range outcome.Items {
		fields := record.Fields(item)
		switch outcome.Category {
		case record.CategoryExercise:
			exerciseEntries = append(exerciseEntries, a.exerciseEntryFromFields(userID, fields, today, now))
		case record.CategoryDiet:
			dietEntries = append(dietEntries, a.dietEntryFromFields(ctx, userID, fields, today, now))
		}
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	savedIDs := make([]int64, 0, len(outcome.Items))
	published := make([]events.RecordEvent, 0, len(outcome.Items))
	for _, entry := range exerciseEntries {
		id, err := insertExerciseSession(ctx, tx, entry)
		if err != nil {
			return nil, nil, err
		}
		savedIDs = append(savedIDs, id)
		published = append(published, events.NewRecordEvent(events.RecordTypeExercise, id, userID, entry.Source, exercisePayload(entry)))
	}
	for _, entry := range dietEntries {
		foodItemID, created, err := findOrCreateFoodItem(ctx, tx, entry.FoodName, entry.Nutrition, entry.NutritionSource)
		if err != nil {
			return nil, nil, err
		}
		if created {
			published = append(published, events.NewRecordEvent(events.RecordTypeFoodItem, foodItemID, userID, entry.Source, map[string]any{"name": entry.FoodName}))
		}
		id, err := insertMealLog(ctx, tx, foodItemID, entry)
		if err != nil {
			return nil, nil, err
		}
		savedIDs = append(savedIDs, id)
		published = append(published, events.NewRecordEvent(events.RecordTypeDiet, id, userID, entry.Source, dietPayload(entry, foodItemID)))
	}

	if err := insertVoiceClip(ctx, tx, voiceClipRow{
		ID:         clipID,
		UserID:     &userID,
		RecordType: string(outcome.Category),
		Transcript: outcome.Transcript,
		AudioKey:   audioKey,
		Status:     voiceClipSaved,
		ParsedData: outcome.Data,
	}); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	for _, event := range published {
		observability.RecordSaved(event.RecordType, events.SourceVoice)
	}
	return savedIDs, published, nil
}

func (a *App) exerciseEntryFromFields(userID int64, fields record.Fields, day, now time.Time) exerciseEntry {
	name := strings.TrimSpace(fields.String(record.FieldExercise))
	weight := fieldFloat(fields, record.FieldWeight)
	if weight == nil && record.ClassifyExercise(name) == record.ExerciseBodyweight {
		bodyWeight := a.cfg.DefaultBodyWeightKG
		weight = &bodyWeight
	}
	return exerciseEntry{
		UserID:          userID,
		Name:            name,
		Weight:          weight,
		Sets:            fieldInt(fields, record.FieldSets),
		Reps:            fieldInt(fields, record.FieldReps),
		DurationMinutes: fieldInt(fields, record.FieldDurationMin),
		CaloriesBurned:  fields.NumberOr(record.FieldCalories, record.EstimateCalories(fields)),
		ExerciseDate:    day,
		TimePeriod:      record.TimePeriodAt(now),
		Source:          events.SourceVoice,
	}
}

func (a *App) dietEntryFromFields(ctx context.Context, userID int64, fields record.Fields, day, now time.Time) dietEntry {
	foodName := strings.TrimSpace(fields.String(record.FieldFoodName))
	amount := record.NormalizeAmount(fields.String(record.FieldAmount))
	mealTime, ok := record.ResolveMealTime(fields.String(record.FieldMealTime), now)
	if !ok {
		mealTime = record.MealTimeAt(now)
	}
	nutrition, nutritionSource := a.estimateNutrition(ctx, foodName, amount)
	return dietEntry{
		UserID:          userID,
		FoodName:        foodName,
		Amount:          amount,
		MealTime:        mealTime,
		Nutrition:       nutrition,
		NutritionSource: nutritionSource,
		LogDate:         day,
		Source:          events.SourceVoice,
	}
}

func fieldFloat(fields record.Fields, key string) *float64 {
	value, ok := fields.Number(key)
	if !ok || value <= 0 {
		return nil
	}
	return &value
}

func fieldInt(fields record.Fields, key string) *int {
	value, ok := fields.Number(key)
	if !ok || value <= 0 {
		return nil
	}
	rounded := int(math.Round(value))
	return &rounded
}

func writeVoiceError(c *gin.Context, err error) {
	log.Printf("voice failed err=%v", err)
	writeError(c, http.StatusInternalServerError, fmt.Sprintf("서버 내부 오류: %v", err))
}
