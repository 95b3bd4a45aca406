package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hyeon6492/LifeBit/internal/config"
	"github.com/Hyeon6492/LifeBit/internal/events"
	"github.com/Hyeon6492/LifeBit/internal/record"
)

const (
	serviceName       = "LifeBit AI-API"
	authUserIDKey     = "authUserID"
	mealTimeValidator = "mealtime"
)

type dbQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type App struct {
	cfg       config.Config
	db        *pgxpool.Pool
	ai        AIClient
	stt       Transcriber
	audio     AudioStore
	events    events.Publisher
	analytics AnalyticsClient
	now       func() time.Time
}

// Option overrides one of the App collaborators.
type Option func(*App)

func WithAIClient(client AIClient) Option {
	return func(a *App) { a.ai = client }
}

func WithTranscriber(stt Transcriber) Option {
	return func(a *App) { a.stt = stt }
}

func WithAudioStore(store AudioStore) Option {
	return func(a *App) { a.audio = store }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(a *App) {
		if publisher == nil {
			publisher = events.NoopPublisher{}
		}
		a.events = publisher
	}
}

func WithAnalytics(client AnalyticsClient) Option {
	return func(a *App) { a.analytics = client }
}

func withClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New builds the App. Collaborators that only need configuration (the model
// client, Whisper, the analytics forwarder) are created from cfg; the rest
// default to disabled until supplied through options.
func New(cfg config.Config, db *pgxpool.Pool, opts ...Option) *App {
	app := &App{
		cfg:    cfg,
		db:     db,
		events: events.NoopPublisher{},
		now:    time.Now,
	}
	if cfg.AIEnabled() {
		app.ai = NewOpenAIResponsesClient(cfg)
		if cfg.STTProvider == config.STTProviderOpenAI {
			app.stt = NewWhisperTranscriber(cfg)
		}
	}
	if strings.TrimSpace(cfg.AnalyticsBaseURL) != "" {
		app.analytics = NewHTTPAnalyticsClient(cfg)
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

func (a *App) Router() *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	}))

	router.GET("/health", a.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())
	api.GET("/health", a.health)
	api.POST("/chat", a.chat)
	api.POST("/food-items/create-from-gpt", a.createFoodItemFromGPT)

	protected := api.Group("")
	protected.Use(a.requireUserMiddleware())
	protected.POST("/voice", a.processVoice)

	note := protected.Group("/note")
	note.POST("/exercise", a.saveExerciseNote)
	note.POST("/diet", a.saveDietNote)
	note.GET("/exercise/daily", a.listDailyExercise)
	note.GET("/diet/daily", a.listDailyDiet)

	analytics := protected.Group("/analytics")
	analytics.POST("/health-report", a.analyticsHealthReport)
	analytics.POST("/weight-trends", a.analyticsWeightTrends)
	analytics.POST("/exercise-patterns", a.analyticsExercisePatterns)
	analytics.POST("/ai-insights", a.analyticsAIInsights)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": serviceName,
	})
}

// authMiddleware accepts requests without a token. A present token must be
// valid; its numeric subject becomes the acting user id.
func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" || strings.TrimSpace(a.cfg.JWTSecret) == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Invalid token payload")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
		}
		userID, ok := userIDFromClaim(claims["sub"])
		if !ok {
			writeError(c, http.StatusUnauthorized, "Token subject must be a numeric user id")
			return
		}

		c.Set(authUserIDKey, userID)
		c.Next()
	}
}

func (a *App) requireUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.cfg.RequireAuth {
			c.Next()
			return
		}
		if _, ok := authUserIDFromContext(c); !ok {
			writeError(c, http.StatusUnauthorized, "Bearer token required")
			return
		}
		c.Next()
	}
}

func userIDFromClaim(raw any) (int64, bool) {
	var text string
	switch v := raw.(type) {
	case string:
		text = strings.TrimSpace(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return 0, false
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func authUserIDFromContext(c *gin.Context) (int64, bool) {
	raw, ok := c.Get(authUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := raw.(int64)
	return id, ok
}

// actingUserID prefers the token subject over a client supplied id.
func actingUserID(c *gin.Context, supplied int64) int64 {
	if id, ok := authUserIDFromContext(c); ok {
		return id
	}
	return supplied
}

func registerValidators() {
	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	if err := engine.RegisterValidation(mealTimeValidator, validateMealTime); err != nil {
		log.Printf("register validator name=%s err=%v", mealTimeValidator, err)
	}
}

func validateMealTime(fl validator.FieldLevel) bool {
	_, ok := record.ParseMealTime(fl.Field().String())
	return ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			writeError(c, http.StatusBadRequest, describeValidationErrors(validationErrs))
			return false
		}
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

func describeValidationErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		switch fieldErr.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", jsonFieldName(fieldErr)))
		case mealTimeValidator:
			parts = append(parts, fmt.Sprintf("%s must be one of 아침, 점심, 저녁, 야식, 간식", jsonFieldName(fieldErr)))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of %s", jsonFieldName(fieldErr), fieldErr.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", jsonFieldName(fieldErr)))
		}
	}
	return strings.Join(parts, "; ")
}

var validatedFieldNames = map[string]string{
	"UserID":   "user_id",
	"FoodName": "food_name",
	"Amount":   "amount",
	"MealTime": "meal_time",
	"Name":     "name",
	"Period":   "period",
}

func jsonFieldName(fieldErr validator.FieldError) string {
	if name, ok := validatedFieldNames[fieldErr.Field()]; ok {
		return name
	}
	return strings.ToLower(fieldErr.Field())
}

// publish delivers a record event after commit. Failures are logged only.
func (a *App) publish(ctx context.Context, event events.RecordEvent) {
	if err := a.events.Publish(ctx, event); err != nil {
		log.Printf("record event publish failed record_type=%s record_id=%d err=%v", event.RecordType, event.RecordID, err)
	}
}
