package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultAnalyticsPeriod = "month"

var analyticsFailureLabels = map[string]string{
	analyticsHealthReport:     "건강 리포트 생성",
	analyticsExercisePatterns: "운동 패턴 분석",
	analyticsAIInsights:       "AI 인사이트 생성",
}

func (a *App) analyticsHealthReport(c *gin.Context) {
	a.forwardAnalytics(c, analyticsHealthReport, "report", true)
}

func (a *App) analyticsExercisePatterns(c *gin.Context) {
	a.forwardAnalytics(c, analyticsExercisePatterns, "data", false)
}

func (a *App) analyticsAIInsights(c *gin.Context) {
	a.forwardAnalytics(c, analyticsAIInsights, "insights", false)
}

// analyticsWeightTrends fails with 500 instead of the error envelope the
// other analytics routes use.
func (a *App) analyticsWeightTrends(c *gin.Context) {
	userID, period, ok := a.bindAnalyticsRequest(c)
	if !ok {
		return
	}
	output, err := a.fetchAnalytics(c, analyticsWeightTrends, userID, period)
	if err != nil {
		log.Printf("analytics failed kind=%s user_id=%d err=%v", analyticsWeightTrends, userID, err)
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	analysis, chart := output, any(nil)
	if body, ok := output.(map[string]any); ok {
		if value, found := body["analysis"]; found {
			analysis = value
			chart = body["chart"]
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"analysis": analysis,
		"chart":    chart,
	})
}

func (a *App) forwardAnalytics(c *gin.Context, kind, resultKey string, stamp bool) {
	userID, period, ok := a.bindAnalyticsRequest(c)
	if !ok {
		return
	}
	output, err := a.fetchAnalytics(c, kind, userID, period)
	if err != nil {
		log.Printf("analytics failed kind=%s user_id=%d err=%v", kind, userID, err)
		c.JSON(http.StatusOK, gin.H{
			"status":  "error",
			"message": fmt.Sprintf("%s 중 오류가 발생했습니다: %v", analyticsFailureLabels[kind], err),
			"period":  period,
			"user_id": userID,
		})
		return
	}

	response := gin.H{
		"status":  "success",
		resultKey: output,
		"period":  period,
		"user_id": userID,
	}
	if stamp {
		response["generated_at"] = a.now().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, response)
}

func (a *App) fetchAnalytics(c *gin.Context, kind string, userID int64, period string) (any, error) {
	if a.analytics == nil {
		return nil, ErrAnalyticsNotConfigured
	}
	return a.analytics.Fetch(c.Request.Context(), kind, userID, period)
}

func (a *App) bindAnalyticsRequest(c *gin.Context) (int64, string, bool) {
	var payload analyticsRequest
	if !mustJSON(c, &payload) {
		return 0, "", false
	}
	userID := actingUserID(c, payload.UserID)
	if userID <= 0 {
		writeError(c, http.StatusBadRequest, "user_id is required")
		return 0, "", false
	}
	period := strings.TrimSpace(payload.Period)
	if period == "" {
		period = defaultAnalyticsPeriod
	}
	return userID, period, true
}
