package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Hyeon6492/LifeBit/internal/events"
	"github.com/Hyeon6492/LifeBit/internal/observability"
)

// createFoodItemFromGPT registers a food with model estimated per-100 g
// nutrition. The name comes from the food_name query parameter or, failing
// that, a JSON body.
func (a *App) createFoodItemFromGPT(c *gin.Context) {
	foodName := strings.TrimSpace(c.Query("food_name"))
	if foodName == "" && c.Request.ContentLength != 0 {
		var payload foodItemRequest
		if err := c.ShouldBindJSON(&payload); err == nil {
			foodName = strings.TrimSpace(payload.FoodName)
		}
	}
	if foodName == "" {
		writeError(c, http.StatusBadRequest, "food_name is required")
		return
	}

	ctx := c.Request.Context()
	existing, found, err := findFoodItem(ctx, a.db, foodName)
	if err != nil {
		a.writeFoodItemError(c, foodName, err)
		return
	}
	if found && existing.NutritionSource != nutritionSourceFallback {
		c.JSON(http.StatusOK, foodItemExistsResponse(existing.ID, foodName))
		return
	}

	nutrition, source := a.estimateNutritionPer100g(ctx, foodName)
	if found {
		// A row saved with fallback values is re-estimated until the model answers.
		a.refreshFoodItem(c, existing.ID, foodName, nutrition, source)
		return
	}
	id, created, err := findOrCreateFoodItem(ctx, a.db, foodName, nutrition, source)
	if err != nil {
		a.writeFoodItemError(c, foodName, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, foodItemExistsResponse(id, foodName))
		return
	}

	log.Printf("food item created food_item_id=%d name=%q calories_per_100g=%.1f", id, foodName, nutrition.Calories)
	observability.RecordSaved(events.RecordTypeFoodItem, events.SourceGPT)
	a.publish(ctx, events.NewRecordEvent(events.RecordTypeFoodItem, id, 0, events.SourceGPT, map[string]any{
		"name":      foodName,
		"nutrition": nutrition,
	}))

	c.JSON(http.StatusOK, gin.H{
		"message":      "새로운 음식 아이템 생성 성공",
		"food_item_id": id,
		"food_name":    foodName,
		"nutrition":    nutrition,
	})
}

func (a *App) refreshFoodItem(c *gin.Context, id int64, foodName string, nutrition Nutrition, source string) {
	if source == nutritionSourceFallback {
		c.JSON(http.StatusOK, foodItemExistsResponse(id, foodName))
		return
	}
	refreshed, err := refreshFallbackFoodItem(c.Request.Context(), a.db, id, nutrition)
	if err != nil {
		a.writeFoodItemError(c, foodName, err)
		return
	}
	if !refreshed {
		c.JSON(http.StatusOK, foodItemExistsResponse(id, foodName))
		return
	}
	log.Printf("food item refreshed food_item_id=%d name=%q calories_per_100g=%.1f", id, foodName, nutrition.Calories)
	c.JSON(http.StatusOK, gin.H{
		"message":      "음식 아이템 영양 정보 갱신 성공",
		"food_item_id": id,
		"food_name":    foodName,
		"nutrition":    nutrition,
	})
}

func foodItemExistsResponse(id int64, name string) gin.H {
	return gin.H{
		"message":      "이미 존재하는 음식입니다",
		"food_item_id": id,
		"food_name":    name,
	}
}

func (a *App) writeFoodItemError(c *gin.Context, foodName string, err error) {
	log.Printf("food item create failed name=%q err=%v", foodName, err)
	writeError(c, http.StatusInternalServerError, fmt.Sprintf("음식 아이템 생성 실패: %v", err))
}
