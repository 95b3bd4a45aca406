package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Hyeon6492/LifeBit/internal/record"
)

const chatInitialMessage = "안녕하세요! 운동이나 식단을 기록하시려면 먼저 상단의 '운동 기록' 또는 '식단 기록' 버튼을 선택해 주세요."

const chatReplyFormat = `응답은 다음 JSON 한 개로만 작성합니다:
{
  "response_type": "extraction|validation|confirmation",
  "system_message": {
    "data": {수집된_데이터},
    "missing_fields": ["누락된_필드"],
    "next_step": "validation|confirmation|complete"
  },
  "user_message": {"text": "사용자에게 보여줄 메시지"}
}`

const exerciseFieldGuide = `필수 정보:
- 기구 근력운동: exercise, weight, sets, reps
- 맨몸 근력운동(푸시업, 풀업, 플랭크, 크런치, 싯업, 버피): exercise, sets, reps (무게는 프로필 체중 사용)
- 유산소운동(달리기, 조깅, 걷기, 수영, 자전거, 줄넘기, 등산, 트레드밀 등): exercise, duration_min
data 필드: exercise, category("근력운동"|"유산소운동"), subcategory("가슴"|"등"|"하체"|"복근"|"팔"|"어깨"|null), weight, sets, reps, duration_min, is_bodyweight`

const dietFieldGuide = `필수 정보:
- food_name: 음식명
- amount: 섭취량 (예: 1공기, 1개, 1인분, 1컵, 200ml)
- meal_time: "아침"|"점심"|"저녁"|"야식"|"간식"
영양성분은 계산하지 않습니다.`

var chatPrompts = map[record.Category]map[record.Phase]string{
	record.CategoryExercise: {
		record.PhaseExtraction: `당신은 LifeBit의 운동 기록 도우미입니다.
사용자의 말에서 운동 정보를 추출하고 분류(근력운동/유산소운동)와 부위를 스스로 판단합니다.
` + exerciseFieldGuide + `
모든 필수 정보가 있으면 response_type을 confirmation으로, 하나라도 없으면 validation으로 지정합니다.
` + chatReplyFormat,
		record.PhaseValidation: `당신은 LifeBit의 운동 기록 검증 도우미입니다.
누락된 필수 정보를 한 번에 하나씩만 친근하게 질문합니다.
` + exerciseFieldGuide + `
질문 예시: "몇 kg으로 하셨나요?", "몇 세트 하셨어요?", "한 세트에 몇 회씩 하셨나요?", "몇 분 동안 운동하셨나요?"
` + chatReplyFormat,
		record.PhaseConfirmation: `당신은 LifeBit의 운동 기록 확인 도우미입니다.
수집된 운동 정보를 정리해서 보여주고 저장 여부를 묻습니다.
마지막 문장은 "이 정보가 맞나요? 맞으면 '네', 수정이 필요하면 '아니오'라고 해주세요!" 입니다.
` + chatReplyFormat,
	},
	record.CategoryDiet: {
		record.PhaseExtraction: `당신은 LifeBit의 식단 기록 도우미입니다.
사용자의 말에서 먹은 음식과 양, 식사 시간을 추출합니다.
` + dietFieldGuide + `
모든 필수 정보가 있으면 response_type을 confirmation으로, 하나라도 없으면 validation으로 지정합니다.
` + chatReplyFormat,
		record.PhaseValidation: `당신은 LifeBit의 식단 기록 검증 도우미입니다.
누락된 필수 정보를 한 번에 하나씩만 친근하게 질문합니다.
` + dietFieldGuide + `
질문 예시: "어떤 음식을 드셨나요?", "어느 정도 양을 드셨나요? (예: 1개, 1인분, 1공기)", "언제 드셨나요? (아침/점심/저녁/야식/간식)"
` + chatReplyFormat,
		record.PhaseConfirmation: `당신은 LifeBit의 식단 기록 확인 도우미입니다.
수집된 식단 정보를 정리해서 보여주고 저장 여부를 묻습니다.
마지막 문장은 "이 정보가 맞나요? 맞으면 '저장', 수정이 필요하면 '수정'이라고 해주세요!" 입니다.
` + chatReplyFormat,
	},
}

// systemPromptFor picks the prompt for category and phase and appends the
// record collected so far when there is one.
func systemPromptFor(category record.Category, phase record.Phase, current any) string {
	prompt := chatPrompts[category][phase]
	if prompt == "" {
		prompt = chatPrompts[category][record.PhaseExtraction]
	}
	if isEmptyData(current) {
		return prompt
	}
	encoded, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return prompt
	}
	return prompt + "\n\n**현재 수집된 데이터:**\n" + string(encoded)
}

func isEmptyData(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func nutritionPrompt(foodName, amount string) string {
	return fmt.Sprintf(`다음 음식의 영양 정보를 계산해주세요.

음식명: %s
섭취량: %s

다음 형식의 JSON으로만 응답해주세요:
{"calories": 칼로리(kcal), "carbs": 탄수화물(g), "protein": 단백질(g), "fat": 지방(g)}

값은 소수점 첫째자리까지 반올림합니다.`, strings.TrimSpace(foodName), strings.TrimSpace(amount))
}

func nutritionPer100gPrompt(foodName string) string {
	return fmt.Sprintf(`다음 음식의 100g 기준 영양 정보를 계산해주세요.

음식명: %s
기준량: 100g

다음 형식의 JSON으로만 응답해주세요:
{"calories": 100g당_칼로리(kcal), "carbs": 100g당_탄수화물(g), "protein": 100g당_단백질(g), "fat": 100g당_지방(g)}

값은 소수점 첫째자리까지 반올림합니다.`, strings.TrimSpace(foodName))
}
