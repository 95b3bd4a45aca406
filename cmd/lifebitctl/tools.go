package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hyeon6492/LifeBit/internal/record"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <amount>...",
	Short: "Print canonical amounts for Korean quantity phrases",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", arg, record.NormalizeAmount(arg))
		}
		return nil
	},
}

var (
	caloriesExercise string
	caloriesCategory string
	caloriesDuration float64
	caloriesWeight   float64
	caloriesSets     float64
	caloriesReps     float64
)

var caloriesCmd = &cobra.Command{
	Use:   "calories",
	Short: "Estimate calories burned for one exercise",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(caloriesExercise)
		if name == "" {
			return errors.New("--exercise is required")
		}
		data := record.Fields{
			record.FieldExercise: name,
			record.FieldCategory: calorieCategory(name, caloriesCategory),
		}
		if caloriesDuration > 0 {
			data[record.FieldDurationMin] = caloriesDuration
		}
		if caloriesWeight > 0 {
			data[record.FieldWeight] = caloriesWeight
		}
		if caloriesSets > 0 {
			data[record.FieldSets] = caloriesSets
		}
		if caloriesReps > 0 {
			data[record.FieldReps] = caloriesReps
		}
		kcal := record.EstimateCalories(data)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s kcal\n", name, data[record.FieldCategory], strconv.FormatFloat(kcal, 'f', 1, 64))
		return nil
	},
}

// calorieCategory accepts the Korean labels or cardio/strength; empty input
// is derived from the exercise name.
func calorieCategory(name, raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cardio", record.CategoryLabelCardio:
		return record.CategoryLabelCardio
	case "strength", record.CategoryLabelStrength:
		return record.CategoryLabelStrength
	}
	if record.ClassifyExercise(name) == record.ExerciseCardio {
		return record.CategoryLabelCardio
	}
	return record.CategoryLabelStrength
}

var (
	phaseCategory string
	phaseData     string
)

var phaseCmd = &cobra.Command{
	Use:   "phase <message>",
	Short: "Show the conversation phase and missing fields for a partial record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data := record.Fields{}
		if strings.TrimSpace(phaseData) != "" {
			if err := json.Unmarshal([]byte(phaseData), &data); err != nil {
				return fmt.Errorf("--data must be a JSON object: %w", err)
			}
		}
		phase := record.ResolvePhase(args[0], data, phaseCategory)
		fmt.Fprintf(cmd.OutOrStdout(), "phase=%s\n", phase)
		if category, ok := record.ParseCategory(phaseCategory); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "missing=%s\n", strings.Join(record.MissingFields(category, data), ","))
		}
		return nil
	},
}

func init() {
	caloriesCmd.Flags().StringVar(&caloriesExercise, "exercise", "", "Exercise name, e.g. 달리기")
	caloriesCmd.Flags().StringVar(&caloriesCategory, "category", "", "유산소운동|근력운동 (default: derived from name)")
	caloriesCmd.Flags().Float64Var(&caloriesDuration, "duration", 0, "Duration in minutes (cardio)")
	caloriesCmd.Flags().Float64Var(&caloriesWeight, "weight", 0, "Weight in kg (strength, default 70)")
	caloriesCmd.Flags().Float64Var(&caloriesSets, "sets", 0, "Sets (strength, default 1)")
	caloriesCmd.Flags().Float64Var(&caloriesReps, "reps", 0, "Reps per set (strength, default 1)")

	phaseCmd.Flags().StringVar(&phaseCategory, "category", "exercise", "exercise or diet")
	phaseCmd.Flags().StringVar(&phaseData, "data", "", "Partial record as a JSON object")

	rootCmd.AddCommand(normalizeCmd, caloriesCmd, phaseCmd)
}
