package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("execute root help: %v", err)
	}
	for _, name := range []string{"normalize", "calories", "phase", "seed", "cleanup"} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %q in help output:\n%s", name, out)
		}
	}
}

func TestNormalizeCommand(t *testing.T) {
	out, err := runCLI(t, "normalize", "1인분", "한 공기", "200g")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	want := "1인분\t1그릇\n한 공기\t한 그릇\n200g\t200g\n"
	if out != want {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", out, want)
	}
}

func TestNormalizeRequiresArgument(t *testing.T) {
	if _, err := runCLI(t, "normalize"); err == nil {
		t.Fatalf("expected error without arguments")
	}
}

func TestCaloriesCommandCardio(t *testing.T) {
	out, err := runCLI(t, "calories", "--exercise", "달리기", "--category", "", "--duration", "30", "--weight", "0", "--sets", "0", "--reps", "0")
	if err != nil {
		t.Fatalf("calories failed: %v", err)
	}
	if strings.TrimSpace(out) != "달리기\t유산소운동\t300.0 kcal" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCaloriesCommandStrength(t *testing.T) {
	out, err := runCLI(t, "calories", "--exercise", "벤치프레스", "--category", "strength", "--duration", "0", "--weight", "60", "--sets", "3", "--reps", "10")
	if err != nil {
		t.Fatalf("calories failed: %v", err)
	}
	// 60*3*10*0.05 + 3*2*5
	if strings.TrimSpace(out) != "벤치프레스\t근력운동\t120.0 kcal" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCaloriesCommandRequiresExercise(t *testing.T) {
	if _, err := runCLI(t, "calories", "--exercise", " "); err == nil {
		t.Fatalf("expected --exercise error")
	}
}

func TestPhaseCommandReportsMissingFields(t *testing.T) {
	out, err := runCLI(t, "phase", "스쿼트 했어", "--category", "exercise", "--data", `{"exercise":"스쿼트","weight":80}`)
	if err != nil {
		t.Fatalf("phase failed: %v", err)
	}
	if !strings.Contains(out, "phase=validation") {
		t.Fatalf("expected validation phase, got %q", out)
	}
	if !strings.Contains(out, "missing=sets,reps") {
		t.Fatalf("expected missing sets,reps, got %q", out)
	}
}

func TestPhaseCommandRejectsBadData(t *testing.T) {
	if _, err := runCLI(t, "phase", "안녕", "--data", "[1,2"); err == nil {
		t.Fatalf("expected JSON error")
	}
}

func TestSeedRequiresUserID(t *testing.T) {
	if _, err := runCLI(t, "seed", "--user-id", "0"); err == nil {
		t.Fatalf("expected --user-id error")
	}
}
