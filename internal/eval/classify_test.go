package eval

import "testing"

func TestResolvePredictionExactClass(t *testing.T) {
	task, _ := LookupTask("stress")
	if got := task.ResolvePrediction("1"); got != "1" {
		t.Fatalf("exact class: got %q", got)
	}
	if got := task.ResolvePrediction("  0\n"); got != "0" {
		t.Fatalf("exact class with whitespace: got %q", got)
	}
}

func TestResolvePredictionDigitInText(t *testing.T) {
	task, _ := LookupTask("depression")
	if got := task.ResolvePrediction("The answer is 2 (moderate)."); got != "2" {
		t.Fatalf("digit scan: got %q", got)
	}
}

func TestResolvePredictionKeywordFallback(t *testing.T) {
	task, _ := LookupTask("depression")
	if got := task.ResolvePrediction("the poster shows severe symptoms"); got != "3" {
		t.Fatalf("keyword fallback: got %q", got)
	}
	stress, _ := LookupTask("stress")
	if got := stress.ResolvePrediction("they sound overwhelmed"); got != "1" {
		t.Fatalf("keyword fallback: got %q", got)
	}
}

func TestResolvePredictionDefault(t *testing.T) {
	task, _ := LookupTask("stress")
	if got := task.ResolvePrediction(""); got != task.DefaultClass {
		t.Fatalf("empty output: got %q", got)
	}
	if got := task.ResolvePrediction("???"); got != task.DefaultClass {
		t.Fatalf("unparseable output: got %q", got)
	}
}

func TestTasksHaveValidDefaults(t *testing.T) {
	for _, task := range Tasks() {
		found := false
		for _, class := range task.Classes {
			if class == task.DefaultClass {
				found = true
			}
		}
		if !found {
			t.Errorf("task %s: default %q not in classes", task.ID, task.DefaultClass)
		}
		if task.MaxNewTokens <= 0 {
			t.Errorf("task %s: no token budget", task.ID)
		}
		if task.BuildPrompt("x") == task.Template {
			t.Errorf("task %s: template has no text slot", task.ID)
		}
	}
}
