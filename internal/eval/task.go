// Package eval runs classification benchmarks: it iterates a dataset in
// fixed-size batches, drives one generation session per sample, resolves the
// model's text into a class label, and folds outcomes into a metrics
// aggregator.
package eval

import (
	"fmt"
	"sort"
)

// Task defines one classification benchmark: the prompt wrapper, the valid
// class labels, and the fallbacks used when the model's output does not
// parse cleanly.
type Task struct {
	ID   string
	Name string

	// Classes are the canonical labels, in resolution priority order.
	Classes []string

	// Keywords map a class to lowercase phrases that imply it when the
	// output contains no class token.
	Keywords map[string][]string

	// DefaultClass is the terminal fallback; every sample resolves to
	// something.
	DefaultClass string

	MaxNewTokens int

	// Template receives the post text via fmt.Sprintf.
	Template string
}

func (t Task) BuildPrompt(text string) string {
	return fmt.Sprintf(t.Template, text)
}

var tasks = map[string]Task{
	"stress": {
		ID:      "stress",
		Name:    "Binary stress detection",
		Classes: []string{"0", "1"},
		Keywords: map[string][]string{
			"0": {"no stress", "not stressed", "relaxed", "calm", "fine"},
			"1": {"stress", "anxious", "overwhelmed", "pressure", "worried"},
		},
		DefaultClass: "0",
		MaxNewTokens: 6,
		Template: "Post: \"%s\"\n" +
			"Question: Is the poster experiencing stress? " +
			"Answer with 1 for yes or 0 for no.\nAnswer:",
	},
	"depression": {
		ID:      "depression",
		Name:    "Depression severity (4 levels)",
		Classes: []string{"0", "1", "2", "3"},
		Keywords: map[string][]string{
			"0": {"minimum", "minimal", "none"},
			"1": {"mild"},
			"2": {"moderate"},
			"3": {"severe"},
		},
		DefaultClass: "0",
		MaxNewTokens: 6,
		Template: "Post: \"%s\"\n" +
			"Question: Rate the poster's depression severity. " +
			"Answer with 0 (minimum), 1 (mild), 2 (moderate) or 3 (severe).\nAnswer:",
	},
	"suicide": {
		ID:      "suicide",
		Name:    "Suicidal ideation screening",
		Classes: []string{"0", "1"},
		Keywords: map[string][]string{
			"0": {"no ideation", "not suicidal", "no risk"},
			"1": {"suicid", "self-harm", "end my life", "ideation"},
		},
		DefaultClass: "0",
		MaxNewTokens: 6,
		Template: "Post: \"%s\"\n" +
			"Question: Does the post indicate suicidal ideation? " +
			"Answer with 1 for yes or 0 for no.\nAnswer:",
	},
}

// LookupTask returns the builtin task with the given id.
func LookupTask(id string) (Task, bool) {
	t, ok := tasks[id]
	return t, ok
}

// Tasks lists the builtin tasks sorted by id.
func Tasks() []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
