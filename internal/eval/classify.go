package eval

import "strings"

// ResolvePrediction maps raw model output to a class label. Resolution never
// fails: an exact class token wins, then the first class digit appearing
// anywhere in the output, then the keyword map, then the task default.
func (t Task) ResolvePrediction(output string) string {
	out := strings.ToLower(strings.TrimSpace(output))
	if out == "" {
		return t.DefaultClass
	}

	for _, class := range t.Classes {
		if out == class {
			return class
		}
	}

	for _, r := range out {
		for _, class := range t.Classes {
			if len(class) == 1 && string(r) == class {
				return class
			}
		}
	}

	for _, class := range t.Classes {
		for _, kw := range t.Keywords[class] {
			if strings.Contains(out, kw) {
				return class
			}
		}
	}

	return t.DefaultClass
}
