package eval

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// Sample is one dataset item: the post text and its expected class label.
type Sample struct {
	Text  string
	Label string
}

// LoadDataset reads samples from a CSV or JSON file, chosen by extension.
// limit caps the number of samples; limit <= 0 means all.
func LoadDataset(path string, limit int) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(f, limit)
	case ".json":
		return LoadJSON(f, limit)
	default:
		return nil, fmt.Errorf("dataset %s: unsupported format (want .csv or .json)", path)
	}
}

// LoadCSV reads samples from CSV. The header row names the columns; "text"
// or "post" carries the post, "label" or "class" the expected label. Without
// a recognizable header the first two columns are used.
func LoadCSV(r io.Reader, limit int) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	textCol, labelCol := 0, 1
	headed := false
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "text", "post":
			textCol = i
			headed = true
		case "label", "class":
			labelCol = i
			headed = true
		}
	}

	var samples []Sample
	if !headed && len(header) > labelCol {
		// No header: the first row is already data.
		samples = append(samples, Sample{
			Text:  header[textCol],
			Label: strings.TrimSpace(header[labelCol]),
		})
	}

	for {
		if limit > 0 && len(samples) >= limit {
			return samples, nil
		}
		rec, err := cr.Read()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		if len(rec) <= textCol || len(rec) <= labelCol {
			continue
		}
		samples = append(samples, Sample{
			Text:  rec[textCol],
			Label: strings.TrimSpace(rec[labelCol]),
		})
	}
}

// LoadJSON reads samples from a JSON array of objects. Accepted field names
// match the CSV reader: text/post and label/class.
func LoadJSON(r io.Reader, limit int) ([]Sample, error) {
	var rows []struct {
		Text  string `json:"text"`
		Post  string `json:"post"`
		Label string `json:"label"`
		Class string `json:"class"`
	}
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode json dataset: %w", err)
	}

	samples := make([]Sample, 0, len(rows))
	for _, row := range rows {
		if limit > 0 && len(samples) >= limit {
			break
		}
		text := row.Text
		if text == "" {
			text = row.Post
		}
		label := row.Label
		if label == "" {
			label = row.Class
		}
		samples = append(samples, Sample{Text: text, Label: strings.TrimSpace(label)})
	}
	return samples, nil
}
