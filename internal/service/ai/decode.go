package ai

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chewxy/math32"
	"homewatch/internal/dto"
	"homewatch/internal/model"
)

// DecodeDetections pairs up detector classes and scores, reading at most
// maxDetections entries, and keeps those scoring strictly above threshold.
// Scores are widened to float64 before the comparison.
func DecodeDetections(classes, scores []float32, maxDetections int, threshold float64) []dto.DetectionResult {
	n := min(len(classes), len(scores), maxDetections)
	results := make([]dto.DetectionResult, 0)
	for i := 0; i < n; i++ {
		if float64(scores[i]) > threshold {
			results = append(results, dto.DetectionResult{ClassID: int(classes[i]), Score: scores[i]})
		}
	}
	return results
}

// ContainsClass reports whether any detection has the given class id.
func ContainsClass(detections []dto.DetectionResult, classID int) bool {
	for _, d := range detections {
		if d.ClassID == classID {
			return true
		}
	}
	return false
}

// DecodeActivities maps classifier outputs to activities through labels and
// keeps entries strictly above threshold. Outputs beyond len(labels) are ignored.
func DecodeActivities(outputs []float32, labels []model.ActivityType, threshold float64, softmax bool) (map[model.ActivityType]float64, error) {
	if len(outputs) < len(labels) {
		return nil, fmt.Errorf("classifier returned %d values, expected %d", len(outputs), len(labels))
	}
	probs := outputs[:len(labels)]
	if softmax {
		probs = Softmax(probs)
	}

	scores := make(map[model.ActivityType]float64)
	for i, label := range labels {
		if label == model.Absent {
			continue
		}
		if p := float64(probs[i]); p > threshold {
			scores[label] = p
		}
	}
	return scores, nil
}

// Softmax returns exp(x_i) / sum(exp(x)), shifted by max(x) for stability.
func Softmax(x []float32) []float32 {
	out := make([]float32, len(x))
	if len(x) == 0 {
		return out
	}
	maxV := x[0]
	for _, v := range x[1:] {
		maxV = math32.Max(maxV, v)
	}
	var sum float32
	for i, v := range x {
		out[i] = math32.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// LoadLabels reads one activity name per line. Blank lines and lines
// starting with '#' are skipped.
func LoadLabels(path string) ([]model.ActivityType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()
	return parseLabels(f)
}

func parseLabels(r io.Reader) ([]model.ActivityType, error) {
	var labels []model.ActivityType
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		a, err := model.ParseActivityType(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if a == model.Absent {
			return nil, fmt.Errorf("line %d: %s is not a classifier label", line, a)
		}
		labels = append(labels, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file is empty")
	}
	return labels, nil
}
