package training

import (
	"sort"

	"fjacquet/autocat/internal/logging"
)

// Summary row labels appended after the per-class rows.
const (
	RowAccuracy    = "accuracy"
	RowMacroAvg    = "macro avg"
	RowWeightedAvg = "weighted avg"
)

// ClassMetrics holds precision, recall and F1 for one class of the held-out
// evaluation set.
type ClassMetrics struct {
	Class     string  `csv:"class" json:"class"`
	Precision float64 `csv:"precision" json:"precision"`
	Recall    float64 `csv:"recall" json:"recall"`
	F1        float64 `csv:"f1_score" json:"f1_score"`
	Support   int     `csv:"support" json:"support"`
}

// Report is the evaluation of a trained model on the held-out split.
type Report struct {
	Accuracy  float64
	Classes   []ClassMetrics
	TrainSize int
	TestSize  int
}

// Evaluate compares predicted with actual labels. The reported classes are
// the sorted union of both; a ratio with a zero denominator is 0.
func Evaluate(actual, predicted []string) Report {
	labels := map[string]struct{}{}
	for _, l := range actual {
		labels[l] = struct{}{}
	}
	for _, l := range predicted {
		labels[l] = struct{}{}
	}
	classes := make([]string, 0, len(labels))
	for l := range labels {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	truePos := map[string]int{}
	predCount := map[string]int{}
	support := map[string]int{}
	correct := 0
	for i := range actual {
		support[actual[i]]++
		predCount[predicted[i]]++
		if actual[i] == predicted[i] {
			truePos[actual[i]]++
			correct++
		}
	}

	report := Report{TestSize: len(actual)}
	if len(actual) > 0 {
		report.Accuracy = float64(correct) / float64(len(actual))
	}
	for _, c := range classes {
		precision := ratio(truePos[c], predCount[c])
		recall := ratio(truePos[c], support[c])
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		report.Classes = append(report.Classes, ClassMetrics{
			Class:     c,
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   support[c],
		})
	}
	return report
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Rows returns the per-class rows followed by the accuracy, macro average and
// support-weighted average rows.
func (r Report) Rows() []ClassMetrics {
	rows := append([]ClassMetrics(nil), r.Classes...)
	rows = append(rows, ClassMetrics{Class: RowAccuracy, F1: r.Accuracy, Support: r.TestSize})

	var macro, weighted ClassMetrics
	macro.Class, weighted.Class = RowMacroAvg, RowWeightedAvg
	total := 0
	for _, c := range r.Classes {
		macro.Precision += c.Precision
		macro.Recall += c.Recall
		macro.F1 += c.F1
		weighted.Precision += c.Precision * float64(c.Support)
		weighted.Recall += c.Recall * float64(c.Support)
		weighted.F1 += c.F1 * float64(c.Support)
		total += c.Support
	}
	if n := float64(len(r.Classes)); n > 0 {
		macro.Precision /= n
		macro.Recall /= n
		macro.F1 /= n
	}
	if total > 0 {
		weighted.Precision /= float64(total)
		weighted.Recall /= float64(total)
		weighted.F1 /= float64(total)
	}
	macro.Support, weighted.Support = total, total
	return append(rows, macro, weighted)
}

// Log writes the report through logger.
func (r Report) Log(logger logging.Logger) {
	logger.Info("Model evaluation",
		logging.Field{Key: "accuracy", Value: r.Accuracy},
		logging.Field{Key: "train_size", Value: r.TrainSize},
		logging.Field{Key: "test_size", Value: r.TestSize})
	for _, c := range r.Classes {
		logger.Debug("Class metrics",
			logging.Field{Key: logging.FieldCategory, Value: c.Class},
			logging.Field{Key: "precision", Value: c.Precision},
			logging.Field{Key: "recall", Value: c.Recall},
			logging.Field{Key: "f1_score", Value: c.F1},
			logging.Field{Key: "support", Value: c.Support})
	}
}
