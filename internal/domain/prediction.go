package domain

// Label is the class index predicted by the classifier. Index 0 is not
// important; every other index routes to the important collection.
type Label int

const (
	// LabelNotImportant is class index 0.
	LabelNotImportant Label = 0
	// LabelImportant is class index 1.
	LabelImportant Label = 1
)

// IsImportant reports whether the label routes to the important collection.
func (l Label) IsImportant() bool { return l != LabelNotImportant }

// String returns the metric-friendly label name.
func (l Label) String() string {
	if l.IsImportant() {
		return "important"
	}
	return "not_important"
}

// Prediction is the classifier output for one input text.
type Prediction struct {
	Label         Label
	Probability   float64
	Probabilities []float64
	Embedding     []float32
}
