package scanning

import "github.com/zombor/bill-lines/internal/extraction"

// Classifier is a token classifier backed by an external model. Close
// releases the model handle.
type Classifier interface {
	extraction.Classifier
	Close() error
}
