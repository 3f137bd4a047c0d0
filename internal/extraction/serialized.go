package extraction

import (
	"context"
	"sync"
)

type serializedClassifier struct {
	mu sync.Mutex
	c  Classifier
}

// Serialized wraps a classifier whose model handle is not safe for concurrent
// inference so that calls run one at a time.
func Serialized(c Classifier) Classifier {
	return &serializedClassifier{c: c}
}

func (s *serializedClassifier) Classify(ctx context.Context, page Page, texts []string, boxes []Box) ([]Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Classify(ctx, page, texts, boxes)
}
