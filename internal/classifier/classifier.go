// Package classifier runs independent specialized classifiers concurrently and
// folds their partial results into one pessimistic classification.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"curator/internal/models"
)

// Classifier contributes one or more classification dimensions plus an
// overall confidence for its contribution.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) (models.ClassificationResult, float64, error)
}

// ErrDuplicateClassifier is returned when a name is registered twice.
var ErrDuplicateClassifier = errors.New("classifier already registered")

// Registry holds the registered classifiers in registration order.
type Registry struct {
	mu          sync.RWMutex
	classifiers []Classifier
	names       map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register adds a classifier. Names must be unique.
func (r *Registry) Register(c Classifier) error {
	if c == nil {
		return errors.New("classifier cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[c.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateClassifier, c.Name())
	}
	r.names[c.Name()] = struct{}{}
	r.classifiers = append(r.classifiers, c)
	return nil
}

// Unregister removes a classifier by name and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[name]; !ok {
		return false
	}
	delete(r.names, name)
	for i, c := range r.classifiers {
		if c.Name() == name {
			r.classifiers = append(r.classifiers[:i:i], r.classifiers[i+1:]...)
			break
		}
	}
	return true
}

// List returns a snapshot of the registered classifiers.
func (r *Registry) List() []Classifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Classifier(nil), r.classifiers...)
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.classifiers))
	for _, c := range r.classifiers {
		out = append(out, c.Name())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classifiers)
}

// RegisterDefaults registers the built-in lexical classifiers.
func RegisterDefaults(r *Registry) error {
	for _, c := range []Classifier{
		NewToxicityClassifier(),
		NewExplicitClassifier(),
		NewScamClassifier(),
		NewEducationalClassifier(),
		NewViewpointClassifier(),
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
