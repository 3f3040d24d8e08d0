package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"curator/internal/models"
)

// LayerName is the name recorded in LayersInvoked and LayerErrors.
const LayerName = "classifiers"

// Layer fans a text out to every registered classifier and joins on
// completion or quorum.
type Layer struct {
	registry *Registry
	quorum   int
}

// NewLayer builds a layer. A quorum of zero, or one larger than the number of
// registered classifiers, means "all of them".
func NewLayer(registry *Registry, quorum int) *Layer {
	return &Layer{registry: registry, quorum: quorum}
}

// Result is the aggregated output of one layer run.
type Result struct {
	Classification models.ClassificationResult
	Confidence     float64  // minimum confidence among reporting classifiers
	Reported       []string // classifiers that contributed, in registration order
	Errors         []models.LayerError
}

type outcome struct {
	index      int
	name       string
	result     models.ClassificationResult
	confidence float64
	err        error
}

// Run classifies text with every registered classifier. It returns an error
// only when no classifier reported: the context error if the context ended,
// a LayerFailureError otherwise. Partial failures are listed on Result.
func (l *Layer) Run(ctx context.Context, text string) (Result, error) {
	classifiers := l.registry.List()
	n := len(classifiers)
	if n == 0 {
		return Result{}, &models.LayerFailureError{Layer: LayerName, Err: errors.New("no classifiers registered")}
	}
	need := l.quorum
	if need <= 0 || need > n {
		need = n
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel() // releases stragglers once quorum is reached

	outcomes := make(chan outcome, n) // buffered: late classifiers never block
	var g errgroup.Group
	g.SetLimit(n)
	for i, c := range classifiers {
		g.Go(func() error {
			res, conf, err := c.Classify(runCtx, text)
			outcomes <- outcome{index: i, name: c.Name(), result: res, confidence: conf, err: err}
			return nil
		})
	}

	collected := make([]*outcome, n)
	received, succeeded := 0, 0
	var errs []models.LayerError

collect:
	for received < n && succeeded < need {
		select {
		case o := <-outcomes:
			received++
			if o.err != nil {
				errs = append(errs, classifierError(o.name, o.err))
				log.WithError(o.err).WithField("classifier", o.name).Warn("classifier failed")
				continue
			}
			if o.confidence < 0 || o.confidence > 1 || math.IsNaN(o.confidence) {
				errs = append(errs, classifierError(o.name, fmt.Errorf("confidence %v out of range", o.confidence)))
				continue
			}
			collected[o.index] = &o
			succeeded++
		case <-ctx.Done():
			break collect
		}
	}

	if ctx.Err() != nil && succeeded < need {
		for i, c := range classifiers {
			if collected[i] == nil && !hasError(errs, c.Name()) {
				errs = append(errs, models.LayerError{Layer: "classifier:" + c.Name(), Kind: "timeout", Message: ctx.Err().Error()})
			}
		}
	}

	res := Result{Errors: errs, Confidence: 1}
	for _, o := range collected {
		if o == nil {
			continue
		}
		res.Classification = models.MergePessimistic(res.Classification, stamp(o.result, o.name, o.confidence))
		res.Confidence = math.Min(res.Confidence, o.confidence)
		res.Reported = append(res.Reported, o.name)
	}

	if len(res.Reported) == 0 {
		res.Confidence = 0
		if ctx.Err() != nil {
			// the engine turns a deadline into a LayerTimeoutError with its own budget
			return res, ctx.Err()
		}
		return res, &models.LayerFailureError{Layer: LayerName, Err: fmt.Errorf("all %d classifiers failed", n)}
	}
	return res, nil
}

// stamp fills in source and default confidence on dimensions a classifier
// left blank.
func stamp(c models.ClassificationResult, name string, conf float64) models.ClassificationResult {
	c = c.Clone()
	if c.Safety != nil {
		if c.Safety.Source == "" {
			c.Safety.Source = name
		}
		if c.Safety.Confidence == 0 {
			c.Safety.Confidence = conf
		}
	}
	if c.Educational != nil {
		if c.Educational.Source == "" {
			c.Educational.Source = name
		}
		if c.Educational.Confidence == 0 {
			c.Educational.Confidence = conf
		}
	}
	if c.Viewpoint != nil {
		if c.Viewpoint.Source == "" {
			c.Viewpoint.Source = name
		}
		if c.Viewpoint.Confidence == 0 {
			c.Viewpoint.Confidence = conf
		}
	}
	if c.Scam != nil {
		if c.Scam.Source == "" {
			c.Scam.Source = name
		}
		if c.Scam.Confidence == 0 {
			c.Scam.Confidence = conf
		}
	}
	return c
}

func classifierError(name string, err error) models.LayerError {
	kind := "failure"
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrLayerTimeout) {
		kind = "timeout"
	}
	return models.LayerError{Layer: "classifier:" + name, Kind: kind, Message: err.Error()}
}

func hasError(errs []models.LayerError, name string) bool {
	for _, e := range errs {
		if e.Layer == "classifier:"+name {
			return true
		}
	}
	return false
}
