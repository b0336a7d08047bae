package learn

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

type envelope struct {
	Family    Family          `json:"family,omitempty"`
	Kind      string          `json:"kind"`
	Threshold float64         `json:"threshold,omitempty"`
	Model     json.RawMessage `json:"model"`
}

const (
	kindClassifier = "classifier"
	kindRegressor  = "forest_regressor"
)

// MarshalClassifier serializes a fitted classifier, including the decision
// threshold when c is a *Thresholded.
func MarshalClassifier(c Classifier) ([]byte, error) {
	env := envelope{Kind: kindClassifier}
	if t, ok := c.(*Thresholded); ok {
		env.Threshold = t.Threshold
		c = t.Base
	}
	env.Family = c.Family()
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "learn: marshal classifier")
	}
	env.Model = raw
	return json.Marshal(env)
}

// UnmarshalClassifier restores a classifier written by MarshalClassifier.
// A stored threshold yields a *Thresholded.
func UnmarshalClassifier(data []byte) (Classifier, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrap(err, "learn: decode classifier envelope")
	}
	if env.Kind != kindClassifier {
		return nil, eris.Errorf("learn: expected %s, got %q", kindClassifier, env.Kind)
	}

	var c Classifier
	switch env.Family {
	case FamilyRandomForest, FamilyExtraTrees:
		c = &ForestClassifier{}
	case FamilyGradientBoosting:
		c = &GradientBoosting{}
	case FamilyLogistic:
		c = &Logistic{}
	default:
		return nil, eris.Wrapf(ErrUnknownFamily, "learn: decode family %q", env.Family)
	}
	if err := json.Unmarshal(env.Model, c); err != nil {
		return nil, eris.Wrapf(err, "learn: decode %s", env.Family)
	}
	if env.Threshold > 0 {
		return &Thresholded{Base: c, Threshold: env.Threshold}, nil
	}
	return c, nil
}

// MarshalRegressor serializes a fitted forest regressor.
func MarshalRegressor(r *ForestRegressor) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "learn: marshal regressor")
	}
	return json.Marshal(envelope{Kind: kindRegressor, Model: raw})
}

// UnmarshalRegressor restores a regressor written by MarshalRegressor.
func UnmarshalRegressor(data []byte) (*ForestRegressor, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, eris.Wrap(err, "learn: decode regressor envelope")
	}
	if env.Kind != kindRegressor {
		return nil, eris.Errorf("learn: expected %s, got %q", kindRegressor, env.Kind)
	}
	r := &ForestRegressor{}
	if err := json.Unmarshal(env.Model, r); err != nil {
		return nil, eris.Wrap(err, "learn: decode regressor")
	}
	return r, nil
}
