package factor

import (
	"errors"
	"fmt"
	"strings"

	"pdufa-lab/internal/domain"
)

// Layer is an evaluation stage. Layers run in ascending numeric order.
type Layer int

const (
	LayerBase Layer = iota + 1
	LayerDesignation
	LayerClinical
	LayerManufacturing
	LayerDispute
	LayerEarnings
	LayerPetition
	LayerAdCom
	LayerCap
)

var layerNames = map[Layer]string{
	LayerBase:          "base",
	LayerDesignation:   "designation",
	LayerClinical:      "clinical",
	LayerManufacturing: "manufacturing",
	LayerDispute:       "dispute",
	LayerEarnings:      "earnings",
	LayerPetition:      "petition",
	LayerAdCom:         "adcom",
	LayerCap:           "cap",
}

// Layers returns every layer in evaluation order.
func Layers() []Layer {
	return []Layer{
		LayerBase,
		LayerDesignation,
		LayerClinical,
		LayerManufacturing,
		LayerDispute,
		LayerEarnings,
		LayerPetition,
		LayerAdCom,
		LayerCap,
	}
}

// String returns the layer name.
func (l Layer) String() string {
	if name, ok := layerNames[l]; ok {
		return name
	}
	return fmt.Sprintf("layer(%d)", int(l))
}

// IsValid checks if the layer is a known value.
func (l Layer) IsValid() bool {
	_, ok := layerNames[l]
	return ok
}

// MarshalText encodes the layer by name.
func (l Layer) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a layer name.
func (l *Layer) UnmarshalText(b []byte) error {
	parsed, err := ParseLayer(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLayer resolves a layer by name.
func ParseLayer(s string) (Layer, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range layerNames {
		if name == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown layer %q", ErrInvalidFactor, s)
}

// Policy is how a factor's adjustment combines with its layer peers.
type Policy int

const (
	// Additive factors contribute every non-neutral adjustment.
	Additive Policy = iota
	// MaxOnly factors compete; only the largest applied adjustment counts.
	MaxOnly
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Additive:
		return "additive"
	case MaxOnly:
		return "max_only"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// MarshalText encodes the policy by name.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a policy name.
func (p *Policy) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "additive":
		*p = Additive
	case "max_only":
		*p = MaxOnly
	default:
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidFactor, string(b))
	}
	return nil
}

// Func evaluates one factor against a context and the layer's input probability.
// The context must not be modified.
type Func func(ctx *domain.AnalysisContext, current float64) (Result, error)

// Info describes a registered factor.
type Info struct {
	Name         string `json:"name"`
	Layer        Layer  `json:"layer"`
	Order        int    `json:"order"` // evaluation order within the layer, ascending
	Version      string `json:"version"`
	Description  string `json:"description"`
	Policy       Policy `json:"policy"`
	Enabled      bool   `json:"enabled"`
	Required     bool   `json:"required,omitempty"`      // cannot be disabled
	StatusReason string `json:"status_reason,omitempty"` // reason given on the last Enable or Disable
}

// Result is the outcome of evaluating one factor.
// A neutral result has zero adjustment and is not applied.
type Result struct {
	Name       string         `json:"name"`
	Adjustment float64        `json:"adjustment"` // signed probability delta
	Reason     string         `json:"reason"`
	Applied    bool           `json:"applied"`
	Confidence float64        `json:"confidence"` // in [0,1]
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Neutral returns a no-op result.
func Neutral(name, reason string) Result {
	return Result{Name: name, Reason: reason, Confidence: 1}
}

// Apply returns an applied result with full confidence.
func Apply(name string, adjustment float64, reason string) Result {
	return Result{Name: name, Adjustment: adjustment, Reason: reason, Applied: true, Confidence: 1}
}

// With returns a copy of r carrying an extra metadata entry.
func (r Result) With(key string, value any) Result {
	md := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		md[k] = v
	}
	md[key] = value
	r.Metadata = md
	return r
}

// Registry errors.
var (
	ErrDuplicateFactor = errors.New("factor already registered")
	ErrInvalidFactor   = errors.New("invalid factor")
	ErrUnknownFactor   = errors.New("unknown factor")
	ErrRequiredFactor  = errors.New("factor is required")
)

// EvalError wraps an error returned by a factor function.
type EvalError struct {
	Factor string
	Layer  Layer
	Err    error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("factor %s (%s): %v", e.Factor, e.Layer, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}
