package kernels

import (
	"fmt"
	"math"
)

// Kernel is a covariance function over encoded candidates.
type Kernel interface {
	// Eval computes the kernel value between two points x1 and x2
	Eval(x1, x2 []float64) float64

	// Hyperparameters returns [lengthScale, signalVariance]
	Hyperparameters() []float64

	// SetHyperparameters sets the kernel's hyperparameters
	SetHyperparameters(params []float64) error

	// Clone returns an independent copy
	Clone() Kernel
}

// Name identifies a kernel family.
type Name string

const (
	RBF      Name = "rbf"
	Matern52 Name = "matern52"
)

// New builds the kernel family name with the given hyperparameters.
func New(name Name, lengthScale, signalVar float64) (Kernel, error) {
	switch name {
	case RBF:
		return NewRBFKernel(lengthScale, signalVar)
	case Matern52, "":
		return NewMatern52Kernel(lengthScale, signalVar)
	}
	return nil, fmt.Errorf("unknown kernel %q", name)
}

type params struct {
	// Length scale (larger = smoother function)
	lengthScale float64
	// Signal variance (amplitude of the function)
	signalVar float64
}

func newParams(lengthScale, signalVar float64) (params, error) {
	p := params{}
	if err := p.set([]float64{lengthScale, signalVar}); err != nil {
		return p, err
	}
	return p, nil
}

func (p *params) set(v []float64) error {
	if len(v) != 2 {
		return fmt.Errorf("expected 2 hyperparameters, got %d", len(v))
	}
	if !(v[0] > 0) || !(v[1] > 0) || math.IsInf(v[0], 0) || math.IsInf(v[1], 0) {
		return fmt.Errorf("hyperparameters must be positive, got %v", v)
	}
	p.lengthScale = v[0]
	p.signalVar = v[1]
	return nil
}

func (p params) get() []float64 { return []float64{p.lengthScale, p.signalVar} }

func squaredDistance(x1, x2 []float64) float64 {
	sumSq := 0.0
	for i := range x1 {
		diff := x1[i] - x2[i]
		sumSq += diff * diff
	}
	return sumSq
}

// RBFKernel implements the Radial Basis Function (squared exponential) kernel
type RBFKernel struct {
	params
}

// NewRBFKernel creates a new RBF kernel with the given parameters
func NewRBFKernel(lengthScale, signalVar float64) (*RBFKernel, error) {
	p, err := newParams(lengthScale, signalVar)
	if err != nil {
		return nil, err
	}
	return &RBFKernel{params: p}, nil
}

// Eval computes the RBF kernel value between x1 and x2
func (k *RBFKernel) Eval(x1, x2 []float64) float64 {
	r2 := squaredDistance(x1, x2) / (2.0 * k.lengthScale * k.lengthScale)
	return k.signalVar * math.Exp(-r2)
}

// Hyperparameters returns the current hyperparameters
func (k *RBFKernel) Hyperparameters() []float64 { return k.get() }

// SetHyperparameters sets the kernel's hyperparameters
func (k *RBFKernel) SetHyperparameters(v []float64) error { return k.set(v) }

// Clone returns a copy of k.
func (k *RBFKernel) Clone() Kernel {
	c := *k
	return &c
}

// Matern52Kernel implements the Matérn 5/2 kernel
type Matern52Kernel struct {
	params
}

// NewMatern52Kernel creates a new Matérn 5/2 kernel with the given parameters
func NewMatern52Kernel(lengthScale, signalVar float64) (*Matern52Kernel, error) {
	p, err := newParams(lengthScale, signalVar)
	if err != nil {
		return nil, err
	}
	return &Matern52Kernel{params: p}, nil
}

// Eval computes the Matérn 5/2 kernel value between x1 and x2
func (k *Matern52Kernel) Eval(x1, x2 []float64) float64 {
	r := math.Sqrt(squaredDistance(x1, x2)) / k.lengthScale
	polyTerm := 1.0 + math.Sqrt(5)*r + (5.0/3.0)*r*r
	expTerm := math.Exp(-math.Sqrt(5) * r)
	return k.signalVar * polyTerm * expTerm
}

// Hyperparameters returns the current hyperparameters
func (k *Matern52Kernel) Hyperparameters() []float64 { return k.get() }

// SetHyperparameters sets the kernel's hyperparameters
func (k *Matern52Kernel) SetHyperparameters(v []float64) error { return k.set(v) }

// Clone returns a copy of k.
func (k *Matern52Kernel) Clone() Kernel {
	c := *k
	return &c
}
