package generative

import "math"

// tensor is a flat parameter block with its gradient accumulator and the
// optimizer's first/second moment estimates. Matrix parameters alias their
// gonum backing slices here, so the optimizer never needs to know shapes.
type tensor struct {
	name string
	data []float64
	grad []float64
	m    []float64
	v    []float64
}

func newTensor(name string, data []float64) *tensor {
	return &tensor{
		name: name,
		data: data,
		grad: make([]float64, len(data)),
		m:    make([]float64, len(data)),
		v:    make([]float64, len(data)),
	}
}

func (t *tensor) zeroGrad() {
	for i := range t.grad {
		t.grad[i] = 0
	}
}

func (t *tensor) resetMoments() {
	for i := range t.data {
		t.m[i] = 0
		t.v[i] = 0
	}
}

// adam is a plain adaptive-moment-estimation optimizer over a fixed set of
// tensors. One Step applies accumulated gradients and zeroes them.
type adam struct {
	lr      float64
	beta1   float64
	beta2   float64
	eps     float64
	t       int
	tensors []*tensor
}

func newAdam(lr float64, tensors []*tensor) *adam {
	return &adam{
		lr:      lr,
		beta1:   0.9,
		beta2:   0.999,
		eps:     1e-8,
		tensors: tensors,
	}
}

func (a *adam) Step() {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for _, p := range a.tensors {
		for i, g := range p.grad {
			p.m[i] = a.beta1*p.m[i] + (1-a.beta1)*g
			p.v[i] = a.beta2*p.v[i] + (1-a.beta2)*g*g
			mhat := p.m[i] / c1
			vhat := p.v[i] / c2
			p.data[i] -= a.lr * mhat / (math.Sqrt(vhat) + a.eps)
		}
		p.zeroGrad()
	}
}

// Reset discards moment estimates and the step counter, for model reset.
func (a *adam) Reset() {
	a.t = 0
	for _, p := range a.tensors {
		p.resetMoments()
		p.zeroGrad()
	}
}
