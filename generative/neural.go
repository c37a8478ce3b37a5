package generative

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"activeinference/grid_world"
)

// Token classes for the learned model's grid-cell tokens.
const (
	tokenEmpty = iota
	tokenHunted
	tokenPredator
	tokenWall
	numTokenClasses
)

const lnEps = 1e-5

// NeuralConfig holds the learned model's hyper-parameters.
type NeuralConfig struct {
	// HiddenDim is the token embedding width; must be divisible by 4 so the
	// 2D sinusoidal positional encoding can split evenly across axes.
	HiddenDim int
	// FFDim is the feed-forward hidden width.
	FFDim int
	// LearningRate is the fixed Adam step size.
	LearningRate float64
	// ReplayCapacity bounds the circular transition buffer.
	ReplayCapacity int
	// BatchSize is the mini-batch drawn per observed transition.
	BatchSize int
}

func (c NeuralConfig) withDefaults() NeuralConfig {
	if c.HiddenDim == 0 {
		c.HiddenDim = 32
	}
	if c.FFDim == 0 {
		c.FFDim = 2 * c.HiddenDim
	}
	if c.LearningRate == 0 {
		c.LearningRate = 1e-3
	}
	if c.ReplayCapacity == 0 {
		c.ReplayCapacity = 256
	}
	if c.BatchSize == 0 {
		c.BatchSize = 16
	}
	return c
}

// Neural is the learned transition model: a compact single-block pre-norm
// transformer over all grid cells. Every cell is a token (empty, hunted,
// predator or wall) carrying a fixed 2D sinusoidal positional encoding
// summed with its learned content embedding; full O(N^2) attention is
// intentional given small grids. The head projects every token to one
// scalar logit and a softmax over all N logits yields the distribution of
// where the hunted agent appears next. Training is online mini-batch over
// a replay buffer, cross-entropy against the observed target cell, Adam.
type Neural struct {
	grid    *grid_world.Grid
	tracked []grid_world.Entity
	hunted  grid_world.Entity
	cfg     NeuralConfig
	rng     *rand.Rand

	net *transformer
	opt *adam
	buf *Replay

	lastTokens []int
	hasLast    bool

	lastProbs     []float64
	lastHuntedPos grid_world.Position
	hasProbs      bool
}

// NewNeural builds the learned model for the passed grid. tracked lists the
// entities rendered into the token grid, in order; it must include the
// hunted entity, whose next position is the prediction target.
func NewNeural(
	grid *grid_world.Grid,
	hunted grid_world.Entity,
	tracked []grid_world.Entity,
	cfg NeuralConfig,
	rng *rand.Rand,
) (*Neural, error) {
	cfg = cfg.withDefaults()
	if cfg.HiddenDim%4 != 0 {
		return nil, fmt.Errorf("hidden dim %d not divisible by 4", cfg.HiddenDim)
	}
	if hunted == nil {
		return nil, fmt.Errorf("neural model requires a hunted entity")
	}
	found := false
	for _, e := range tracked {
		if _, err := tokenClass(e.Tag()); err != nil {
			return nil, err
		}
		if e == hunted {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("tracked entities must include the hunted entity")
	}

	n := grid.Size() * grid.Size()
	net := newTransformer(grid.Size(), cfg.HiddenDim, cfg.FFDim, rng)
	return &Neural{
		grid:    grid,
		tracked: tracked,
		hunted:  hunted,
		cfg:     cfg,
		rng:     rng,
		net:     net,
		opt:     newAdam(cfg.LearningRate, net.tensors),
		buf:     NewReplay(cfg.ReplayCapacity),

		lastProbs: make([]float64, n),
	}, nil
}

func tokenClass(tag rune) (int, error) {
	switch tag {
	case grid_world.HuntedTag:
		return tokenHunted, nil
	case grid_world.PredatorTag:
		return tokenPredator, nil
	}
	return 0, fmt.Errorf("no token class for entity tag %q", tag)
}

// snapshot renders the current grid as token classes in row-major order.
func (nm *Neural) snapshot() []int {
	size := nm.grid.Size()
	tokens := make([]int, size*size)
	for _, wall := range nm.grid.Walls() {
		tokens[wall.Y*size+wall.X] = tokenWall
	}
	for _, e := range nm.tracked {
		pos := nm.grid.Normalize(e.Position())
		class, _ := tokenClass(e.Tag())
		tokens[pos.Y*size+pos.X] = class
	}
	return tokens
}

// Update observes the hunted entity or a perception gap (nil). On a non-nil
// observation the transition from the previous snapshot to the observed
// cell is stored in the replay buffer and one sampled mini-batch is
// trained; the current snapshot then becomes the recorded state and its
// forward pass is cached for MovementProbabilities and the renderer. A gap
// clears only the previous-snapshot tracking, mirroring the count model:
// the next observed move has no source state and is dropped, not
// misattributed.
func (nm *Neural) Update(observed grid_world.Entity) {
	if observed == nil {
		nm.hasLast = false
		return
	}

	size := nm.grid.Size()
	pos := nm.grid.Normalize(observed.Position())
	if nm.hasLast {
		nm.buf.Add(nm.lastTokens, pos.Y*size+pos.X)
		if nm.buf.Len() >= nm.cfg.BatchSize {
			nm.trainBatch(nm.buf.Sample(nm.rng, nm.cfg.BatchSize))
		}
	}

	tokens := nm.snapshot()
	probs := nm.net.forward(tokens, nil)
	copy(nm.lastProbs, probs)
	nm.lastHuntedPos = pos
	nm.hasProbs = true

	nm.lastTokens = tokens
	nm.hasLast = true
}

func (nm *Neural) trainBatch(batch []Transition) {
	scale := 1.0 / float64(len(batch))
	for _, tr := range batch {
		cache := &fwdCache{}
		nm.net.forward(tr.Tokens, cache)
		nm.net.backward(cache, tr.Target, scale)
	}
	nm.opt.Step()
}

// MovementProbabilities derives a direction distribution from the cached
// position grid by re-centering it on the hunted agent's recorded position
// and aggregating mass per unit offset. Mass outside the 8-neighborhood is
// dropped and the result renormalized, so downstream consumers see the
// same shape of answer the count model gives. Empty until the first
// observation.
func (nm *Neural) MovementProbabilities() map[grid_world.Direction]float64 {
	probs := map[grid_world.Direction]float64{}
	if !nm.hasProbs {
		return probs
	}

	size := nm.grid.Size()
	total := 0.0
	for _, dir := range grid_world.Directions {
		tgt := nm.grid.Normalize(grid_world.Position{
			X: nm.lastHuntedPos.X + dir.DX,
			Y: nm.lastHuntedPos.Y + dir.DY,
		})
		p := nm.lastProbs[tgt.Y*size+tgt.X]
		probs[dir] = p
		total += p
	}
	if total <= 0 {
		return map[grid_world.Direction]float64{}
	}
	for dir := range probs {
		probs[dir] /= total
	}
	return probs
}

// PositionGrid returns the cached full position-probability grid for the
// renderer.
func (nm *Neural) PositionGrid() [][]float64 {
	size := nm.grid.Size()
	out := make([][]float64, size)
	for y := 0; y < size; y++ {
		out[y] = make([]float64, size)
		copy(out[y], nm.lastProbs[y*size:(y+1)*size])
	}
	return out
}

// Loss returns the cross-entropy of the model's prediction for a single
// transition, without training. Exposed for convergence checks.
func (nm *Neural) Loss(tokens []int, target int) float64 {
	probs := nm.net.forward(tokens, nil)
	return -math.Log(math.Max(probs[target], 1e-12))
}

// Snapshot exposes the current token rendering, for diagnostics and tests.
func (nm *Neural) Snapshot() []int {
	return nm.snapshot()
}

// Reset reinitializes every weight tensor from the same fan-scaled uniform
// initializer family used at construction, discards the optimizer's moment
// estimates, clears the replay buffer and forgets all tracking. All-or
// nothing: weights are never partially reset.
func (nm *Neural) Reset() {
	nm.net.init(nm.rng)
	nm.opt.Reset()
	nm.buf.Clear()
	nm.hasLast = false
	nm.hasProbs = false
	for i := range nm.lastProbs {
		nm.lastProbs[i] = 0
	}
}

// transformer is the parameter set and forward/backward passes. One block:
// pre-norm single-head self-attention with residual, pre-norm feed-forward
// with residual, final layer norm, scalar output projection per token.
type transformer struct {
	n, d, f  int
	invSqrtD float64

	tensors []*tensor

	emb, wq, wk, wv, wo, w1, w2              *mat.Dense
	gEmb, gWq, gWk, gWv, gWo, gW1, gW2       *mat.Dense
	b1, b2, gB1, gB2                         []float64
	ln1g, ln1b, ln2g, ln2b, ln3g, ln3b       []float64
	gLn1g, gLn1b, gLn2g, gLn2b, gLn3g, gLn3b []float64
	wout, gWout, bout, gBout                 []float64

	pos *mat.Dense // fixed sinusoidal encoding, not trained
}

type fwdCache struct {
	tokens []int
	x0     *mat.Dense
	xhat1  *mat.Dense
	invS1  []float64
	l1     *mat.Dense
	q, k   *mat.Dense
	v      *mat.Dense
	a      *mat.Dense
	av     *mat.Dense
	x1     *mat.Dense
	xhat2  *mat.Dense
	invS2  []float64
	l2     *mat.Dense
	hff    *mat.Dense
	x2     *mat.Dense
	xhat3  *mat.Dense
	invS3  []float64
	l3     *mat.Dense
	probs  []float64
}

func newTransformer(size, d, f int, rng *rand.Rand) *transformer {
	n := size * size
	tr := &transformer{
		n:        n,
		d:        d,
		f:        f,
		invSqrtD: 1.0 / math.Sqrt(float64(d)),
		pos:      positionalEncoding(size, d),
	}

	matParam := func(name string, r, c int) (*mat.Dense, *mat.Dense) {
		t := newTensor(name, make([]float64, r*c))
		tr.tensors = append(tr.tensors, t)
		return mat.NewDense(r, c, t.data), mat.NewDense(r, c, t.grad)
	}
	vecParam := func(name string, l int) ([]float64, []float64) {
		t := newTensor(name, make([]float64, l))
		tr.tensors = append(tr.tensors, t)
		return t.data, t.grad
	}

	tr.emb, tr.gEmb = matParam("emb", numTokenClasses, d)
	tr.wq, tr.gWq = matParam("wq", d, d)
	tr.wk, tr.gWk = matParam("wk", d, d)
	tr.wv, tr.gWv = matParam("wv", d, d)
	tr.wo, tr.gWo = matParam("wo", d, d)
	tr.w1, tr.gW1 = matParam("w1", d, f)
	tr.b1, tr.gB1 = vecParam("b1", f)
	tr.w2, tr.gW2 = matParam("w2", f, d)
	tr.b2, tr.gB2 = vecParam("b2", d)
	tr.ln1g, tr.gLn1g = vecParam("ln1g", d)
	tr.ln1b, tr.gLn1b = vecParam("ln1b", d)
	tr.ln2g, tr.gLn2g = vecParam("ln2g", d)
	tr.ln2b, tr.gLn2b = vecParam("ln2b", d)
	tr.ln3g, tr.gLn3g = vecParam("ln3g", d)
	tr.ln3b, tr.gLn3b = vecParam("ln3b", d)
	tr.wout, tr.gWout = vecParam("wout", d)
	tr.bout, tr.gBout = vecParam("bout", 1)

	tr.init(rng)
	return tr
}

// init draws every weight fresh from a fan-scaled uniform distribution;
// layer-norm gains start at 1, all biases at 0.
func (tr *transformer) init(rng *rand.Rand) {
	glorot := func(m *mat.Dense) {
		r, c := m.Dims()
		limit := math.Sqrt(6.0 / float64(r+c))
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				m.Set(i, j, (2*rng.Float64()-1)*limit)
			}
		}
	}
	glorot(tr.emb)
	glorot(tr.wq)
	glorot(tr.wk)
	glorot(tr.wv)
	glorot(tr.wo)
	glorot(tr.w1)
	glorot(tr.w2)

	limit := math.Sqrt(6.0 / float64(tr.d+1))
	for j := 0; j < tr.d; j++ {
		tr.wout[j] = (2*rng.Float64() - 1) * limit
		tr.ln1g[j], tr.ln2g[j], tr.ln3g[j] = 1, 1, 1
		tr.ln1b[j], tr.ln2b[j], tr.ln3b[j] = 0, 0, 0
		tr.b2[j] = 0
	}
	for j := range tr.b1 {
		tr.b1[j] = 0
	}
	tr.bout[0] = 0
}

// positionalEncoding builds the fixed 2D sinusoidal table: the first half
// of the hidden dimension encodes the x axis, the second half the y axis.
func positionalEncoding(size, d int) *mat.Dense {
	n := size * size
	pe := mat.NewDense(n, d, nil)
	half := d / 2
	axis := func(row, offset int, coord float64) {
		for j := 0; j < half/2; j++ {
			freq := math.Pow(10000, -2*float64(j)/float64(half))
			pe.Set(row, offset+2*j, math.Sin(coord*freq))
			pe.Set(row, offset+2*j+1, math.Cos(coord*freq))
		}
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			row := y*size + x
			axis(row, 0, float64(x))
			axis(row, half, float64(y))
		}
	}
	return pe
}

// forward runs the network over the token sequence, returning the softmax
// position distribution. When cache is non-nil all intermediates needed by
// backward are stored. A NaN in the output is a training-instability bug
// and is fatal, per the numerical contract.
func (tr *transformer) forward(tokens []int, cache *fwdCache) []float64 {
	n, d, f := tr.n, tr.d, tr.f

	x0 := mat.NewDense(n, d, nil)
	for i, tok := range tokens {
		for j := 0; j < d; j++ {
			x0.Set(i, j, tr.emb.At(tok, j)+tr.pos.At(i, j))
		}
	}

	l1, xhat1, invS1 := lnForward(x0, tr.ln1g, tr.ln1b)
	q := mat.NewDense(n, d, nil)
	q.Mul(l1, tr.wq)
	k := mat.NewDense(n, d, nil)
	k.Mul(l1, tr.wk)
	v := mat.NewDense(n, d, nil)
	v.Mul(l1, tr.wv)

	s := mat.NewDense(n, n, nil)
	s.Mul(q, k.T())
	s.Scale(tr.invSqrtD, s)
	a := softmaxRows(s)

	av := mat.NewDense(n, d, nil)
	av.Mul(a, v)
	attnOut := mat.NewDense(n, d, nil)
	attnOut.Mul(av, tr.wo)
	x1 := mat.NewDense(n, d, nil)
	x1.Add(x0, attnOut)

	l2, xhat2, invS2 := lnForward(x1, tr.ln2g, tr.ln2b)
	pre := mat.NewDense(n, f, nil)
	pre.Mul(l2, tr.w1)
	addRowVec(pre, tr.b1)
	hff := reluInPlace(pre)
	ff := mat.NewDense(n, d, nil)
	ff.Mul(hff, tr.w2)
	addRowVec(ff, tr.b2)
	x2 := mat.NewDense(n, d, nil)
	x2.Add(x1, ff)

	l3, xhat3, invS3 := lnForward(x2, tr.ln3g, tr.ln3b)
	logits := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := tr.bout[0]
		for j := 0; j < d; j++ {
			sum += l3.At(i, j) * tr.wout[j]
		}
		logits[i] = sum
	}
	probs := stableSoftmax(logits)
	if math.IsNaN(probs[0]) {
		panic("transition model diverged: NaN in forward pass")
	}

	if cache != nil {
		cache.tokens = tokens
		cache.x0, cache.xhat1, cache.invS1, cache.l1 = x0, xhat1, invS1, l1
		cache.q, cache.k, cache.v, cache.a, cache.av = q, k, v, a, av
		cache.x1, cache.xhat2, cache.invS2, cache.l2 = x1, xhat2, invS2, l2
		cache.hff, cache.x2 = hff, x2
		cache.xhat3, cache.invS3, cache.l3 = xhat3, invS3, l3
		cache.probs = probs
	}
	return probs
}

// backward accumulates gradients for one example of a mini-batch against
// the one-hot target cell; scale is 1/batch so accumulated gradients are
// the batch mean.
func (tr *transformer) backward(cache *fwdCache, target int, scale float64) {
	n, d, f := tr.n, tr.d, tr.f

	dlogits := make([]float64, n)
	copy(dlogits, cache.probs)
	dlogits[target] -= 1
	for i := range dlogits {
		dlogits[i] *= scale
	}

	// Output projection.
	dl3 := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		tr.gBout[0] += dlogits[i]
		for j := 0; j < d; j++ {
			tr.gWout[j] += cache.l3.At(i, j) * dlogits[i]
			dl3.Set(i, j, dlogits[i]*tr.wout[j])
		}
	}
	dx2 := lnBackward(dl3, cache.xhat3, cache.invS3, tr.ln3g, tr.gLn3g, tr.gLn3b)

	// Feed-forward block; x2 = x1 + ff.
	dff := dx2
	dx1 := mat.NewDense(n, d, nil)
	dx1.Copy(dx2)

	dhff := mat.NewDense(n, f, nil)
	dhff.Mul(dff, tr.w2.T())
	mulAccum(tr.gW2, cache.hff.T(), dff)
	colSumAccum(tr.gB2, dff)

	// ReLU mask: hff entries are already post-activation.
	dpre := dhff
	for i := 0; i < n; i++ {
		for j := 0; j < f; j++ {
			if cache.hff.At(i, j) <= 0 {
				dpre.Set(i, j, 0)
			}
		}
	}
	mulAccum(tr.gW1, cache.l2.T(), dpre)
	colSumAccum(tr.gB1, dpre)
	dl2 := mat.NewDense(n, d, nil)
	dl2.Mul(dpre, tr.w1.T())
	dx1.Add(dx1, lnBackward(dl2, cache.xhat2, cache.invS2, tr.ln2g, tr.gLn2g, tr.gLn2b))

	// Attention block; x1 = x0 + (A V) Wo.
	dx0 := mat.NewDense(n, d, nil)
	dx0.Copy(dx1)

	dav := mat.NewDense(n, d, nil)
	dav.Mul(dx1, tr.wo.T())
	mulAccum(tr.gWo, cache.av.T(), dx1)

	dA := mat.NewDense(n, n, nil)
	dA.Mul(dav, cache.v.T())
	dV := mat.NewDense(n, d, nil)
	dV.Mul(cache.a.T(), dav)

	dS := softmaxRowsBackward(dA, cache.a)
	dS.Scale(tr.invSqrtD, dS)
	dQ := mat.NewDense(n, d, nil)
	dQ.Mul(dS, cache.k)
	dK := mat.NewDense(n, d, nil)
	dK.Mul(dS.T(), cache.q)

	mulAccum(tr.gWq, cache.l1.T(), dQ)
	mulAccum(tr.gWk, cache.l1.T(), dK)
	mulAccum(tr.gWv, cache.l1.T(), dV)

	dl1 := mat.NewDense(n, d, nil)
	dl1.Mul(dQ, tr.wq.T())
	tmp := mat.NewDense(n, d, nil)
	tmp.Mul(dK, tr.wk.T())
	dl1.Add(dl1, tmp)
	tmp.Mul(dV, tr.wv.T())
	dl1.Add(dl1, tmp)
	dx0.Add(dx0, lnBackward(dl1, cache.xhat1, cache.invS1, tr.ln1g, tr.gLn1g, tr.gLn1b))

	// Content embeddings; the positional table is fixed.
	for i, tok := range cache.tokens {
		for j := 0; j < d; j++ {
			tr.gEmb.Set(tok, j, tr.gEmb.At(tok, j)+dx0.At(i, j))
		}
	}
}

func lnForward(x *mat.Dense, g, b []float64) (y, xhat *mat.Dense, invStd []float64) {
	n, d := x.Dims()
	y = mat.NewDense(n, d, nil)
	xhat = mat.NewDense(n, d, nil)
	invStd = make([]float64, n)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		mu := 0.0
		for _, val := range row {
			mu += val
		}
		mu /= float64(d)
		va := 0.0
		for _, val := range row {
			dv := val - mu
			va += dv * dv
		}
		va /= float64(d)
		is := 1.0 / math.Sqrt(va+lnEps)
		invStd[i] = is
		for j, val := range row {
			xh := (val - mu) * is
			xhat.Set(i, j, xh)
			y.Set(i, j, g[j]*xh+b[j])
		}
	}
	return
}

func lnBackward(
	dy, xhat *mat.Dense,
	invStd, g []float64,
	gGrad, bGrad []float64,
) *mat.Dense {
	n, d := dy.Dims()
	dx := mat.NewDense(n, d, nil)
	dxhat := make([]float64, d)
	for i := 0; i < n; i++ {
		meanDxhat, meanDxhatXhat := 0.0, 0.0
		for j := 0; j < d; j++ {
			dyv := dy.At(i, j)
			xh := xhat.At(i, j)
			gGrad[j] += dyv * xh
			bGrad[j] += dyv
			dxh := dyv * g[j]
			dxhat[j] = dxh
			meanDxhat += dxh
			meanDxhatXhat += dxh * xh
		}
		meanDxhat /= float64(d)
		meanDxhatXhat /= float64(d)
		for j := 0; j < d; j++ {
			dx.Set(i, j, invStd[i]*(dxhat[j]-meanDxhat-xhat.At(i, j)*meanDxhatXhat))
		}
	}
	return dx
}

// softmaxRows applies a max-subtracted softmax to every row.
func softmaxRows(s *mat.Dense) *mat.Dense {
	n, c := s.Dims()
	a := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		row := s.RawRowView(i)
		max := row[0]
		for _, val := range row {
			if val > max {
				max = val
			}
		}
		sum := 0.0
		for j, val := range row {
			e := math.Exp(val - max)
			a.Set(i, j, e)
			sum += e
		}
		for j := 0; j < c; j++ {
			a.Set(i, j, a.At(i, j)/sum)
		}
	}
	return a
}

// softmaxRowsBackward: dS_ij = A_ij * (dA_ij - sum_k dA_ik A_ik).
func softmaxRowsBackward(dA, a *mat.Dense) *mat.Dense {
	n, c := dA.Dims()
	dS := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		dot := 0.0
		for j := 0; j < c; j++ {
			dot += dA.At(i, j) * a.At(i, j)
		}
		for j := 0; j < c; j++ {
			dS.Set(i, j, a.At(i, j)*(dA.At(i, j)-dot))
		}
	}
	return dS
}

func stableSoftmax(logits []float64) []float64 {
	max := logits[0]
	for _, val := range logits {
		if val > max {
			max = val
		}
	}
	probs := make([]float64, len(logits))
	sum := 0.0
	for i, val := range logits {
		probs[i] = math.Exp(val - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func addRowVec(m *mat.Dense, vec []float64) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, m.At(i, j)+vec[j])
		}
	}
}

func reluInPlace(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) < 0 {
				m.Set(i, j, 0)
			}
		}
	}
	return m
}

// mulAccum: dst += a * b.
func mulAccum(dst *mat.Dense, a, b mat.Matrix) {
	r, c := dst.Dims()
	tmp := mat.NewDense(r, c, nil)
	tmp.Mul(a, b)
	dst.Add(dst, tmp)
}

func colSumAccum(dst []float64, m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst[j] += m.At(i, j)
		}
	}
}
