package analytics

import (
	"math"
	"sort"
)

// Float helpers shared by the engines. Degenerate inputs (empty slices,
// zero variance) yield 0, never NaN.

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// quantile interpolates linearly between order statistics. xs need not be
// sorted.
func quantile(xs []float64, q float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if q <= 0 || n == 1 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// stdDev uses the sample convention (divide by n-1), matching how summary
// statistics are reported.
func stdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// stdDevPop uses the population convention (divide by n), matching how
// z-scores are standardized.
func stdDevPop(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

func minMax(xs []float64) (lo, hi float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// pearson computes the Pearson correlation coefficient, 0 when either
// series has zero variance. The result is clamped to [-1, 1] to absorb
// floating-point drift.
func pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	n := float64(len(x))
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}
	numerator := n*sumXY - sumX*sumY
	denominator := math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if denominator == 0 {
		return 0
	}
	return clamp(numerator/denominator, -1, 1)
}

// spearman is Pearson over average ranks, so it captures monotonic
// relationships and tolerates ties.
func spearman(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	return pearson(ranks(x), ranks(y))
}

// ranks assigns 1-based ranks, averaging over ties.
func ranks(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	out := make([]float64, len(xs))
	i := 0
	for i < len(idx) {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := (float64(i)+float64(j))/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// olsFit is a least-squares line fit. ok is false when x has no spread.
type olsFit struct {
	slope       float64
	intercept   float64
	r2          float64
	residualStd float64 // population std of residuals
	n           int
	meanX       float64
	sxx         float64 // sum of squared deviations of x
}

func fitOLS(xs, ys []float64) (olsFit, bool) {
	if len(xs) != len(ys) || len(xs) < 2 {
		return olsFit{}, false
	}
	n := len(xs)
	mx := mean(xs)
	my := mean(ys)

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - mx
		sxx += dx * dx
		sxy += dx * (ys[i] - my)
	}
	if sxx == 0 {
		return olsFit{}, false
	}

	fit := olsFit{n: n, meanX: mx, sxx: sxx}
	fit.slope = sxy / sxx
	fit.intercept = my - fit.slope*mx

	var ssRes, ssTot float64
	for i := range xs {
		pred := fit.intercept + fit.slope*xs[i]
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - my) * (ys[i] - my)
	}
	if ssTot > 0 {
		fit.r2 = 1 - ssRes/ssTot
	}
	fit.residualStd = math.Sqrt(ssRes / float64(n))
	return fit, true
}

// predict evaluates the fitted line at x.
func (f olsFit) predict(x float64) float64 {
	return f.intercept + f.slope*x
}

// predictionStd is the standard error of a new observation at x. It grows
// as x moves away from the mean of the training inputs, which is what
// makes forecast bands widen with horizon.
func (f olsFit) predictionStd(x float64) float64 {
	if f.n == 0 || f.sxx == 0 {
		return f.residualStd
	}
	dx := x - f.meanX
	return f.residualStd * math.Sqrt(1+1/float64(f.n)+dx*dx/f.sxx)
}

// anovaOneWay computes the one-way ANOVA F statistic and p-value across
// groups. ok is false when fewer than two non-empty groups exist, when
// degrees of freedom run out, or when within-group variance is zero.
func anovaOneWay(groups [][]float64) (f, p float64, ok bool) {
	var kept [][]float64
	total := 0
	var grandSum float64
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		kept = append(kept, g)
		total += len(g)
		grandSum += sum(g)
	}
	k := len(kept)
	if k < 2 || total <= k {
		return 0, 0, false
	}
	grandMean := grandSum / float64(total)

	var ssBetween, ssWithin float64
	for _, g := range kept {
		gm := mean(g)
		ssBetween += float64(len(g)) * (gm - grandMean) * (gm - grandMean)
		for _, x := range g {
			ssWithin += (x - gm) * (x - gm)
		}
	}

	df1 := float64(k - 1)
	df2 := float64(total - k)
	msWithin := ssWithin / df2
	if msWithin == 0 {
		return 0, 0, false
	}
	f = (ssBetween / df1) / msWithin
	p = 1 - fCDF(f, df1, df2)
	return f, p, true
}

// fCDF is the CDF of the F distribution with d1 and d2 degrees of
// freedom, expressed through the regularized incomplete beta function.
func fCDF(f, d1, d2 float64) float64 {
	if f <= 0 {
		return 0
	}
	x := d1 * f / (d1*f + d2)
	return betaIncReg(d1/2, d2/2, x)
}

// betaIncReg is the regularized incomplete beta function I_x(a, b),
// evaluated with Lentz's continued fraction.
func betaIncReg(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	lgab, _ := math.Lgamma(a + b)
	lga, _ := math.Lgamma(a)
	lgb, _ := math.Lgamma(b)
	front := math.Exp(lgab - lga - lgb + a*math.Log(x) + b*math.Log(1-x))

	// The continued fraction converges fast for x < (a+1)/(a+b+2); use the
	// symmetry relation otherwise.
	if x < (a+1)/(a+b+2) {
		return front * betaCF(a, b, x) / a
	}
	return 1 - front*betaCF(b, a, 1-x)/b
}

func betaCF(a, b, x float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-14
		tiny    = 1e-30
	)
	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}

// normalQuantile is the standard normal inverse CDF (Acklam's rational
// approximation, absolute relative error below 1.15e-9).
func normalQuantile(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}

	a := [6]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := [5]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	c := [6]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := [4]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}

	const pLow = 0.02425
	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p > 1-pLow:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	default:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	}
}

// zMultiplier converts a two-sided confidence level into its z value,
// e.g. 0.95 -> 1.96.
func zMultiplier(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	return normalQuantile(0.5 + confidence/2)
}
