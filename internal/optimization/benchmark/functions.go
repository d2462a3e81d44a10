package benchmark

import (
	"math"

	"github.com/copyleftdev/sharksmell/internal/optimization"
)

// EllipticParaboloid is x² - 4xy + 5y² - 4y + 3, with minimum -1 at (4, 2).
func EllipticParaboloid(x optimization.Vector) float64 {
	return x[0]*x[0] - 4*x[0]*x[1] + 5*x[1]*x[1] - 4*x[1] + 3
}

// GoldsteinPrice is the Goldstein-Price function, with minimum 3 at (0, -1).
func GoldsteinPrice(x optimization.Vector) float64 {
	s := x[0] + x[1] + 1
	a := 1 + s*s*(19-14*x[0]+3*x[0]*x[0]-14*x[1]+6*x[0]*x[1]+3*x[1]*x[1])
	d := 2*x[0] - 3*x[1]
	b := 30 + d*d*(18-32*x[0]+12*x[0]*x[0]+48*x[1]-36*x[0]*x[1]+27*x[1]*x[1])
	return a * b
}

// FlippedGoldsteinPrice is -GoldsteinPrice, with maximum -3 at (0, -1).
func FlippedGoldsteinPrice(x optimization.Vector) float64 {
	return -GoldsteinPrice(x)
}

// Rastrigin is 10·n + Σ(xᵢ² - 10·cos 2πxᵢ), with minimum 0 at the origin.
func Rastrigin(x optimization.Vector) float64 {
	sum := 10 * float64(len(x))
	for _, xi := range x {
		sum += xi*xi - 10*math.Cos(2*math.Pi*xi)
	}
	return sum
}
