// Package benchmark holds the catalog of test problems the optimizer can be
// run against.
package benchmark

import (
	"strings"

	"github.com/copyleftdev/sharksmell/internal/optimization"
)

// Optimum is the known best point of a test problem.
type Optimum struct {
	Point optimization.Vector `json:"point"`
	Value float64             `json:"value"`
}

// Case is one entry of the catalog. Index is the test case number used on
// the command line.
type Case struct {
	Index       int                        `json:"index"`
	Description string                     `json:"description"`
	Problem     optimization.ProblemConfig `json:"-"`
	Optimum     Optimum                    `json:"optimum"`
}

// Catalog returns the test cases ordered by index. Every call builds a fresh
// table, so callers may modify what they get.
func Catalog() []Case {
	return []Case{
		{
			Index:       0,
			Description: "Elliptic paraboloid",
			Problem: optimization.ProblemConfig{
				Name:            "elliptic-paraboloid",
				Dimensions:      2,
				Low:             -100,
				High:            100,
				Goal:            optimization.Minimize,
				Objective:       optimization.ObjectiveFunc(EllipticParaboloid),
				Eta:             0.3,
				Alpha:           0.1,
				Beta:            4,
				DeltaT:          1,
				MPoints:         20,
				KMax:            30,
				InitialVelocity: 0.5,
			},
			Optimum: Optimum{Point: optimization.Vector{4, 2}, Value: -1},
		},
		{
			Index:       1,
			Description: "Goldstein-Price function",
			Problem:     goldsteinPrice("goldstein-price", optimization.Minimize, GoldsteinPrice),
			Optimum:     Optimum{Point: optimization.Vector{0, -1}, Value: 3},
		},
		{
			Index:       2,
			Description: "Flipped Goldstein-Price function",
			Problem:     goldsteinPrice("flipped-goldstein-price", optimization.Maximize, FlippedGoldsteinPrice),
			Optimum:     Optimum{Point: optimization.Vector{0, -1}, Value: -3},
		},
		{
			Index:       3,
			Description: "Rastrigin function",
			Problem: optimization.ProblemConfig{
				Name:            "rastrigin",
				Dimensions:      2,
				Low:             -20,
				High:            20,
				Goal:            optimization.Minimize,
				Objective:       optimization.ObjectiveFunc(Rastrigin),
				Eta:             0.9,
				Alpha:           0.1,
				Beta:            4,
				DeltaT:          1,
				MPoints:         20,
				KMax:            30,
				InitialVelocity: 0.5,
			},
			Optimum: Optimum{Point: optimization.Vector{0, 0}, Value: 0},
		},
	}
}

func goldsteinPrice(name string, goal optimization.Goal, f optimization.ObjectiveFunc) optimization.ProblemConfig {
	return optimization.ProblemConfig{
		Name:            name,
		Dimensions:      2,
		Low:             -2,
		High:            2,
		Goal:            goal,
		Objective:       f,
		Eta:             0.002,
		Alpha:           0.1,
		Beta:            3,
		DeltaT:          1,
		MPoints:         20,
		KMax:            30,
		InitialVelocity: 0.5,
	}
}

// Count is the number of test cases in the catalog.
func Count() int {
	return len(Catalog())
}

// Lookup returns the test case with the given index.
func Lookup(index int) (Case, error) {
	cases := Catalog()
	if index < 0 || index >= len(cases) {
		return Case{}, optimization.WrapErrorf(optimization.ErrInvalidConfig,
			"test case %d out of range [0, %d]", index, len(cases)-1)
	}
	return cases[index], nil
}

// LookupName returns the test case whose problem name matches name, ignoring
// case.
func LookupName(name string) (Case, error) {
	for _, c := range Catalog() {
		if strings.EqualFold(c.Problem.Name, name) {
			return c, nil
		}
	}
	return Case{}, optimization.WrapErrorf(optimization.ErrInvalidConfig, "unknown test case %q", name)
}
