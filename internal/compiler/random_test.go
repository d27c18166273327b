package compiler

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
	tu "github.com/qlarr-surveys/survey-engine/internal/testutil"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestAssignOrderRandomPermutesOwnPositions(t *testing.T) {
	survey := ValidateStructure(tu.Survey(
		tu.Random(ir.RandomRandom, "G2", "G3", "G4"),
		tu.Group("G1", tu.Question("Q1")),
		tu.Group("G2", tu.Question("Q2")),
		tu.Group("G3", tu.Question("Q3")),
		tu.Group("G4", tu.Question("Q4")),
		tu.End(),
	))
	for seed := uint64(0); seed < 20; seed++ {
		orders := AssignOrder(survey, seeded(seed), "en", nil)
		assert.Len(t, orders, 3)
		assert.ElementsMatch(t, []int{2, 3, 4}, []int{orders["G2"], orders["G3"], orders["G4"]})
		assert.NotContains(t, orders, "G1")
	}
}

func TestAssignOrderFlipSharesOneCoin(t *testing.T) {
	survey := ValidateStructure(tu.Survey(
		tu.Group("G1",
			tu.Random(ir.RandomFlip, "Q1", "Q2", "Q3"),
			tu.Question("Q1"), tu.Question("Q2"), tu.Question("Q3"),
		),
		tu.Group("G2",
			tu.Random(ir.RandomFlip, "Q4", "Q5"),
			tu.Question("Q4"), tu.Question("Q5"),
		),
		tu.End(),
	))
	sawFlip, sawKeep := false, false
	for seed := uint64(0); seed < 20; seed++ {
		orders := AssignOrder(survey, seeded(seed), "en", nil)
		if orders["Q1"] == 3 {
			sawFlip = true
			assert.Equal(t, map[string]int{"Q1": 3, "Q2": 2, "Q3": 1, "Q4": 2, "Q5": 1}, orders)
		} else {
			sawKeep = true
			assert.Equal(t, map[string]int{"Q1": 1, "Q2": 2, "Q3": 3, "Q4": 1, "Q5": 2}, orders)
		}
	}
	assert.True(t, sawFlip)
	assert.True(t, sawKeep)
}

func TestAssignOrderAlpha(t *testing.T) {
	survey := ValidateStructure(tu.Survey(
		tu.Group("G1",
			tu.Question("Q1"),
			tu.Random(ir.RandomAlpha, "Q2", "Q3", "Q4"),
			tu.Question("Q2"), tu.Question("Q3"), tu.Question("Q4"),
		),
		tu.End(),
	))
	labels := map[string]string{"Q2": "banana", "Q3": "Cherry", "Q4": "apple"}
	orders := AssignOrder(survey, seeded(1), "en", func(code string) string { return labels[code] })
	assert.Equal(t, map[string]int{"Q4": 2, "Q2": 3, "Q3": 4}, orders)
}

func TestAssignPriorityRanks(t *testing.T) {
	survey := ValidateStructure(tu.Survey(
		tu.Group("G1",
			tu.Priority(2, "Q1", "Q2", "Q3"),
			tu.Question("Q1"), tu.Question("Q2"), tu.Question("Q3"), tu.Question("Q4"),
		),
		tu.End(),
	))
	for seed := uint64(0); seed < 10; seed++ {
		p := AssignPriority(survey, seeded(seed))
		assert.Len(t, p, 3)
		assert.ElementsMatch(t, []int{1, 2, 3}, []int{p["Q1"], p["Q2"], p["Q3"]})
	}
}

func TestAssignPriorityZeroWeightWins(t *testing.T) {
	pg := ir.PriorityGroups{Groups: []ir.PriorityGroup{{
		Limit: 1,
		Weights: []ir.ChildPriority{
			{Code: "Q1", Weight: 1},
			{Code: "Q2", Weight: 0},
		},
	}}}
	survey := ValidateStructure(tu.Survey(
		tu.Group("G1", pg, tu.Question("Q1"), tu.Question("Q2")),
		tu.End(),
	))
	for seed := uint64(1); seed < 10; seed++ {
		p := AssignPriority(survey, seeded(seed))
		assert.Equal(t, 1, p["Q2"])
	}
}
