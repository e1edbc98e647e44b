package style_test

import (
	"github.com/corvidchess/corvid/pkg/board"
	"github.com/corvidchess/corvid/pkg/search/style"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestDefaultIsNoop(t *testing.T) {
	assert.Equal(t, 0, style.Default.ReductionDelta(board.White, 10, 20))
	assert.Equal(t, 0, style.Default.FutilityDelta(board.White, 10))
	assert.Equal(t, 0, style.Default.NullMoveDelta(board.White, 10))
}

func TestShashinProviderCapablancaIsNoop(t *testing.T) {
	p := style.ShashinProvider{Style: style.Capablanca}
	assert.Equal(t, 0, p.ReductionDelta(board.White, 10, 20))
	assert.Equal(t, 0, p.FutilityDelta(board.White, 10))
	assert.Equal(t, 0, p.NullMoveDelta(board.White, 10))
}

func TestShashinProviderTalReducesLess(t *testing.T) {
	p := style.ShashinProvider{Style: style.Tal}
	assert.Negative(t, p.ReductionDelta(board.White, 10, 20))
	assert.Negative(t, p.FutilityDelta(board.White, 10))
	assert.Negative(t, p.NullMoveDelta(board.White, 10))
}

func TestShashinProviderPetrosianPrunesMore(t *testing.T) {
	p := style.ShashinProvider{Style: style.Petrosian}
	assert.Positive(t, p.ReductionDelta(board.White, 10, 20))
	assert.Positive(t, p.FutilityDelta(board.White, 10))
	assert.Positive(t, p.NullMoveDelta(board.White, 10))
}

func TestStyleString(t *testing.T) {
	assert.Equal(t, "Capablanca", style.Capablanca.String())
	assert.Equal(t, "Tal", style.Tal.String())
	assert.Equal(t, "Petrosian", style.Petrosian.String())
}

func TestSkillProviderDisabledIsNoop(t *testing.T) {
	p := style.SkillProvider{Enabled: false, Elo: 800}
	assert.Equal(t, 0, p.ReductionDelta(board.White, 10, 20))
	assert.Equal(t, 0, p.FutilityDelta(board.White, 10))
	assert.Equal(t, 0, p.NullMoveDelta(board.White, 10))
}

func TestSkillProviderLowerEloPrunesHarder(t *testing.T) {
	weak := style.SkillProvider{Enabled: true, Elo: 800}
	strong := style.SkillProvider{Enabled: true, Elo: 2200}
	assert.Greater(t, weak.ReductionDelta(board.White, 10, 20), strong.ReductionDelta(board.White, 10, 20))
	assert.Greater(t, weak.FutilityDelta(board.White, 10), strong.FutilityDelta(board.White, 10))
}

func TestSkillProviderCapsHandicapSteps(t *testing.T) {
	p := style.SkillProvider{Enabled: true, Elo: -5000}
	const maxSteps = 5
	assert.Equal(t, maxSteps, p.ReductionDelta(board.White, 10, 20))
}

func TestSkillProviderAboveCeilingIsNoop(t *testing.T) {
	p := style.SkillProvider{Enabled: true, Elo: 3000}
	assert.Equal(t, 0, p.ReductionDelta(board.White, 10, 20))
}

func TestComposeSumsDeltas(t *testing.T) {
	a := style.ShashinProvider{Style: style.Petrosian}
	b := style.SkillProvider{Enabled: true, Elo: 800}
	c := style.Compose(a, b)

	want := a.ReductionDelta(board.White, 10, 20) + b.ReductionDelta(board.White, 10, 20)
	assert.Equal(t, want, c.ReductionDelta(board.White, 10, 20))
}

func TestComposeOfNoProvidersIsNoop(t *testing.T) {
	c := style.Compose()
	assert.Equal(t, 0, c.ReductionDelta(board.White, 10, 20))
	assert.Equal(t, 0, c.FutilityDelta(board.White, 10))
	assert.Equal(t, 0, c.NullMoveDelta(board.White, 10))
}
