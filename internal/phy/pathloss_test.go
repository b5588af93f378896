package phy

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestFreeSpaceDecaysWithDistance(t *testing.T) {
	m := FreeSpace{Exponent: 2.0, ReferenceDistance: 1.0}

	near := m.ReceivedPower(1.0, r3.Vector{}, r3.Vector{X: 1})
	far := m.ReceivedPower(1.0, r3.Vector{}, r3.Vector{X: 10})

	assert.InDelta(t, 1.0, near, 1e-9)
	assert.InDelta(t, 0.01, far, 1e-9)
	assert.Less(t, far, near)
}

func TestFreeSpaceSaturatesBelowReferenceDistance(t *testing.T) {
	m := FreeSpace{Exponent: 2.0, ReferenceDistance: 5.0}

	p := m.ReceivedPower(2.0, r3.Vector{}, r3.Vector{X: 0.1})

	assert.InDelta(t, 2.0, p, 1e-9, "collocated nodes saturate at tx power, never exceed it")
}

func TestAlwaysStrongIgnoresDistance(t *testing.T) {
	m := AlwaysStrong{}

	assert.Equal(t, 3.0, m.ReceivedPower(3.0, r3.Vector{}, r3.Vector{X: 1000}))
}
