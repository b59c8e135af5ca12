// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimatorEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0, Estimator{}.Count(""))
}

func TestEstimatorDeterministic(t *testing.T) {
	text := strings.Repeat(`{"name":"pod-1","phase":"Running"}`, 50)
	first := Estimator{}.Count(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Estimator{}.Count(text))
	}
}

func TestEstimatorScalesWithLength(t *testing.T) {
	est := Estimator{}
	assert.Equal(t, 1, est.Count("abc"))
	assert.Equal(t, 1, est.Count("abcd"))
	assert.Equal(t, 2, est.Count("abcde"))
	assert.Less(t, est.Count("short"), est.Count(strings.Repeat("short", 100)))
}

func TestDefaultCounterIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
