package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEmployees(t *testing.T) {
	list := generateEmployees(sampleEmployees, 1)
	require.Len(t, list, sampleEmployees)

	emails := make(map[string]bool, len(list))
	for _, e := range list {
		assert.False(t, emails[e.email], "duplicate email %s", e.email)
		emails[e.email] = true
		assert.NotEmpty(t, e.position)
		assert.GreaterOrEqual(t, e.salary, 35000)
		assert.LessOrEqual(t, e.salary, 150000)
	}
}

func TestGenerateEmployeesIsDeterministic(t *testing.T) {
	assert.Equal(t, generateEmployees(20, 7), generateEmployees(20, 7))
}

func TestDefaultAccountsCoverEveryRole(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range defaultAccounts {
		seen[string(a.role)] = true
	}
	assert.Len(t, seen, 4)
}
