package wctest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestIDString(t *testing.T) {
	assert.Equal(t, "", TestID{}.String())
	assert.Equal(t, "1898926-dgslms-aduacademy-in", TestID{"1898926-dgslms-aduacademy-in"}.String())
	assert.Equal(t, "1898926-dgslms-aduacademy-in/android/interventions enabled",
		TestID{"1898926-dgslms-aduacademy-in", "android", "interventions enabled"}.String())
}

func TestTestIDPlus(t *testing.T) {
	assert.Equal(t, TestID{"name 1"}, TestID{}.Plus("name 1"))
	assert.Equal(t, TestID{"name 1", "name 2"}, TestID{}.Plus("name 1").Plus("name 2"))

	// Plus does not modify the original value
	id1 := TestID{"name 1"}
	id2a := id1.Plus("name 2a")
	id2b := id1.Plus("name 2b")
	assert.Equal(t, TestID{"name 1"}, id1)
	assert.Equal(t, TestID{"name 1", "name 2a"}, id2a)
	assert.Equal(t, TestID{"name 1", "name 2b"}, id2b)
}

func TestResultsUnsuccessful(t *testing.T) {
	r := Results{Tests: []TestResult{
		{TestID: TestID{"a"}, Outcome: OutcomePass},
		{TestID: TestID{"b"}, Outcome: OutcomeError},
		{TestID: TestID{"c"}, Outcome: OutcomeFail},
	}}
	assert.Equal(t, []TestResult{r.Tests[1], r.Tests[2]}, r.Unsuccessful())
}
