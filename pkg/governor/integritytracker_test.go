package governor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntegrityTracker_RecordThenConditionsFor(t *testing.T) {
	tr := NewIntegrityTracker()
	assert.Empty(t, tr.ConditionsFor("loop_1"))

	tr.Record("loop_1", []string{"ORACLE_TAMPER"})
	assert.Equal(t, []string{"ORACLE_TAMPER"}, tr.ConditionsFor("loop_1"))
}

func TestIntegrityTracker_RecordingEmptyClearsEntry(t *testing.T) {
	tr := NewIntegrityTracker()
	tr.Record("loop_1", []string{"EVIDENCE_MISSING"})
	tr.Record("loop_1", nil)
	assert.Empty(t, tr.ConditionsFor("loop_1"))
}
