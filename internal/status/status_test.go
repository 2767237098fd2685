package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerStatus(t *testing.T) {
	var tr Tracker
	assert.Empty(t, tr.Status())

	tr.SetStatus("running")
	assert.Equal(t, "running", tr.Status())
}

func TestTrackerRecordError(t *testing.T) {
	var tr Tracker
	assert.Equal(t, 0, tr.ErrorCount())
	assert.NoError(t, tr.LastError())

	tr.RecordError(errors.New("boom"))
	tr.RecordError(errors.New("boom again"))

	assert.Equal(t, 2, tr.ErrorCount())
	assert.EqualError(t, tr.LastError(), "boom again")
}
