package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSupervisorRunningCountStartsZero(t *testing.T) {
	s := newSupervisor("/bin/true", t.TempDir(), 5*time.Second, 3, 5*time.Second)

	assert.Equal(t, 0, s.runningCount())
}
