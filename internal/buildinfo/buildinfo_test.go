package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersionOverridesAndIgnoresEmpty(t *testing.T) {
	defer func() { version = devVersion }()

	SetVersion("v0.3.0")
	assert.Equal(t, "v0.3.0", Version())

	SetVersion("")
	assert.Equal(t, "v0.3.0", Version())
}

func TestRevisionIsShort(t *testing.T) {
	assert.LessOrEqual(t, len(Revision()), len("0123456789ab+dirty"))
}
