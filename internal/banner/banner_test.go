package banner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetString(t *testing.T) {
	s := GetString()
	assert.Contains(t, s, "constant arrival-rate load generator")
	assert.Contains(t, s, `|___/\__\___|`)
}
