package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkerKey(t *testing.T) {
	assert.Equal(t, "user:u1:active_room", markerKey("u1"))
}
