package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyFor(t *testing.T) {
	data := []byte("screenshot bytes")

	key := KeyFor(data, "jpg")
	assert.Len(t, key, 64+4, "hex sha256 plus .jpg")
	assert.Regexp(t, `^[0-9a-f]{64}\.jpg$`, key)

	assert.Equal(t, key, KeyFor(data, ".JPG"), "extension is normalized")
	assert.Equal(t, key, KeyFor(data, " jpg "), "extension is trimmed")
	assert.NotEqual(t, key, KeyFor([]byte("other bytes"), "jpg"))

	assert.Regexp(t, `^[0-9a-f]{64}$`, KeyFor(data, ""), "no extension, no dot")
}
