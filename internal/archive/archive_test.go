package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyRoundTrip(t *testing.T) {
	key := Key(Failed, "amina", "plots_march.csv")
	assert.Equal(t, "failed/amina_plots_march.csv", key)

	cat, uploader, name, ok := ParseKey(key)
	assert.True(t, ok)
	assert.Equal(t, Failed, cat)
	assert.Equal(t, "amina", uploader)
	assert.Equal(t, "plots_march.csv", name)
}

func TestParseKey_Foreign(t *testing.T) {
	for _, k := range []string{"README", "other/amina_x.csv", "processed/nounderscore"} {
		_, _, _, ok := ParseKey(k)
		assert.False(t, ok, k)
	}
}
