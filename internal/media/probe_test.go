package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbe(t *testing.T) {
	data := []byte(`{"format":{"filename":"/m/song.mp3","duration":"245.368000","tags":{"TITLE":"Song","ARTIST":"Band"}}}`)

	info, err := parseProbe(data, "/m/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "Song", info.Title)
	assert.Equal(t, "Band", info.Uploader)
	require.NotNil(t, info.Duration)
	assert.InDelta(t, 245.368, *info.Duration, 0.0001)

	info, err = parseProbe([]byte(`{"format":{}}`), "/m/untitled.wav")
	require.NoError(t, err)
	assert.Equal(t, "untitled", info.Title)
	assert.Nil(t, info.Duration)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:05", FormatDuration(5.9))
	assert.Equal(t, "4:05", FormatDuration(245))
	assert.Equal(t, "1:02:03", FormatDuration(3723))
}
