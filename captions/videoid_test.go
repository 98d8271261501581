package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tubechat/core"
)

func TestExtractVideoID(t *testing.T) {
	cases := map[string]string{
		"https://youtu.be/vuOx32ypfGY?si=abc":            "vuOx32ypfGY",
		"https://www.youtube.com/watch?v=vuOx32ypfGY&t=1": "vuOx32ypfGY",
		"https://www.youtube.com/watch?v=vuOx32ypfGY":     "vuOx32ypfGY",
		"https://www.youtube.com/shorts/vuOx32ypfGY":      "vuOx32ypfGY",
		"  vuOx32ypfGY  ":                                 "vuOx32ypfGY",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractVideoID(in), in)
	}
}

func TestValidateURL(t *testing.T) {
	for _, ok := range []string{
		"https://youtu.be/vuOx32ypfGY",
		"http://example.com/watch?v=x",
		"youtube.com/watch?v=vuOx32ypfGY",
		"vuOx32ypfGY",
	} {
		assert.NoError(t, ValidateURL(ok), ok)
	}
	for _, bad := range []string{"", "   ", "not a url", "some/path"} {
		assert.ErrorIs(t, ValidateURL(bad), core.ErrInvalidArgument, bad)
	}
}
