package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLanguages(t *testing.T) {
	assert.Equal(t, []string{"hi", "en"}, ParseLanguages("hi,en"))
	assert.Equal(t, []string{"en-US", "hi"}, ParseLanguages(" en-US , hi, en-US ,, "))
	assert.Equal(t, []string{"en"}, ParseLanguages("en,not a tag!"))
	assert.Equal(t, DefaultLanguages, ParseLanguages(""))
	assert.Equal(t, DefaultLanguages, ParseLanguages("???"))

	got := ParseLanguages("")
	got[0] = "fr"
	assert.Equal(t, "hi", DefaultLanguages[0])
}

func TestDetectLanguage(t *testing.T) {
	assert.Empty(t, DetectLanguage("   "))
	assert.Equal(t, "en", DetectLanguage("This is a long English sentence about machine learning and how neural networks are trained on large datasets."))
	assert.Equal(t, "hi", DetectLanguage("यह वीडियो मशीन लर्निंग के बारे में है और इसमें बताया गया है कि न्यूरल नेटवर्क कैसे काम करते हैं।"))
}
