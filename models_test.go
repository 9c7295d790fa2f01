package pdfquiz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	for _, in := range []string{"a", " B ", "c", "D"} {
		l, ok := ParseLabel(in)
		assert.True(t, ok, in)
		assert.True(t, l.Valid())
	}
	for _, in := range []string{"", "E", "AB", "1"} {
		_, ok := ParseLabel(in)
		assert.False(t, ok, in)
	}
	assert.Equal(t, 2, LabelC.Index())
	assert.Equal(t, -1, LabelNone.Index())
}

func TestLabelJSON(t *testing.T) {
	data, err := json.Marshal([]Label{LabelA, LabelNone, LabelD})
	require.NoError(t, err)
	assert.JSONEq(t, `["A", null, "D"]`, string(data))

	var labels []Label
	require.NoError(t, json.Unmarshal([]byte(`[null, "B", null]`), &labels))
	assert.Equal(t, []Label{LabelNone, LabelB, LabelNone}, labels)
}

func TestValidateQuestions(t *testing.T) {
	assert.NoError(t, ValidateQuestions(sampleQuestions(), 4))

	err := ValidateQuestions(sampleQuestions()[:3], 4)
	assert.ErrorIs(t, err, ErrInvalidQuestions)

	qs := sampleQuestions()
	qs[1].Options = qs[1].Options[:3]
	assert.ErrorIs(t, ValidateQuestions(qs, 4), ErrInvalidQuestions)

	qs = sampleQuestions()
	qs[2].Answer = "E"
	assert.ErrorIs(t, ValidateQuestions(qs, 4), ErrInvalidQuestions)

	qs = sampleQuestions()
	qs[3].Options[0] = "  "
	assert.ErrorIs(t, ValidateQuestions(qs, 4), ErrInvalidQuestions)

	qs = sampleQuestions()
	qs[0].Question = ""
	assert.ErrorIs(t, ValidateQuestions(qs, 4), ErrInvalidQuestions)
}
