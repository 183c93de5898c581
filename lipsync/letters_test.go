package lipsync

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharViseme(t *testing.T) {
	chars := []string{"S", "h", "e", "!", "ñ"}

	id, span := CharViseme(chars, 0)
	assert.Equal(t, 16, id)
	assert.Equal(t, 2, span)

	id, span = CharViseme(chars, 2)
	assert.Equal(t, 4, id)
	assert.Equal(t, 1, span)

	id, _ = CharViseme(chars, 3)
	assert.Equal(t, 0, id)

	id, _ = CharViseme(chars, 4)
	assert.Equal(t, 19, id)
}

func TestWordVisemes(t *testing.T) {
	events := WordVisemes("hola", 1.0, 1.4)

	ids := make([]int, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	assert.Equal(t, []int{12, 8, 14, 1}, ids)
	assert.InDelta(t, 1.0, events[0].Offset, 1e-9)
	assert.InDelta(t, 1.1, events[1].Offset, 1e-9)
	assert.InDelta(t, 1.3, events[3].Offset, 1e-9)
}

func TestWordVisemes_CollapsesRepeats(t *testing.T) {
	events := WordVisemes("aah", 0, 0.3)
	if assert.Len(t, events, 2) {
		assert.Equal(t, 1, events[0].ID)
		assert.Equal(t, 12, events[1].ID)
		assert.InDelta(t, 0.2, events[1].Offset, 1e-9)
	}
}

func TestWordVisemes_Degenerate(t *testing.T) {
	assert.Nil(t, WordVisemes("", 0, 1))
	assert.Nil(t, WordVisemes("hi", 1, 0.5))
	assert.Nil(t, WordVisemes("hi", math.NaN(), 1))
}
