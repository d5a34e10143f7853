package models

import (
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParagraphsDegradesOnBadData(t *testing.T) {
	assert.Empty(t, DecodeParagraphs(nil))
	assert.Empty(t, DecodeParagraphs(types.JSONText(``)))
	assert.Empty(t, DecodeParagraphs(types.JSONText(`not json`)))
	assert.Empty(t, DecodeParagraphs(types.JSONText(`{"a":1}`)))
	assert.Equal(t, []int{3, 1, 4}, DecodeParagraphs(types.JSONText(`[3,1,4]`)))
}

func TestEncodeParagraphsRoundTrip(t *testing.T) {
	raw, err := EncodeParagraphs(nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(raw))

	raw, err = EncodeParagraphs([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, DecodeParagraphs(raw))
}

func TestUnlockedStatusIsAlwaysConstructible(t *testing.T) {
	status := UnlockedStatus()
	assert.False(t, status.Locked)
	assert.False(t, status.CanEdit)
	assert.NotNil(t, status.CompletedParagraphs)
	assert.Nil(t, status.LockedBy)
}
