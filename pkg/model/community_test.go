package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommunityAssignment_DecodeMixedKinds(t *testing.T) {
	payload := `[
		{"node": "1", "community": 1},
		{"node": 2, "community": "1"},
		{"node": "3", "community": 2.0},
		{"node": "4", "community": "a"}
	]`

	var a CommunityAssignment
	require.NoError(t, json.Unmarshal([]byte(payload), &a))
	require.Len(t, a, 4)

	assert.Equal(t, NodeID("2"), a[1].Node)
	assert.Equal(t, "1", a[0].Community.Key())
	assert.Equal(t, "1", a[1].Community.Key())
	assert.Equal(t, "2", a[2].Community.Key())

	n, ok := a[2].Community.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(2), n)

	_, ok = a[3].Community.Int()
	assert.False(t, ok)

	// 1 and "1" are the same community
	assert.Equal(t, 3, a.DistinctCount())
}

func TestCommunityID_RoundTripKeepsKind(t *testing.T) {
	in := `[{"node":"1","community":7},{"node":"2","community":"7"}]`

	var a CommunityAssignment
	require.NoError(t, json.Unmarshal([]byte(in), &a))

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestCommunityID_LargeIntegersKeepEveryDigit(t *testing.T) {
	payload := `[
		{"node": "1", "community": 9007199254740993},
		{"node": "2", "community": "9007199254740993"},
		{"node": "3", "community": 123456789012345678901234567890}
	]`

	var a CommunityAssignment
	require.NoError(t, json.Unmarshal([]byte(payload), &a))
	require.Len(t, a, 3)

	assert.Equal(t, "9007199254740993", a[0].Community.Key())
	assert.Equal(t, "123456789012345678901234567890", a[2].Community.Key())
	assert.Equal(t, 2, a.DistinctCount())

	n, ok := a[0].Community.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(9007199254740993), n)

	out, err := json.Marshal(a[2].Community)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", string(out))
}

func TestCommunityID_RejectsObjects(t *testing.T) {
	var c CommunityID
	err := json.Unmarshal([]byte(`{"x":1}`), &c)
	assert.Error(t, err)
}

func TestCommunityAssignment_DistinctCount(t *testing.T) {
	tests := []struct {
		name string
		a    CommunityAssignment
		want int
	}{
		{"empty", nil, 0},
		{"single", CommunityAssignment{{Node: "1", Community: IntCommunityID(1)}}, 1},
		{
			"scenario A",
			CommunityAssignment{
				{Node: "1", Community: IntCommunityID(1)},
				{Node: "2", Community: IntCommunityID(1)},
				{Node: "3", Community: IntCommunityID(2)},
			},
			2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.DistinctCount())
		})
	}
}

func TestCommunityAssignment_Sizes(t *testing.T) {
	a := CommunityAssignment{
		{Node: "1", Community: IntCommunityID(2)},
		{Node: "2", Community: IntCommunityID(1)},
		{Node: "3", Community: IntCommunityID(1)},
		{Node: "4", Community: IntCommunityID(3)},
	}

	sizes := a.Sizes()
	require.Len(t, sizes, 3)
	assert.Equal(t, "1", sizes[0].Community.Key())
	assert.Equal(t, 2, sizes[0].Size)
	assert.Equal(t, "2", sizes[1].Community.Key())
	assert.Equal(t, "3", sizes[2].Community.Key())
}

func TestCommunityAssignment_ByNodeFirstWins(t *testing.T) {
	a := CommunityAssignment{
		{Node: "1", Community: IntCommunityID(4)},
		{Node: "1", Community: IntCommunityID(5)},
	}
	assert.Equal(t, "4", a.ByNode()["1"].Community.Key())
}
