package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField_UnmarshalWrapped(t *testing.T) {
	var rec struct {
		Met   Field[bool] `json:"met"`
		Phase Field[int]  `json:"phase"`
		Date  Field[Date] `json:"date"`
	}
	data := `{
		"met": {"status": "confirmed", "value": false, "source": "press release", "confidence": 0.9},
		"phase": {"status": "unknown", "reason": "not searched"},
		"date": {"status": "confirmed", "value": "2024-03-15"}
	}`
	require.NoError(t, json.Unmarshal([]byte(data), &rec))

	met, ok := rec.Met.Get()
	assert.True(t, ok)
	assert.False(t, met)
	assert.Equal(t, "press release", rec.Met.Source)
	assert.InDelta(t, 0.9, rec.Met.Confidence, 1e-9)

	_, ok = rec.Phase.Get()
	assert.False(t, ok)
	assert.False(t, rec.Phase.IsKnown())
	assert.Equal(t, "not searched", rec.Phase.Reason)

	d, ok := rec.Date.Get()
	require.True(t, ok)
	assert.Equal(t, NewDate(2024, time.March, 15), d)
}

func TestField_UnmarshalBareValue(t *testing.T) {
	var rec struct {
		Flag Field[bool]   `json:"flag"`
		Name Field[string] `json:"name"`
		Null Field[int]    `json:"null"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"flag": true, "name": "Catalent", "null": null}`), &rec))

	assert.Equal(t, StatusConfirmed, rec.Flag.Status)
	assert.True(t, rec.Flag.Or(false))
	assert.Equal(t, "Catalent", rec.Name.Or(""))
	assert.Equal(t, StatusUnknown, rec.Null.Status)
}

func TestField_MissingIsZeroStatus(t *testing.T) {
	var rec struct {
		Flag Field[bool] `json:"flag"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &rec))

	_, ok := rec.Flag.Get()
	assert.False(t, ok)
	assert.Nil(t, rec.Flag.Ptr())
	assert.False(t, rec.Flag.IsKnown())
}

func TestField_EmptyIsKnownWithoutValue(t *testing.T) {
	f := Empty[bool]("no advisory committee scheduled")
	assert.True(t, f.IsKnown())
	assert.Nil(t, f.Ptr())
	assert.True(t, f.Or(true))
}

func TestField_RoundTripWrapped(t *testing.T) {
	in := Confirmed(3, "clinicaltrials.gov")
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Field[int]
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", d.String())

	d, err = ParseDate("2025-01-31T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", d.String())

	_, err = ParseDate("31/01/2025")
	assert.Error(t, err)
}

func TestField_UnsetMarshalsAsUnknown(t *testing.T) {
	var rec struct {
		Flag Field[bool] `json:"flag"`
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"flag": {"status": "unknown"}}`, string(data))

	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, StatusUnknown, rec.Flag.Status)
}
