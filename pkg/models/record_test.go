package models

import (
	"testing"
	"time"

	jsonpool "github.com/ajitpratap0/meddevices/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func sample() Record {
	r := NewRecord(4)
	r.Set("KNUMBER", "K000001")
	r.Set("APPLICANT", nil)
	r.Set("THIRDPARTY", true)
	r.Set("DECISIONDATE", time.Date(2000, time.March, 1, 0, 0, 0, 0, time.UTC))
	return r
}

func TestRecord_Accessors(t *testing.T) {
	r := sample()

	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []string{"KNUMBER", "APPLICANT", "THIRDPARTY", "DECISIONDATE"}, r.Names())

	v, ok := r.Get("THIRDPARTY")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	r.Set("KNUMBER", "K000002")
	assert.Equal(t, 4, r.Len())
	v, _ = r.Get("KNUMBER")
	assert.Equal(t, "K000002", v)
}

func TestRecord_MarshalJSONKeepsOrder(t *testing.T) {
	data, err := jsonpool.Marshal(sample())
	require.NoError(t, err)
	assert.Equal(t,
		`{"KNUMBER":"K000001","APPLICANT":null,"THIRDPARTY":true,"DECISIONDATE":"2000-03-01T00:00:00Z"}`,
		string(data))
}

func TestRecord_MarshalBSONKeepsOrder(t *testing.T) {
	data, err := bson.Marshal(sample())
	require.NoError(t, err)

	var doc bson.D
	require.NoError(t, bson.Unmarshal(data, &doc))
	require.Len(t, doc, 4)
	assert.Equal(t, "KNUMBER", doc[0].Key)
	assert.Equal(t, "APPLICANT", doc[1].Key)
	assert.Nil(t, doc[1].Value)
	assert.Equal(t, "THIRDPARTY", doc[2].Key)
	assert.Equal(t, true, doc[2].Value)
	assert.Equal(t, "DECISIONDATE", doc[3].Key)
}

func TestFromMap_SortsKeys(t *testing.T) {
	r := FromMap(map[string]any{"b": 1.0, "a": "x", "c": nil})
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
	assert.Equal(t, map[string]any{"b": 1.0, "a": "x", "c": nil}, r.Map())
}
