package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecKeepsOrderDuplicatesAndRawBytes(t *testing.T) {
	in := HeaderCollection{
		{Name: "Set-Cookie", Value: []byte("a=1")},
		{Name: "Location", Value: []byte("/admin/newsletters")},
		{Name: "Set-Cookie", Value: []byte("b=2")},
		{Name: "X-Binary", Value: []byte{0x00, 0xff, 0xfe, '\n'}},
	}

	codec := JSONCodec[HeaderCollection]{}
	raw, err := codec.Encode(in)
	require.NoError(t, err)

	out, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	v, ok := out.Get("location")
	require.True(t, ok)
	assert.Equal(t, "/admin/newsletters", string(v))
}

func TestJSONCodecRejectsGarbage(t *testing.T) {
	_, err := JSONCodec[HeaderCollection]{}.Decode([]byte("{not json"))
	require.Error(t, err)
}

func TestResponseEqual(t *testing.T) {
	a := Response{StatusCode: 303, Headers: HeaderCollection{{Name: "Location", Value: []byte("/x")}}, Body: []byte("ok")}
	b := Response{StatusCode: 303, Headers: HeaderCollection{{Name: "Location", Value: []byte("/x")}}, Body: []byte("ok")}
	assert.True(t, a.Equal(b))

	b.Headers[0].Value = []byte("/y")
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(Response{StatusCode: 200, Headers: a.Headers, Body: a.Body}))
}
