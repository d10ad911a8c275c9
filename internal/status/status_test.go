package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		input string
		want  Status
	}{
		{"pending", Pending},
		{"inforeceived", Pending},
		{"InfoReceived", Pending},
		{"notfound", NotFound},
		{"transit", InTransit},
		{"  transit  ", InTransit},
		{"pickup", OutForDelivery},
		{"delivered", Delivered},
		{"Delivered", Delivered},
		{"expired", Expired},
		{"undelivered", Exception},
		{"exception", Exception},
		{"", Pending},
		{"some-new-vendor-status", Pending},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.input), "input=%q", tc.input)
	}
}

func TestIsFinal(t *testing.T) {
	assert.True(t, IsFinal("delivered"))
	assert.True(t, IsFinal("Expired"))
	assert.False(t, IsFinal("transit"))
	assert.False(t, IsFinal(""))
}

func TestParse(t *testing.T) {
	s, ok := Parse("IN_TRANSIT")
	assert.True(t, ok)
	assert.Equal(t, InTransit, s)

	s, ok = Parse("returned")
	assert.True(t, ok)
	assert.Equal(t, Returned, s)

	_, ok = Parse("bogus")
	assert.False(t, ok)
}
