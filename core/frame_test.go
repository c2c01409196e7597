package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFluentConstruction(t *testing.T) {
	f := NewData([]byte("hi")).
		WithHeader("a", []byte("1")).
		WithHeader("b", []byte("2")).
		WithFlag(FlagReqAck)

	assert.Equal(t, TypeData, f.Type)
	assert.True(t, f.HasFlag(FlagReqAck))
	assert.False(t, f.HasFlag(FlagComp))

	v, ok := f.GetHeader("b")
	assert.True(t, ok)
	assert.Equal(t, []byte("2"), v)

	_, ok = f.GetHeader("missing")
	assert.False(t, ok)
}

func TestGetHeaderReturnsFirstMatch(t *testing.T) {
	f := NewData(nil).WithHeader("k", []byte("first")).WithHeader("k", []byte("second"))
	v, ok := f.GetHeader("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("first"), v)
}

func TestTypeValid(t *testing.T) {
	assert.True(t, TypeHello.Valid())
	assert.True(t, TypeErr.Valid())
	assert.False(t, Type(0xFE).Valid())
}
