package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct{ name string }

func TestContainer_LazySingleton(t *testing.T) {
	c := NewContainer()
	c.Register("name", "node")

	builds := 0
	tok := NewToken[*greeter]("test:greeter")
	RegisterToken(c, tok, func(sr ServiceRegistry) *greeter {
		builds++
		return &greeter{name: sr.Get("name").(string)}
	})

	assert.Equal(t, 0, builds)

	first := GetToken(c, tok)
	second := GetToken(c, tok)

	require.Same(t, first, second)
	assert.Equal(t, "node", first.name)
	assert.Equal(t, 1, builds)
}

func TestContainer_UnknownPanics(t *testing.T) {
	c := NewContainer()
	assert.Panics(t, func() { c.Get("missing") })
}

func TestContainer_CyclePanics(t *testing.T) {
	c := NewContainer()
	c.RegisterFactory("a", func(sr ServiceRegistry) any { return sr.Get("b") })
	c.RegisterFactory("b", func(sr ServiceRegistry) any { return sr.Get("a") })

	assert.Panics(t, func() { c.Get("a") })
}
