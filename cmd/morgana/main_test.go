package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListenAddr(t *testing.T) {
	t.Run("uses the configured port", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "")
		assert.Equal(t, ":9090", listenAddr(9090))
	})

	t.Run("HTTP_PORT overrides the configuration", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "8181")
		assert.Equal(t, ":8181", listenAddr(9090))
	})
}
