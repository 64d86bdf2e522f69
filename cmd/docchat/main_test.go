package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigPathFromArgs(t *testing.T) {
	assert.Equal(t, "", configPathFromArgs([]string{"chat"}))
	assert.Equal(t, "a.yaml", configPathFromArgs([]string{"--config", "a.yaml", "chat"}))
	assert.Equal(t, "b.yaml", configPathFromArgs([]string{"send", "--config=b.yaml", "hi"}))
	assert.Equal(t, "", configPathFromArgs([]string{"--config"}))
}
