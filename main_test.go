package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMain(t *testing.T) {
	// main calls cmd.Execute, which parses os.Args and may exit, so only
	// check that it is wired
	assert.NotNil(t, main)
}
