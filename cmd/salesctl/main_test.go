package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItem(t *testing.T) {
	id, qty, err := parseItem("12:3")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, 3, qty)

	for _, raw := range []string{"12", "x:3", "12:y", ""} {
		_, _, err := parseItem(raw)
		assert.Error(t, err, raw)
	}
}

func TestRestockRequiresFlags(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run([]string{"salesctl", "restock", "--product", "3"})
	assert.Error(t, err)
}
