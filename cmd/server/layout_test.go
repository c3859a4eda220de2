package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organograma/internal/layout"
)

func TestRunLayout(t *testing.T) {
	in := `[
		{"id":"cmt","rank":"Cel","name":"Almeida","sector":"Comando"},
		{"id":"s1","superior_id":"cmt","rank":"Cap","name":"Silva"},
		{"id":"s2","superior_id":"cmt","rank":"Cap","name":"Souza"}
	]`

	var out bytes.Buffer
	require.NoError(t, runLayout(strings.NewReader(in), &out, layout.Options{}))

	var res layout.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Len(t, res.Nodes, 3)
	assert.Len(t, res.Edges, 2)
	assert.Equal(t, "Comando", res.Nodes[0].Label.Sector)
	assert.Equal(t, layout.DefaultLevelHeight, res.Nodes[1].Position.Y)
	assert.Equal(t, -res.Nodes[1].Position.X, res.Nodes[2].Position.X)
}

func TestRunLayoutCycle(t *testing.T) {
	in := `[{"id":"a","superior_id":"b"},{"id":"b","superior_id":"a"}]`

	err := runLayout(strings.NewReader(in), &bytes.Buffer{}, layout.Options{})
	assert.ErrorIs(t, err, layout.ErrCycleDetected)
}

func TestRunLayoutBadInput(t *testing.T) {
	err := runLayout(strings.NewReader(`{"id":"a"}`), &bytes.Buffer{}, layout.Options{})
	assert.ErrorContains(t, err, "decode records")
}
