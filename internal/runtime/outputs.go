package runtime

import (
	"encoding/json"
	"sync"

	"github.com/stepwise-run/stepwise/internal/tree"
)

// sourceRank orders the four ways a wrangler/flavour can deliver an
// output value, lowest first; a later line at an equal-or-higher rank
// overrides an earlier one (§4.7 "Output precedence").
type sourceRank int

const (
	rankFlavour sourceRank = iota
	rankParseOutput
	rankParseJSONOutputs
	rankParseJSONOutputDict
)

// Captured accumulates output values discovered while reading a cab's
// streams, honouring the precedence rule: a higher rank always wins over
// a lower one regardless of arrival order, and within the same rank the
// later line wins.
// Captured is written from both the stdout and stderr reader goroutines
// (§4.7 "read lines concurrently"), so every access goes through mu.
type Captured struct {
	mu     sync.Mutex
	values map[string]*tree.Node
	ranks  map[string]sourceRank
}

func newCaptured() *Captured {
	return &Captured{values: map[string]*tree.Node{}, ranks: map[string]sourceRank{}}
}

func (c *Captured) set(name string, rank sourceRank, value *tree.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.ranks[name]; ok && prev > rank {
		return
	}
	c.values[name] = value
	c.ranks[name] = rank
}

// Seed records a flavour's own return value or an inline variable, the
// lowest-precedence source.
func (c *Captured) Seed(name string, value *tree.Node) { c.set(name, rankFlavour, value) }

func (c *Captured) Get(name string) (*tree.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[name]
	return v, ok
}

// applyParseJSONOutputs unmarshals a line as a flat JSON object of
// name -> value and records each at rankParseJSONOutputs.
func (c *Captured) applyParseJSONOutputs(line string) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return
	}
	for k, v := range m {
		c.set(k, rankParseJSONOutputs, fromJSON(v))
	}
}

// applyParseJSONOutputDict unmarshals a line as a JSON object nested one
// level under a top-level "outputs" (or the whole object, if there is no
// such key) and records each entry at the highest rank.
func (c *Captured) applyParseJSONOutputDict(line string) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return
	}
	dict := m
	if inner, ok := m["outputs"].(map[string]interface{}); ok {
		dict = inner
	}
	for k, v := range dict {
		c.set(k, rankParseJSONOutputDict, fromJSON(v))
	}
}

func fromJSON(v interface{}) *tree.Node {
	switch t := v.(type) {
	case string:
		return tree.NewString(t)
	case bool:
		return tree.NewBool(t)
	case float64:
		if t == float64(int64(t)) {
			return tree.NewInt(int64(t))
		}
		return tree.NewFloat(t)
	case []interface{}:
		items := make([]*tree.Node, len(t))
		for i, e := range t {
			items[i] = fromJSON(e)
		}
		return tree.NewList(items...)
	case map[string]interface{}:
		out := tree.NewMap()
		for k, e := range t {
			out.Set(k, fromJSON(e))
		}
		return out
	default:
		return tree.Null()
	}
}
