// Package capability defines the typed analytics capabilities the router
// dispatches to, and the registry that owns them.
//
// Each capability wraps one engine operation behind a declared parameter
// schema. The registry validates arguments against the schema before any
// computation runs, so engines only ever see well-typed inputs.
package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/analytics"
	"github.com/Saifulislamsayem19/Sales-AI-Agent/internal/dataset"
)

// Param value types.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
)

// Param declares one capability parameter.
type Param struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
}

// InvokeFunc runs a capability against an immutable dataset snapshot with
// validated arguments.
type InvokeFunc func(ctx context.Context, ds *dataset.Dataset, args map[string]interface{}) (*analytics.Result, error)

// Capability is one registered analytics operation.
type Capability struct {
	// Name is the unique identifier the router dispatches on.
	Name string

	// Description explains what the capability computes.
	Description string

	// Category groups the capability by the question it answers.
	Category analytics.Category

	// Params declares the accepted arguments.
	Params []Param

	// Keywords are the query hints the router matches on.
	Keywords []string

	// Priority breaks ties when several capabilities match a query.
	// Higher wins (default 50).
	Priority int

	// Run executes the capability.
	Run InvokeFunc
}

// Validate checks the capability definition is usable.
func (c *Capability) Validate() error {
	if c.Name == "" {
		return ErrNameEmpty
	}
	if c.Run == nil {
		return ErrRunNil
	}
	for _, p := range c.Params {
		switch p.Type {
		case TypeString, TypeInt, TypeFloat, TypeBool:
		default:
			return fmt.Errorf("%w: param %s has unknown type %q", ErrInvalidParameter, p.Name, p.Type)
		}
	}
	return nil
}

// MatchScore counts how many of the capability's keywords occur in the
// query. The query must already be lowercased.
func (c *Capability) MatchScore(query string) int {
	score := 0
	for _, kw := range c.Keywords {
		if strings.Contains(query, kw) {
			score++
		}
	}
	return score
}

// Invocation is the outcome of one capability run.
type Invocation struct {
	Capability *Capability
	Result     *analytics.Result
	Err        error
	Duration   time.Duration
}

// OK reports whether the invocation produced a result without error.
func (i *Invocation) OK() bool {
	return i != nil && i.Err == nil && i.Result != nil
}
