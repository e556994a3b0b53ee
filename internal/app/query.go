package app

import (
	"fmt"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var projectionOptions = ojg.Options{Sort: true}

// projection applies an optional JSONPath to raw JSON payloads.
type projection struct {
	expr jp.Expr
}

func newProjection(query string) (*projection, error) {
	if query == "" {
		return &projection{}, nil
	}
	expr, err := jp.ParseString(query)
	if err != nil {
		return nil, fmt.Errorf("invalid --query %q: %w", query, err)
	}
	return &projection{expr: expr}, nil
}

// Apply returns one JSON document per match, or raw itself when no query is set.
func (p *projection) Apply(raw []byte) ([]string, error) {
	if p.expr == nil {
		return []string{string(raw)}, nil
	}
	data, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse payload for --query: %w", err)
	}
	matches := p.expr.Get(data)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, oj.JSON(m, &projectionOptions))
	}
	return out, nil
}
