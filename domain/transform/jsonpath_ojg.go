package transform

import "github.com/ohler55/ojg/jp"

// ojgPath adapts github.com/ohler55/ojg/jp.Expr to the jsonPath interface.
// ojg is the JSONPath engine pulled in from the retrieval pack's gateway
// repos (an indirect dependency there); it's the only JSONPath
// implementation in the corpus with filter/wildcard support.
type ojgPath struct {
	expr jp.Expr
}

func newJSONPath(path string) (jsonPath, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, err
	}
	return &ojgPath{expr: expr}, nil
}

func (p *ojgPath) Get(doc interface{}) []interface{} {
	return p.expr.Get(doc)
}

func (p *ojgPath) Set(doc interface{}, value interface{}) error {
	return p.expr.Set(doc, value)
}

func (p *ojgPath) Del(doc interface{}) error {
	return p.expr.Del(doc)
}
