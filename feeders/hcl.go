package feeders

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/GoCodeAlone/modlife"
)

// HclFeeder reads an HCL file. Attributes become variables and blocks nest
// like tables, with labels joined into the key:
//
//	store { snapshot = "/tmp/s.yaml" }   # STORE_SNAPSHOT
//	module "worker" { limit = 3 }        # MODULE_WORKER_LIMIT
//
// Expressions are evaluated without variables or functions.
type HclFeeder struct {
	Path string
}

func NewHclFeeder(filePath string) HclFeeder {
	return HclFeeder{Path: filePath}
}

// Feed implements Feeder.
func (h HclFeeder) Feed() (modlife.EnvVars, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(h.Path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse hcl: %w", diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("failed to parse hcl: unexpected body %T", file.Body)
	}
	doc, err := hclBody(body)
	if err != nil {
		return nil, err
	}
	env := modlife.EnvVars{}
	if err := flatten("", doc, env); err != nil {
		return nil, err
	}
	return env, nil
}

func hclBody(body *hclsyntax.Body) (map[string]any, error) {
	doc := make(map[string]any, len(body.Attributes)+len(body.Blocks))
	for name, attr := range body.Attributes {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("hcl attribute %s: %w", name, diags)
		}
		v, err := ctyValue(val)
		if err != nil {
			return nil, fmt.Errorf("hcl attribute %s: %w", name, err)
		}
		doc[name] = v
	}
	for _, block := range body.Blocks {
		inner, err := hclBody(block.Body)
		if err != nil {
			return nil, err
		}
		target := doc
		for _, key := range append([]string{block.Type}, block.Labels...) {
			next, ok := target[key].(map[string]any)
			if !ok {
				next = map[string]any{}
				target[key] = next
			}
			target = next
		}
		for k, v := range inner {
			target[k] = v
		}
	}
	return doc, nil
}

func ctyValue(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	t := v.Type()
	switch {
	case t == cty.String:
		return v.AsString(), nil
	case t == cty.Bool:
		return v.True(), nil
	case t == cty.Number:
		bf := v.AsBigFloat()
		if i, acc := bf.Int64(); acc == big.Exact {
			return i, nil
		}
		f, _ := bf.Float64()
		return f, nil
	case t.IsListType(), t.IsTupleType(), t.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			item, err := ctyValue(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case t.IsMapType(), t.IsObjectType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			item, err := ctyValue(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", t.FriendlyName())
	}
}
