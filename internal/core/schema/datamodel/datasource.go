package datamodel

import (
	"fmt"
	"os"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/schema/ast"
)

// StringFromEnv is a literal string or an env("VAR") reference.
type StringFromEnv struct {
	Value      string
	FromEnvVar string
}

// Resolve returns the literal, or the value of the referenced variable.
func (s StringFromEnv) Resolve() (string, error) {
	return s.ResolveWith(os.LookupEnv)
}

// ResolveWith resolves through a custom lookup.
func (s StringFromEnv) ResolveWith(lookup func(string) (string, bool)) (string, error) {
	if s.FromEnvVar == "" {
		return s.Value, nil
	}
	v, ok := lookup(s.FromEnvVar)
	if !ok || v == "" {
		return "", fmt.Errorf("environment variable not found: %s", s.FromEnvVar)
	}
	return v, nil
}

// Datasource is the datasource block.
type Datasource struct {
	Name              string
	Provider          flavour.Provider
	URL               StringFromEnv
	ShadowDatabaseURL *StringFromEnv
	Pos               lexer.Position
}

func liftDatasource(blocks []*ast.ConfigBlock, diags *Diagnostics) *Datasource {
	if len(blocks) == 0 {
		return nil
	}
	if len(blocks) > 1 {
		diags.addf(blocks[1].Pos, "You defined more than one datasource. This is not allowed yet because support for multiple databases has not been implemented yet.")
	}
	block := blocks[0]
	ds := &Datasource{Name: block.Name, Pos: block.Pos}

	providerProp := block.Property("provider")
	if providerProp == nil {
		diags.addf(block.Pos, "Argument \"provider\" is missing in data source block \"%s\".", block.Name)
	} else if raw, ok := ast.AsString(providerProp.Value); !ok {
		diags.addf(providerProp.Pos, "Expected a string value, but received %s.", providerProp.Value.String())
	} else if p, err := flavour.ParseProvider(raw); err != nil {
		diags.addf(providerProp.Pos, "Datasource provider not known: %q.", raw)
	} else {
		ds.Provider = p
	}

	urlProp := block.Property("url")
	if urlProp == nil {
		diags.addf(block.Pos, "Argument \"url\" is missing in data source block \"%s\".", block.Name)
	} else if v, ok := liftStringFromEnv(urlProp, diags); ok {
		ds.URL = v
	}

	if shadow := block.Property("shadowDatabaseUrl"); shadow != nil {
		if v, ok := liftStringFromEnv(shadow, diags); ok {
			ds.ShadowDatabaseURL = &v
		}
	}
	return ds
}

func liftStringFromEnv(prop *ast.ConfigProperty, diags *Diagnostics) (StringFromEnv, bool) {
	if s, ok := ast.AsString(prop.Value); ok {
		return StringFromEnv{Value: s}, true
	}
	if call, ok := ast.AsFunction(prop.Value); ok && call.Name == "env" && len(call.Args()) == 1 {
		if name, ok := ast.AsString(call.Args()[0].Value); ok {
			return StringFromEnv{FromEnvVar: name}, true
		}
	}
	diags.addf(prop.Pos, "Expected a string or env(\"VAR\") value for %q, but received %s.", prop.Name, prop.Value.String())
	return StringFromEnv{}, false
}

func liftGenerators(blocks []*ast.ConfigBlock, diags *Diagnostics) []*Generator {
	out := make([]*Generator, 0, len(blocks))
	for _, block := range blocks {
		g := &Generator{Name: block.Name}
		if p := block.Property("provider"); p != nil {
			g.Provider, _ = ast.AsString(p.Value)
		}
		if p := block.Property("previewFeatures"); p != nil {
			features, ok := ast.StringList(p.Value)
			if !ok {
				diags.addf(p.Pos, "Expected an array of strings for previewFeatures.")
			}
			g.PreviewFeatures = features
		}
		out = append(out, g)
	}
	return out
}
