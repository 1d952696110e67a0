package scaffold

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/eliteGoblin/trackd/internal/domain"
)

//go:embed assets/*.tmpl
var assets embed.FS

var funcs = template.FuncMap{
	// quote renders a string as a double-quoted scalar valid in both JSON and YAML.
	"quote": func(s string) (string, error) {
		b, err := json.Marshal(s)
		return string(b), err
	},
}

// FromAsset returns a generator rendering an embedded template.
// The template is parsed eagerly so a broken asset fails registry construction.
func FromAsset(path, asset string, required ...string) (domain.ContentGenerator, error) {
	src, err := assets.ReadFile("assets/" + asset)
	if err != nil {
		return nil, fmt.Errorf("template asset %s: %w", asset, err)
	}
	return FromText(path, string(src), required...)
}

// FromText returns a generator rendering tmpl with the project context.
func FromText(path, tmpl string, required ...string) (domain.ContentGenerator, error) {
	t, err := template.New(path).Option("missingkey=error").Funcs(funcs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template for %s: %w", path, err)
	}

	return func(ctx domain.ProjectContext) ([]byte, error) {
		if missing := missingFields(ctx, required); len(missing) > 0 {
			return nil, domain.NewMissingContextError(path, missing...)
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, ctx); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", path, err)
		}
		return buf.Bytes(), nil
	}, nil
}

// Static returns a generator for fixed content.
func Static(content string) domain.ContentGenerator {
	data := []byte(content)
	return func(domain.ProjectContext) ([]byte, error) {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
}

func missingFields(ctx domain.ProjectContext, required []string) []string {
	var missing []string
	for _, f := range required {
		if ctx.Field(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
