package scaffold

import "github.com/eliteGoblin/trackd/internal/domain"

// assetTemplate declares a managed file rendered from an embedded asset.
type assetTemplate struct {
	path     string
	asset    string
	policy   domain.OverwritePolicy
	mode     uint32
	required []string
}

// defaultDirectories are created before any file beneath them.
var defaultDirectories = []struct {
	path   string
	policy domain.OverwritePolicy
}{
	{"templates", domain.PolicyAlwaysManaged},
	{"schema", domain.PolicyAlwaysManaged},
	{"hooks", domain.PolicyNeverOverwriteIfPresent},
}

var defaultFiles = []assetTemplate{
	{path: ".gitignore", asset: "gitignore.tmpl", policy: domain.PolicyAlwaysManaged},
	{path: "config.yaml", asset: "config.yaml.tmpl", policy: domain.PolicyCreateOnly,
		required: []string{"id", "name", "key", "default_branch"}},
	{path: "README.md", asset: "README.md.tmpl", policy: domain.PolicyCreateOnly,
		required: []string{"name", "key"}},
	{path: "templates/issue.md", asset: "issue.md.tmpl", policy: domain.PolicyAlwaysManaged,
		required: []string{"name", "key"}},
	{path: "templates/bug_report.md", asset: "bug_report.md.tmpl", policy: domain.PolicyAlwaysManaged,
		required: []string{"key"}},
	{path: "templates/pull_request.md", asset: "pull_request.md.tmpl", policy: domain.PolicyAlwaysManaged,
		required: []string{"key", "default_branch"}},
	{path: "schema/issue.schema.json", asset: "issue.schema.json.tmpl", policy: domain.PolicyAlwaysManaged,
		required: []string{"name", "key"}},
	{path: "schema/board.schema.json", asset: "board.schema.json.tmpl", policy: domain.PolicyAlwaysManaged,
		required: []string{"name"}},
	{path: "hooks/post-sync.sh", asset: "post-sync.sh.tmpl", policy: domain.PolicyNeverOverwriteIfPresent,
		mode: 0755, required: []string{"name"}},
}

// DefaultTemplates returns the managed file set shipped with this release.
func DefaultTemplates() ([]domain.ManagedFileTemplate, error) {
	out := make([]domain.ManagedFileTemplate, 0, len(defaultDirectories)+len(defaultFiles))

	for _, d := range defaultDirectories {
		out = append(out, domain.ManagedFileTemplate{
			Path:   d.path,
			Kind:   domain.KindDirectory,
			Policy: d.policy,
		})
	}

	for _, f := range defaultFiles {
		gen, err := FromAsset(f.path, f.asset, f.required...)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ManagedFileTemplate{
			Path:     f.path,
			Kind:     domain.KindFile,
			Policy:   f.policy,
			Mode:     f.mode,
			Required: f.required,
			Generate: gen,
		})
	}
	return out, nil
}
