package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// samples holds representative data at version From of each migration.
var samples = map[string][]domain.Document{
	"issues:0->1": {
		{},
		{"issues": []any{}},
		{"issues": []any{
			map[string]any{"id": "TRK-1", "title": "Crash", "state": "open", "labels": "bug,ui"},
			map[string]any{"id": "TRK-2", "title": "Docs", "state": "closed", "labels": ""},
			map[string]any{"id": "TRK-3", "title": "No labels", "state": "open"},
		}},
	},
	"issues:1->2": {
		{"issues": []any{
			map[string]any{"id": "TRK-1", "state": "open", "labels": []any{"bug"}},
			map[string]any{"id": "TRK-2"},
		}},
	},
	"boards:0->1": {
		{"boards": []any{
			map[string]any{"name": "Sprint", "columns": "todo,doing,done"},
			map[string]any{"name": "Empty", "columns": ""},
		}},
	},
	"boards:1->2": {
		{"boards": []any{
			map[string]any{"name": "Sprint", "columns": []any{
				map[string]any{"name": "todo"},
				map[string]any{"name": "done"},
			}},
		}},
	},
	"index:0->1": {
		{},
		{"entries": []any{"TRK-1"}},
	},
	"index:1->2": {
		{"tokenizer": "simple", "entries": []any{"TRK-1", "TRK-2"}},
		{"tokenizer": "simple"},
	},
}

func TestMigrations_Reversible(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	for _, family := range r.Families() {
		for _, m := range r.MigrationsFor(family) {
			docs, ok := samples[m.ID().String()]
			require.True(t, ok, "no sample data for %s", m.ID())

			for i, doc := range docs {
				forward, err := m.Forward(doc.Clone())
				require.NoError(t, err, "%s forward sample %d", m.ID(), i)

				back, err := m.Backward(forward.Clone())
				require.NoError(t, err, "%s backward sample %d", m.ID(), i)

				assert.Equal(t, doc, back, "%s sample %d does not round-trip", m.ID(), i)
			}
		}
	}
}

func TestIssuesMigrations_Forward(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	steps, _, err := r.Path(FamilyIssues, 0, 2)
	require.NoError(t, err)

	doc := domain.Document{"issues": []any{
		map[string]any{"id": "TRK-1", "state": "open", "labels": "bug,ui"},
	}}
	for _, s := range steps {
		doc, err = s.Forward(doc)
		require.NoError(t, err)
	}

	assert.Equal(t, domain.Document{"issues": []any{
		map[string]any{"id": "TRK-1", "status": "open", "labels": []any{"bug", "ui"}},
	}}, doc)
}

func TestBoardsMigrations_Forward(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	steps, _, err := r.Path(FamilyBoards, 0, 2)
	require.NoError(t, err)

	doc := domain.Document{"boards": []any{map[string]any{"name": "Sprint", "columns": "todo,done"}}}
	for _, s := range steps {
		doc, err = s.Forward(doc)
		require.NoError(t, err)
	}

	assert.Equal(t, domain.Document{"boards": []any{map[string]any{
		"name": "Sprint",
		"columns": []any{
			map[string]any{"name": "todo", "wip": 0},
			map[string]any{"name": "done", "wip": 0},
		},
	}}}, doc)
}

func TestMigrations_RejectInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		step domain.MigrationDefinition
		back bool
		doc  domain.Document
	}{
		{"issues not a list", IssuesMigrations()[0], false, domain.Document{"issues": "TRK-1"}},
		{"labels not a string", IssuesMigrations()[0], false, domain.Document{"issues": []any{map[string]any{"labels": 3}}}},
		{"label with comma", IssuesMigrations()[0], true, domain.Document{"issues": []any{map[string]any{"labels": []any{"a,b"}}}}},
		{"status and state both set", IssuesMigrations()[1], false, domain.Document{"issues": []any{map[string]any{"state": "open", "status": "open"}}}},
		{"wip already set", BoardsMigrations()[1], false, domain.Document{"boards": []any{map[string]any{"columns": []any{map[string]any{"name": "a", "wip": 3}}}}}},
		{"column with extra fields", BoardsMigrations()[0], true, domain.Document{"boards": []any{map[string]any{"columns": []any{map[string]any{"name": "a", "wip": 3}}}}}},
		{"tokenizer already set", IndexMigrations()[0], false, domain.Document{"tokenizer": "simple"}},
		{"documents already set", IndexMigrations()[1], false, domain.Document{"entries": []any{}, "documents": []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transform := tt.step.Forward
			if tt.back {
				transform = tt.step.Backward
			}
			_, err := transform(tt.doc.Clone())
			assert.Error(t, err)
		})
	}
}
