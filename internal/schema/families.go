package schema

import (
	"fmt"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// Data families persisted in the control directory.
const (
	FamilyIssues = "issues" // data/issues.json
	FamilyBoards = "boards" // data/boards.yaml
	FamilyIndex  = "index"  // cache/index.db
)

// IssuesMigrations returns the schema history of the issues family.
func IssuesMigrations() []domain.MigrationDefinition {
	return []domain.MigrationDefinition{
		{
			Family: FamilyIssues, From: 0, To: 1, Name: "split-labels",
			Forward: func(doc domain.Document) (domain.Document, error) {
				err := eachRecord(doc, "issues", func(_ int, rec map[string]any) error {
					v, ok := rec["labels"]
					if !ok {
						return nil
					}
					labels, err := splitList(v)
					if err != nil {
						return fmt.Errorf("labels: %w", err)
					}
					rec["labels"] = labels
					return nil
				})
				return doc, err
			},
			Backward: func(doc domain.Document) (domain.Document, error) {
				err := eachRecord(doc, "issues", func(_ int, rec map[string]any) error {
					v, ok := rec["labels"]
					if !ok {
						return nil
					}
					joined, err := joinList(v)
					if err != nil {
						return fmt.Errorf("labels: %w", err)
					}
					rec["labels"] = joined
					return nil
				})
				return doc, err
			},
		},
		{
			Family: FamilyIssues, From: 1, To: 2, Name: "state-to-status",
			Forward: func(doc domain.Document) (domain.Document, error) {
				err := eachRecord(doc, "issues", func(_ int, rec map[string]any) error {
					return renameField(rec, "state", "status")
				})
				return doc, err
			},
			Backward: func(doc domain.Document) (domain.Document, error) {
				err := eachRecord(doc, "issues", func(_ int, rec map[string]any) error {
					return renameField(rec, "status", "state")
				})
				return doc, err
			},
		},
	}
}

// BoardsMigrations returns the schema history of the boards family.
func BoardsMigrations() []domain.MigrationDefinition {
	return []domain.MigrationDefinition{
		{
			Family: FamilyBoards, From: 0, To: 1, Name: "columns-to-objects",
			Forward: func(doc domain.Document) (domain.Document, error) {
				err := eachRecord(doc, "boards", func(_ int, board map[string]any) error {
					v, ok := board["columns"]
					if !ok {
						return nil
					}
					names, err := splitList(v)
					if err != nil {
						return fmt.Errorf("columns: %w", err)
					}
					columns := make([]any, len(names))
					for i, n := range names {
						columns[i] = map[string]any{"name": n}
					}
					board["columns"] = columns
					return nil
				})
				return doc, err
			},
			Backward: func(doc domain.Document) (domain.Document, error) {
				err := eachRecord(doc, "boards", func(_ int, board map[string]any) error {
					if _, ok := board["columns"]; !ok {
						return nil
					}
					names := make([]any, 0)
					err := eachRecord(board, "columns", func(i int, col map[string]any) error {
						if len(col) != 1 {
							return fmt.Errorf("column carries fields besides name")
						}
						names = append(names, col["name"])
						return nil
					})
					if err != nil {
						return err
					}
					joined, err := joinList(names)
					if err != nil {
						return fmt.Errorf("columns: %w", err)
					}
					board["columns"] = joined
					return nil
				})
				return doc, err
			},
		},
		{
			Family: FamilyBoards, From: 1, To: 2, Name: "add-wip-limits",
			Forward: func(doc domain.Document) (domain.Document, error) {
				err := eachRecord(doc, "boards", func(_ int, board map[string]any) error {
					return eachRecord(board, "columns", func(_ int, col map[string]any) error {
						if _, exists := col["wip"]; exists {
							return fmt.Errorf("column %v already has a wip limit", col["name"])
						}
						col["wip"] = 0
						return nil
					})
				})
				return doc, err
			},
			Backward: func(doc domain.Document) (domain.Document, error) {
				err := eachRecord(doc, "boards", func(_ int, board map[string]any) error {
					return eachRecord(board, "columns", func(_ int, col map[string]any) error {
						delete(col, "wip")
						return nil
					})
				})
				return doc, err
			},
		},
	}
}

// IndexMigrations returns the schema history of the search index family.
func IndexMigrations() []domain.MigrationDefinition {
	return []domain.MigrationDefinition{
		{
			Family: FamilyIndex, From: 0, To: 1, Name: "add-tokenizer",
			Forward: func(doc domain.Document) (domain.Document, error) {
				if _, exists := doc["tokenizer"]; exists {
					return nil, fmt.Errorf("tokenizer already set")
				}
				doc["tokenizer"] = "simple"
				return doc, nil
			},
			Backward: func(doc domain.Document) (domain.Document, error) {
				delete(doc, "tokenizer")
				return doc, nil
			},
		},
		{
			Family: FamilyIndex, From: 1, To: 2, Name: "rename-entries",
			Forward:  renameKey("entries", "documents"),
			Backward: renameKey("documents", "entries"),
		},
	}
}
