//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/trackd/internal/domain"
	"github.com/eliteGoblin/trackd/internal/infra"
	"github.com/eliteGoblin/trackd/internal/schema"
	"github.com/eliteGoblin/trackd/test/fixtures"
)

// envelope mirrors how file-backed families are stored.
type envelope struct {
	SchemaVersion int            `json:"schema_version" yaml:"schema_version"`
	Data          map[string]any `json:"data" yaml:"data"`
}

var _ = Describe("Migration", func() {
	var (
		tmpDir string
		repo   *fixtures.Repo
		s      *stack
		ctx    context.Context
	)

	readIssues := func() envelope {
		raw, err := repo.Read("data/issues.json")
		Expect(err).NotTo(HaveOccurred())
		var env envelope
		Expect(json.Unmarshal([]byte(raw), &env)).To(Succeed())
		return env
	}

	readBoards := func() envelope {
		raw, err := repo.Read("data/boards.yaml")
		Expect(err).NotTo(HaveOccurred())
		var env envelope
		Expect(yaml.Unmarshal([]byte(raw), &env)).To(Succeed())
		return env
	}

	firstIssue := func(env envelope) map[string]any {
		issues, ok := env.Data["issues"].([]any)
		Expect(ok).To(BeTrue())
		Expect(issues).NotTo(BeEmpty())
		return issues[0].(map[string]any)
	}

	versions := func() map[string]int {
		out, err := infra.NewFileVersionStore(s.layout.VersionsPath).All()
		Expect(err).NotTo(HaveOccurred())
		return out
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "trackd-integration-*")
		Expect(err).NotTo(HaveOccurred())

		repo = fixtures.NewRepo(tmpDir, "demo")
		Expect(repo.Create()).To(Succeed())
		Expect(repo.WriteLegacyData()).To(Succeed())

		s, err = newStack(repo.Root)
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("upgrading legacy data", func() {
		It("should walk every family to its latest version", func() {
			results, err := s.controller.Migrate(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for _, r := range results {
				Expect(r.Succeeded()).To(BeTrue(), "%s: %v", r.Family, r.Err)
				Expect(r.Direction).To(Equal(domain.DirectionUp))
				Expect(r.To).To(Equal(2))
			}

			issues := readIssues()
			Expect(issues.SchemaVersion).To(Equal(2))
			issue := firstIssue(issues)
			Expect(issue["status"]).To(Equal("open"))
			Expect(issue).NotTo(HaveKey("state"))
			Expect(issue["labels"]).To(Equal([]any{"bug", "auth"}))

			boards := readBoards()
			Expect(boards.SchemaVersion).To(Equal(2))
			board := boards.Data["boards"].([]any)[0].(map[string]any)
			Expect(board["columns"]).To(HaveLen(3))
			Expect(board["columns"].([]any)[0]).To(Equal(map[string]any{"name": "todo", "wip": 0}))

			index, version, err := s.index.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(2))
			Expect(index["tokenizer"]).To(Equal("simple"))

			Expect(versions()).To(Equal(map[string]int{"issues": 2, "boards": 2, "index": 2}))
		})

		It("should snapshot each family before changing it", func() {
			_, err := s.controller.Migrate(ctx, map[string]int{schema.FamilyIssues: 2})
			Expect(err).NotTo(HaveOccurred())

			snap, err := s.snapshots.Latest(schema.FamilyIssues)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Version).To(Equal(0))
			Expect(snap.Document["issues"].([]any)[0].(map[string]any)["labels"]).To(Equal("bug,auth"))
		})

		It("should report the applied steps in order", func() {
			results, err := s.controller.Migrate(ctx, map[string]int{schema.FamilyIssues: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Applied).To(Equal([]domain.MigrationID{
				{Family: "issues", From: 0, To: 1},
				{Family: "issues", From: 1, To: 2},
			}))
		})
	})

	Describe("downgrading", func() {
		It("should reproduce the original data", func() {
			_, err := s.controller.Migrate(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			results, err := s.controller.Migrate(ctx, map[string]int{"issues": 0, "boards": 0})
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.Succeeded()).To(BeTrue(), "%s: %v", r.Family, r.Err)
				Expect(r.Direction).To(Equal(domain.DirectionDown))
			}

			issue := firstIssue(readIssues())
			Expect(issue["state"]).To(Equal("open"))
			Expect(issue["labels"]).To(Equal("bug,auth"))

			board := readBoards().Data["boards"].([]any)[0].(map[string]any)
			Expect(board["columns"]).To(Equal("todo,doing,done"))
		})
	})

	Describe("restoring a snapshot", func() {
		It("should put the family back where it was before migrating", func() {
			_, err := s.controller.Migrate(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			snap, err := s.controller.Restore(ctx, schema.FamilyBoards)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Version).To(Equal(0))

			Expect(readBoards().SchemaVersion).To(Equal(0))
			Expect(versions()[schema.FamilyBoards]).To(Equal(0))

			current, err := s.controller.Versions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(current).To(ContainElement(HaveField("Family", schema.FamilyBoards)))
		})
	})

	Describe("a record the migration cannot read", func() {
		BeforeEach(func() {
			Expect(repo.Write("data/issues.json", `{"issues": [{"id": "DEMO-1", "labels": 7}]}`)).To(Succeed())
		})

		It("should stop at the last good version and resume once fixed", func() {
			results, err := s.controller.Migrate(ctx, map[string]int{schema.FamilyIssues: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Status).To(Equal(domain.MigrationPartialFailure))
			Expect(results[0].LastGood).To(Equal(0))
			Expect(results[0].Err).To(MatchError(domain.ErrTransform))

			// Untouched on disk
			raw, err := repo.Read("data/issues.json")
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(ContainSubstring(`"labels": 7`))

			Expect(repo.Write("data/issues.json", `{"issues": [{"id": "DEMO-1", "labels": "bug"}]}`)).To(Succeed())

			results, err = s.controller.Migrate(ctx, map[string]int{schema.FamilyIssues: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Succeeded()).To(BeTrue())
			Expect(firstIssue(readIssues())["labels"]).To(Equal([]any{"bug"}))
		})
	})

	Describe("an unreachable target", func() {
		It("should fail before touching data", func() {
			_, err := s.controller.Migrate(ctx, map[string]int{schema.FamilyIssues: 9})
			Expect(err).To(MatchError(domain.ErrNoPath))

			raw, err := repo.Read("data/issues.json")
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(Equal(fixtures.LegacyIssues))
		})
	})
})
