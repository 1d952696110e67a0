//go:build integration

package integration

import (
	"context"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/trackd/internal/domain"
	"github.com/eliteGoblin/trackd/internal/usecase"
	"github.com/eliteGoblin/trackd/test/fixtures"
)

var _ = Describe("Reconciliation", func() {
	var (
		tmpDir string
		repo   *fixtures.Repo
		s      *stack
		ctx    context.Context
	)

	reconcile := func(project domain.ProjectContext, decide usecase.DecisionFunc) (*domain.ReconciliationPlan, *domain.ReconciliationResult) {
		plan, result, err := s.controller.Reconcile(ctx, project, decide)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.OK()).To(BeTrue(), "failed: %v, err: %v", result.Failed, result.Err)
		return plan, result
	}

	canonical := func(path string) string {
		content, err := s.templates.Generate(path, repo.Project())
		Expect(err).NotTo(HaveOccurred())
		return string(content)
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "trackd-integration-*")
		Expect(err).NotTo(HaveOccurred())

		repo = fixtures.NewRepo(tmpDir, "demo")
		Expect(repo.Create()).To(Succeed())

		s, err = newStack(repo.Root)
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("first run", func() {
		It("should create every path that policy allows and record it", func() {
			plan, result := reconcile(repo.Project(), nil)

			// hooks/ and hooks/post-sync.sh are optional content
			Expect(plan.ToCreate).To(HaveLen(s.templates.Len() - 2))
			Expect(plan.Unchanged).To(ConsistOf("hooks", "hooks/post-sync.sh"))
			Expect(result.Created).To(Equal(plan.ToCreate))

			Expect(repo.Read("templates/issue.md")).To(Equal(canonical("templates/issue.md")))
			Expect(repo.Exists("hooks")).To(BeFalse())
		})

		It("should be a no-op the second time", func() {
			reconcile(repo.Project(), nil)

			plan, result := reconcile(repo.Project(), nil)
			Expect(plan.IsEmpty()).To(BeTrue())
			Expect(result.Changed()).To(BeFalse())
		})

		It("should refuse to guess missing project context", func() {
			project := repo.Project()
			project.Key = ""

			_, _, err := s.controller.Reconcile(ctx, project, nil)
			Expect(err).To(MatchError(domain.ErrMissingContext))
			Expect(repo.Exists("templates")).To(BeFalse())
		})
	})

	Describe("after a human edits a managed file", func() {
		BeforeEach(func() {
			reconcile(repo.Project(), nil)
			Expect(repo.Write("templates/issue.md", "# my own template\n")).To(Succeed())
		})

		It("should keep the edit when nobody decides", func() {
			plan, result := reconcile(repo.Project(), nil)

			Expect(plan.ToReset).To(Equal([]string{"templates/issue.md"}))
			Expect(result.Kept).To(Equal([]string{"templates/issue.md"}))
			Expect(repo.Read("templates/issue.md")).To(Equal("# my own template\n"))
		})

		It("should keep asking on later passes", func() {
			reconcile(repo.Project(), nil)

			plan, _ := reconcile(repo.Project(), nil)
			Expect(plan.ToReset).To(Equal([]string{"templates/issue.md"}))
		})

		It("should restore the template on overwrite", func() {
			_, result := reconcile(repo.Project(), usecase.FixedDecision(domain.Overwrite))

			Expect(result.Overwritten).To(Equal([]string{"templates/issue.md"}))
			Expect(repo.Read("templates/issue.md")).To(Equal(canonical("templates/issue.md")))

			plan, _ := reconcile(repo.Project(), nil)
			Expect(plan.IsEmpty()).To(BeTrue())
		})

		It("should remove the file on delete and recreate it next pass", func() {
			_, result := reconcile(repo.Project(), usecase.FixedDecision(domain.Delete))
			Expect(result.Deleted).To(Equal([]string{"templates/issue.md"}))
			Expect(repo.Exists("templates/issue.md")).To(BeFalse())

			// always-managed: absence is drift
			plan, _ := reconcile(repo.Project(), nil)
			Expect(plan.ToCreate).To(Equal([]string{"templates/issue.md"}))
		})

		It("should treat an edit that matches the template as unchanged", func() {
			Expect(repo.Write("templates/issue.md", canonical("templates/issue.md"))).To(Succeed())

			plan, _ := reconcile(repo.Project(), nil)
			Expect(plan.IsEmpty()).To(BeTrue())
		})
	})

	Describe("after a human edits config.yaml", func() {
		var edited string

		BeforeEach(func() {
			reconcile(repo.Project(), nil)
			raw, err := repo.Read("config.yaml")
			Expect(err).NotTo(HaveOccurred())
			edited = strings.Replace(raw, "decision: keep", "decision: overwrite", 1)
			Expect(edited).NotTo(Equal(raw))
			Expect(repo.Write("config.yaml", edited)).To(Succeed())
			Expect(repo.Write("templates/issue.md", "# my own template\n")).To(Succeed())
		})

		It("should keep the edit under a blanket overwrite", func() {
			plan, result := reconcile(repo.Project(), usecase.FixedDecision(domain.Overwrite))

			Expect(plan.ToReset).To(ConsistOf("config.yaml", "templates/issue.md"))
			Expect(result.Overwritten).To(Equal([]string{"templates/issue.md"}))
			Expect(result.Kept).To(Equal([]string{"config.yaml"}))
			Expect(repo.Read("config.yaml")).To(Equal(edited))
		})

		It("should keep the edit under a blanket delete", func() {
			_, result := reconcile(repo.Project(), usecase.FixedDecision(domain.Delete))

			Expect(result.Deleted).To(Equal([]string{"templates/issue.md"}))
			Expect(repo.Read("config.yaml")).To(Equal(edited))
		})

		It("should overwrite it when chosen for that path", func() {
			decide := func(*domain.ReconciliationPlan) (domain.ReconciliationDecisions, error) {
				return domain.ReconciliationDecisions{"config.yaml": domain.Overwrite}, nil
			}
			_, result := reconcile(repo.Project(), decide)

			Expect(result.Overwritten).To(Equal([]string{"config.yaml"}))
			Expect(repo.Read("config.yaml")).To(Equal(canonical("config.yaml")))
		})
	})

	Describe("after a human deletes a file", func() {
		BeforeEach(func() {
			reconcile(repo.Project(), nil)
		})

		It("should create missing create-only content again", func() {
			Expect(os.Remove(repo.Path("README.md"))).To(Succeed())

			plan, result := reconcile(repo.Project(), nil)
			Expect(plan.ToCreate).To(Equal([]string{"README.md"}))
			Expect(result.Created).To(Equal([]string{"README.md"}))
			Expect(repo.Read("README.md")).To(Equal(canonical("README.md")))
		})

		It("should bring back always-managed content", func() {
			Expect(os.Remove(repo.Path("templates/bug_report.md"))).To(Succeed())

			_, result := reconcile(repo.Project(), nil)
			Expect(result.Created).To(Equal([]string{"templates/bug_report.md"}))
		})
	})

	Describe("when the templates change between releases", func() {
		It("should restore untouched files without asking", func() {
			reconcile(repo.Project(), nil)

			renamed := repo.Project()
			renamed.Name = "demo-renamed"

			plan, result := reconcile(renamed, nil)
			Expect(plan.ToReset).To(BeEmpty())
			Expect(plan.ToRestore).To(ContainElement("templates/issue.md"))
			Expect(result.Restored).To(ContainElement("templates/issue.md"))
			Expect(repo.Read("templates/issue.md")).To(ContainSubstring("demo-renamed"))
		})

		It("should still ask about files the human changed", func() {
			reconcile(repo.Project(), nil)
			Expect(repo.Write("templates/issue.md", "mine\n")).To(Succeed())

			renamed := repo.Project()
			renamed.Name = "demo-renamed"

			plan, _ := reconcile(renamed, nil)
			Expect(plan.ToReset).To(Equal([]string{"templates/issue.md"}))
			Expect(repo.Read("templates/issue.md")).To(Equal("mine\n"))
		})
	})
})
