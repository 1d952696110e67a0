package infra

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// ContentProber implements domain.Prober by hashing managed paths on disk.
type ContentProber struct {
	workers int
	logger  *zap.Logger
}

// NewProber creates a prober that hashes up to workers paths concurrently.
func NewProber(workers int, logger *zap.Logger) domain.Prober {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &ContentProber{workers: workers, logger: logger}
}

// Probe reads each managed path once. Only declared paths are visited.
func (p *ContentProber) Probe(
	ctx context.Context,
	root string,
	templates []domain.ManagedFileTemplate,
	project domain.ProjectContext,
) (map[string]domain.FileInfo, error) {
	var (
		mu         sync.Mutex
		infos      = make(map[string]domain.FileInfo, len(templates))
		missingCtx *domain.MissingContextError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, tmpl := range templates {
		tmpl := tmpl
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			info, err := p.probeOne(root, tmpl, project)

			mu.Lock()
			defer mu.Unlock()

			var mce *domain.MissingContextError
			if errors.As(err, &mce) {
				if missingCtx == nil {
					missingCtx = &domain.MissingContextError{}
				}
				missingCtx.Merge(mce)
				return nil
			}
			if err != nil {
				return err
			}
			infos[tmpl.Path] = info
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if missingCtx != nil {
		return nil, missingCtx
	}

	p.logger.Debug("probe completed",
		zap.String("root", root),
		zap.Int("paths", len(infos)))

	return infos, nil
}

func (p *ContentProber) probeOne(root string, tmpl domain.ManagedFileTemplate, project domain.ProjectContext) (domain.FileInfo, error) {
	info := domain.FileInfo{Path: tmpl.Path}

	if !tmpl.IsDir() {
		content, err := tmpl.Generate(project)
		if err != nil {
			return info, err
		}
		info.Expected = content
		info.ExpectedHash = HashBytes(content)
	}

	full := filepath.Join(root, filepath.FromSlash(tmpl.Path))
	stat, err := os.Lstat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, &domain.FilesystemError{Op: "stat", Path: tmpl.Path, Err: err}
	}

	info.Exists = true
	info.IsDir = stat.IsDir()
	if info.IsDir {
		return info, nil
	}

	hash, err := computeSHA256(full)
	if err != nil {
		return info, &domain.FilesystemError{Op: "read", Path: tmpl.Path, Err: err}
	}
	info.ActualHash = hash
	return info, nil
}

// Ensure ContentProber implements domain.Prober.
var _ domain.Prober = (*ContentProber)(nil)
