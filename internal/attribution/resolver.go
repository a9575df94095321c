// Package attribution cross-references the files implicated by a diagnosis
// against version-control history, producing per-file commit records and a
// ranked list of likely owners for the primary file.
package attribution

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stacksentry/stacksentry/api/schemas"
	"github.com/stacksentry/stacksentry/internal/config"
)

// Resolver resolves commit attribution for a set of implicated files.
// Resolution is best-effort: individual lookup failures degrade the
// affected file's contribution to empty instead of failing the whole call.
type Resolver struct {
	source        schemas.CommitSource
	logger        *zap.Logger
	historyDepth  int
	ownerWindow   int
	topAuthors    int
	fanOutLimit   int
	stripPrefixes []string
}

// NewResolver builds a Resolver from the pipeline configuration.
func NewResolver(source schemas.CommitSource, cfg config.PipelineConfig, logger *zap.Logger) *Resolver {
	return &Resolver{
		source:        source,
		logger:        logger.Named("attribution"),
		historyDepth:  cfg.HistoryDepth,
		ownerWindow:   cfg.OwnerWindow,
		topAuthors:    cfg.TopAuthors,
		fanOutLimit:   cfg.FanOutLimit,
		stripPrefixes: cfg.StripPrefixes,
	}
}

// Resolve fetches commit history for every file and ranks owners of the
// first one (the primary file). It fails only when the file list itself is
// empty; every network failure is logged and swallowed.
func (r *Resolver) Resolve(ctx context.Context, files []string, ref schemas.RepoRef) (*schemas.Attribution, error) {
	if len(files) == 0 {
		return nil, schemas.NewInvalidInput("attribution requires at least one implicated file")
	}

	normalized := make([]string, len(files))
	for i, f := range files {
		normalized[i] = r.NormalizePath(f)
	}

	// Fan out one task per file plus one for the owner ranking. Each task
	// writes to its own slot, so reassembly preserves input order.
	perFile := make([][]schemas.CommitRecord, len(normalized))
	var owners *schemas.OwnerRanking

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanOutLimit)

	for i, path := range normalized {
		g.Go(func() error {
			commits, err := r.resolveFile(gctx, ref, path)
			if err != nil {
				r.logger.Warn("Failed to resolve file history; continuing without it",
					zap.String("file", path), zap.Error(err))
				commits = []schemas.CommitRecord{}
			}
			perFile[i] = commits
			return nil
		})
	}

	primary := normalized[0]
	g.Go(func() error {
		ranking, err := r.rankOwners(gctx, ref, primary)
		if err != nil {
			r.logger.Warn("Failed to rank owners for primary file; continuing without ranking",
				zap.String("file", primary), zap.Error(err))
			return nil
		}
		owners = ranking
		return nil
	})

	// Workers never return errors; Wait only collects completion.
	_ = g.Wait()

	attribution := &schemas.Attribution{
		Files:         make([]schemas.FileCommits, len(normalized)),
		PrimaryOwners: owners,
	}
	for i, path := range normalized {
		attribution.Files[i] = schemas.FileCommits{Path: path, Commits: perFile[i]}
	}
	return attribution, nil
}

// resolveFile fetches the recent commits touching path and enriches each
// with the file-level patch from the commit's change set. Detail fetches
// for a single file run concurrently but land back in commit order.
func (r *Resolver) resolveFile(ctx context.Context, ref schemas.RepoRef, path string) ([]schemas.CommitRecord, error) {
	history, err := r.source.FileCommitHistory(ctx, ref, path, r.historyDepth)
	if err != nil {
		return nil, err
	}

	records := make([]schemas.CommitRecord, len(history))

	g, gctx := errgroup.WithContext(ctx)
	for i, commit := range history {
		g.Go(func() error {
			records[i] = r.enrichCommit(gctx, ref, path, commit)
			return nil
		})
	}
	_ = g.Wait()

	return records, nil
}

// enrichCommit attaches the patch entry matching the exact file path. A
// commit can appear in a file's history without containing the literal
// filename (renames); those keep a synthesized unknown-status record, as
// does any commit whose detail lookup fails.
func (r *Resolver) enrichCommit(ctx context.Context, ref schemas.RepoRef, path string, commit schemas.CommitRecord) schemas.CommitRecord {
	record := commit
	record.Diff = nil
	record.Additions = 0
	record.Deletions = 0
	record.Status = "unknown"

	details, err := r.source.CommitDetails(ctx, ref, commit.SHA)
	if err != nil {
		r.logger.Warn("Failed to fetch commit details",
			zap.String("sha", commit.SHA), zap.String("file", path), zap.Error(err))
		return record
	}

	for _, change := range details.Files {
		if change.Filename == path {
			record.Diff = change.Patch
			record.Additions = change.Additions
			record.Deletions = change.Deletions
			record.Status = change.Status
			break
		}
	}
	return record
}

// rankOwners analyzes a wider history window for the primary file, groups
// commits by author and returns the top authors by commit count. The sort
// is stable, so equal counts keep first-encountered order.
func (r *Resolver) rankOwners(ctx context.Context, ref schemas.RepoRef, path string) (*schemas.OwnerRanking, error) {
	commits, err := r.source.FileCommitHistory(ctx, ref, path, r.ownerWindow)
	if err != nil {
		return nil, err
	}

	byAuthor := make(map[string]*schemas.AuthorStat)
	var order []string

	for _, commit := range commits {
		stat, seen := byAuthor[commit.Author]
		if !seen {
			stat = &schemas.AuthorStat{Author: commit.Author, Email: commit.Email}
			byAuthor[commit.Author] = stat
			order = append(order, commit.Author)
		}
		stat.CommitCount++
		stat.Commits = append(stat.Commits, schemas.AuthorCommit{
			SHA:     commit.ShortSHA,
			Message: firstLine(commit.Message),
			Date:    commit.Date,
		})
	}

	ranked := make([]schemas.AuthorStat, 0, len(order))
	for _, author := range order {
		ranked = append(ranked, *byAuthor[author])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CommitCount > ranked[j].CommitCount
	})

	if len(ranked) > r.topAuthors {
		ranked = ranked[:r.topAuthors]
	}

	return &schemas.OwnerRanking{
		TotalCommitsAnalyzed: len(commits),
		TopAuthors:           ranked,
	}, nil
}

// NormalizePath strips the first matching local filesystem prefix so the
// path can serve as a repository query key. Paths without a known prefix
// pass through unchanged.
func (r *Resolver) NormalizePath(path string) string {
	for _, prefix := range r.stripPrefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
		}
	}
	return path
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
