package filesearch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"assistant/internal/capability"

	"github.com/rs/zerolog"
)

// DefaultMaxResults 默认最多返回的结果数
// DefaultMaxResults caps results when Options.MaxResults is unset
const DefaultMaxResults = 10

// DefaultRoots 默认搜索的用户目录
// DefaultRoots are the user directories searched by default
var DefaultRoots = []string{
	"~/Documents",
	"~/Downloads",
	"~/Desktop",
	"~/Pictures",
	"~/Music",
	"~/Videos",
}

var errEnough = errors.New("enough results")

// Options 文件搜索配置
// Options configures a Searcher
type Options struct {
	Roots         []string
	MaxResults    int
	IncludeHidden bool
	Logger        zerolog.Logger
}

// Searcher 在配置的根目录下按文件名子串（不区分大小写）搜索
// Searcher matches case-insensitive filename substrings under the configured roots
type Searcher struct {
	roots         []string
	maxResults    int
	includeHidden bool
	logger        zerolog.Logger
}

// New 创建 Searcher；根目录中的 ~ 会展开为用户主目录
// New creates a Searcher; a leading ~ in a root expands to the home directory
func New(opts Options) *Searcher {
	roots := opts.Roots
	if len(roots) == 0 {
		roots = DefaultRoots
	}
	expanded := make([]string, 0, len(roots))
	seen := map[string]bool{}
	for _, r := range roots {
		p := ExpandHome(strings.TrimSpace(r))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		expanded = append(expanded, filepath.Clean(p))
	}
	max := opts.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	return &Searcher{
		roots:         expanded,
		maxResults:    max,
		includeHidden: opts.IncludeHidden,
		logger:        opts.Logger.With().Str("component", "filesearch").Logger(),
	}
}

// Roots returns the expanded search roots.
func (s *Searcher) Roots() []string { return append([]string(nil), s.roots...) }

// IsReady 至少一个根目录存在时为 true
// IsReady reports whether at least one root exists
func (s *Searcher) IsReady() bool {
	if s == nil {
		return false
	}
	for _, r := range s.roots {
		if fi, err := os.Stat(r); err == nil && fi.IsDir() {
			return true
		}
	}
	return false
}

// Search 按遍历顺序返回最多 maxResults 个匹配；不可读的目录会被跳过
// Search returns up to maxResults matches in walk order; unreadable directories are skipped
func (s *Searcher) Search(ctx context.Context, query string) ([]capability.FileEntry, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []capability.FileEntry{}, nil
	}
	if !s.IsReady() {
		return nil, &capability.AdapterError{Capability: capability.NameFiles, Op: "search", Err: capability.ErrNotConfigured}
	}

	results := make([]capability.FileEntry, 0, s.maxResults)
	for _, root := range s.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if d != nil && d.IsDir() && path != root {
					return fs.SkipDir
				}
				return nil
			}
			name := d.Name()
			if path != root && !s.includeHidden && strings.HasPrefix(name, ".") {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.Contains(strings.ToLower(name), needle) {
				return nil
			}
			entry := capability.FileEntry{Name: name, Path: path}
			if info, err := d.Info(); err == nil {
				entry.Size = info.Size()
				entry.ModTime = info.ModTime()
			}
			results = append(results, entry)
			if len(results) >= s.maxResults {
				return errEnough
			}
			return nil
		})
		switch {
		case errors.Is(err, errEnough):
			return results, nil
		case err != nil && ctx.Err() != nil:
			return nil, &capability.AdapterError{Capability: capability.NameFiles, Op: "search", Err: ctx.Err()}
		case err != nil:
			s.logger.Debug().Str("root", root).Err(err).Msg("walk root failed")
		}
	}
	return results, nil
}

// ExpandHome 展开开头的 ~
// ExpandHome expands a leading ~ to the user's home directory
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}
