package services

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"docs-editor/pkg/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// HomeSlug addresses the index file at the content root.
const HomeSlug = "home"

// ContentExtensions are the file extensions listed in the tree.
var ContentExtensions = []string{".md", ".mdx"}

// TreeBuilder walks a content root and produces the ordered content tree.
type TreeBuilder struct {
	root     string
	excluded map[string]struct{}
}

func NewTreeBuilder(root string, excluded []string) *TreeBuilder {
	set := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		set[name] = struct{}{}
	}
	return &TreeBuilder{root: root, excluded: set}
}

// Build walks the whole root. A missing root yields an empty tree.
func (b *TreeBuilder) Build() ([]models.ContentNode, error) {
	info, err := os.Stat(b.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.ContentNode{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []models.ContentNode{}, nil
	}
	col := collate.New(language.Und, collate.IgnoreCase)
	return b.walk(col, b.root, "")
}

func (b *TreeBuilder) walk(col *collate.Collator, dir, rel string) ([]models.ContentNode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	nodes := make([]models.ContentNode, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if b.skip(name) {
			continue
		}
		childRel := path.Join(rel, name)

		if entry.IsDir() {
			children, err := b.walk(col, filepath.Join(dir, name), childRel)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, models.ContentNode{
				Name:     name,
				Type:     models.NodeDirectory,
				Path:     childRel,
				Children: children,
			})
			continue
		}

		ext := contentExt(name)
		if ext == "" {
			continue
		}
		nodes = append(nodes, models.ContentNode{
			Name: name,
			Type: models.NodeFile,
			Path: childRel,
			Slug: fileSlug(rel, name, ext),
		})
	}

	sortNodes(col, nodes)
	return nodes, nil
}

func (b *TreeBuilder) skip(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := b.excluded[name]
	return ok
}

// contentExt returns the matching content extension of name, or "".
func contentExt(name string) string {
	ext := filepath.Ext(name)
	for _, e := range ContentExtensions {
		if ext == e {
			return ext
		}
	}
	return ""
}

func isIndexFile(name string) bool {
	for _, index := range IndexNames {
		if name == index {
			return true
		}
	}
	return false
}

// fileSlug computes the routing slug of a content file in directory rel.
func fileSlug(rel, name, ext string) string {
	if isIndexFile(name) {
		if rel == "" {
			return HomeSlug
		}
		return rel
	}
	return path.Join(rel, strings.TrimSuffix(name, ext))
}

// sortNodes orders directories before files; within each group index files
// come first, then names by case-insensitive collation.
func sortNodes(col *collate.Collator, nodes []models.ContentNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsDir() != b.IsDir() {
			return a.IsDir()
		}
		ai, bi := isIndexFile(a.Name), isIndexFile(b.Name)
		if ai != bi {
			return ai
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.Name < b.Name
	})
}
