package tree

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

const (
	keyInclude     = "_include"
	keyIncludePost = "_include_post"
	keyUse         = "_use"
	keyScrub       = "_scrub"
)

// Loader resolves document references (bare filenames, package-qualified
// "(pkg)name" references, and "(.)"-relative references) against a search
// path, and drives _include/_include_post/_use/_scrub resolution to a
// fixed point.
type Loader struct {
	// IncludePaths is the ordered list of directories searched for
	// non-relative references, populated from STIMELA_INCLUDE plus any
	// standard user locations the caller appends.
	IncludePaths []string

	// ignoreMatcher optionally filters candidate files found while
	// searching a package directory for a qualified include, honoring an
	// optional .stimelaignore file colocated with the search root.
	ignoreMatcher *ignore.GitIgnore
}

// NewLoader builds a Loader from the STIMELA_INCLUDE environment variable
// plus any additional standard locations.
func NewLoader(extra ...string) *Loader {
	l := &Loader{}
	if v := os.Getenv("STIMELA_INCLUDE"); v != "" {
		l.IncludePaths = append(l.IncludePaths, strings.Split(v, ":")...)
	}
	l.IncludePaths = append(l.IncludePaths, extra...)
	if home, err := os.UserHomeDir(); err == nil {
		l.IncludePaths = append(l.IncludePaths, filepath.Join(home, ".stimela"))
	}
	return l
}

// ref is a parsed document reference.
type ref struct {
	name          string
	pkg           string // non-empty for "(pkg)name"
	relativeOnly  bool   // true for "(.)name": search only the including doc's dir
	optional      bool   // true if a trailing "[optional]" marker was present
}

func parseRef(raw string) ref {
	r := ref{name: raw}
	if strings.HasSuffix(r.name, "[optional]") {
		r.optional = true
		r.name = strings.TrimSpace(strings.TrimSuffix(r.name, "[optional]"))
	}
	if strings.HasPrefix(r.name, "(.)") {
		r.relativeOnly = true
		r.name = strings.TrimPrefix(r.name, "(.)")
		return r
	}
	if strings.HasPrefix(r.name, "(") {
		if end := strings.IndexByte(r.name, ')'); end > 0 {
			r.pkg = r.name[1:end]
			r.name = r.name[end+1:]
		}
	}
	return r
}

// resolvePath finds the file on disk for a ref, given the directory of the
// document doing the including.
func (l *Loader) resolvePath(r ref, includingDir string) (string, []string, error) {
	var searched []string

	tryDir := func(dir string) (string, bool) {
		candidate := filepath.Join(dir, r.name)
		for _, ext := range []string{"", ".yml", ".yaml"} {
			p := candidate + ext
			searched = append(searched, p)
			if l.allowed(dir, p) {
				if _, err := os.Stat(p); err == nil {
					return p, true
				}
			}
		}
		return "", false
	}

	if r.relativeOnly {
		if p, ok := tryDir(includingDir); ok {
			return p, searched, nil
		}
		return "", searched, &IncludeNotFound{Ref: r.name, Searched: searched}
	}

	// Search order: cwd, STIMELA_INCLUDE paths (optionally package-scoped
	// into a "pkg" subdirectory), standard user locations, then the
	// including document's own directory.
	dirs := append([]string{"."}, l.IncludePaths...)
	dirs = append(dirs, includingDir)
	for _, dir := range dirs {
		searchDir := dir
		if r.pkg != "" {
			searchDir = filepath.Join(dir, r.pkg)
		}
		if p, ok := tryDir(searchDir); ok {
			return p, searched, nil
		}
	}
	if r.optional {
		return "", searched, nil
	}
	return "", searched, &IncludeNotFound{Ref: r.name, Searched: searched}
}

func (l *Loader) allowed(dir, path string) bool {
	if l.ignoreMatcher == nil {
		ignPath := filepath.Join(dir, ".stimelaignore")
		if data, err := os.ReadFile(ignPath); err == nil {
			if m := ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...); m != nil {
				l.ignoreMatcher = m
			}
		}
	}
	if l.ignoreMatcher == nil {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return true
	}
	return !l.ignoreMatcher.MatchesPath(rel)
}

// Load reads path, parses it, and resolves includes/use/scrub to a fixed
// point, returning a tree containing none of the reserved keys.
func (l *Loader) Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Ref: path, Err: err}
	}
	n, err := ParseYAML(data)
	if err != nil {
		return nil, &LoadError{Ref: path, Err: err}
	}
	dir := filepath.Dir(path)
	if err := l.resolveIncludes(n, dir, nil); err != nil {
		return nil, err
	}
	if err := resolveUse(n, n, nil); err != nil {
		return nil, err
	}
	if err := resolveScrub(n); err != nil {
		return nil, err
	}
	return n, nil
}

// LoadString parses raw YAML text and resolves includes, use and scrub.
// Includes are searched as in Load, with the current directory standing in
// for the including document's directory, so "(.)" references resolve
// against it.
func (l *Loader) LoadString(yamlText string) (*Node, error) {
	n, err := ParseYAML([]byte(yamlText))
	if err != nil {
		return nil, &LoadError{Ref: "<string>", Err: err}
	}
	if err := l.resolveIncludes(n, ".", nil); err != nil {
		return nil, err
	}
	if err := resolveUse(n, n, nil); err != nil {
		return nil, err
	}
	if err := resolveScrub(n); err != nil {
		return nil, err
	}
	return n, nil
}

// resolveIncludes processes _include (pre), then the node's own body
// (recursing into nested maps/lists so a deeply nested _include is found),
// then _include_post, at every map in the tree.
func (l *Loader) resolveIncludes(n *Node, dir string, stack []string) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindMap:
		if pre := n.Get(keyInclude); pre != nil {
			if err := l.includeAll(n, pre, dir, stack, false); err != nil {
				return err
			}
			n.Delete(keyInclude)
		}
		for _, k := range n.Keys {
			if k == keyIncludePost {
				continue
			}
			if err := l.resolveIncludes(n.Items[k], dir, stack); err != nil {
				return err
			}
		}
		if post := n.Get(keyIncludePost); post != nil {
			if err := l.includeAll(n, post, dir, stack, true); err != nil {
				return err
			}
			n.Delete(keyIncludePost)
		}
	case KindList:
		for _, item := range n.List {
			if err := l.resolveIncludes(item, dir, stack); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loader) includeAll(into *Node, refsNode *Node, dir string, stack []string, post bool) error {
	var refs []string
	switch refsNode.Kind {
	case KindString:
		refs = []string{refsNode.String}
	case KindList:
		for _, item := range refsNode.List {
			refs = append(refs, item.AsString())
		}
	}
	for _, raw := range refs {
		r := parseRef(raw)
		path, searched, err := l.resolvePath(r, dir)
		if err != nil {
			return err
		}
		if path == "" {
			continue // optional and not found
		}
		for _, s := range stack {
			if s == path {
				return &CycleError{Chain: append(append([]string(nil), stack...), path)}
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return &LoadError{Ref: path, Err: err}
		}
		included, err := ParseYAML(data)
		if err != nil {
			return &LoadError{Ref: path, Err: err}
		}
		if err := l.resolveIncludes(included, filepath.Dir(path), append(stack, path)); err != nil {
			return err
		}
		_ = searched
		if post {
			if _, err := Merge(into, included); err != nil {
				return err
			}
		} else {
			merged, err := Merge(included, into)
			if err != nil {
				return err
			}
			*into = *merged
		}
	}
	return nil
}

// resolveUse processes _use entries by copying and merging the named
// subtree (resolved against root) into the current map, using a
// visited-set to detect cyclic _use chains (§9 design notes).
func resolveUse(root, n *Node, visiting []string) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindMap:
		if useNode := n.Get(keyUse); useNode != nil {
			targets := stringsOf(useNode)
			n.Delete(keyUse)
			for _, t := range targets {
				for _, v := range visiting {
					if v == t {
						return &CycleError{Chain: append(append([]string(nil), visiting...), t)}
					}
				}
				target := root.Path(t)
				if target == nil {
					return &UseNotFound{Ref: t}
				}
				target = target.Clone()
				if err := resolveUse(root, target, append(visiting, t)); err != nil {
					return err
				}
				merged, err := Merge(target, n)
				if err != nil {
					return err
				}
				*n = *merged
			}
		}
		for _, k := range n.Keys {
			if err := resolveUse(root, n.Items[k], visiting); err != nil {
				return err
			}
		}
	case KindList:
		for _, item := range n.List {
			if err := resolveUse(root, item, visiting); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveScrub removes listed dotted paths from the tree. Idempotent:
// scrubbing an already-absent path is only an error the first time (this
// call); a second call with the same (now-scrubbed) tree simply finds no
// _scrub key and is a no-op, satisfying the idempotence property.
func resolveScrub(n *Node) error {
	if n == nil || n.Kind != KindMap {
		return nil
	}
	if scrubNode := n.Get(keyScrub); scrubNode != nil {
		paths := stringsOf(scrubNode)
		n.Delete(keyScrub)
		for _, p := range paths {
			segs := splitDotted(p)
			if len(segs) == 0 {
				continue
			}
			parent := n
			for _, seg := range segs[:len(segs)-1] {
				parent = parent.Get(seg)
				if parent == nil {
					return &ScrubPathMissing{Path: p}
				}
			}
			last := segs[len(segs)-1]
			if parent.Get(last) == nil {
				return &ScrubPathMissing{Path: p}
			}
			parent.Delete(last)
		}
	}
	for _, k := range n.Keys {
		if err := resolveScrub(n.Items[k]); err != nil {
			return err
		}
	}
	return nil
}

func stringsOf(n *Node) []string {
	switch n.Kind {
	case KindString:
		return []string{n.String}
	case KindList:
		out := make([]string, 0, len(n.List))
		for _, item := range n.List {
			out = append(out, item.AsString())
		}
		return out
	default:
		return nil
	}
}
