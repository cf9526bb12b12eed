package cascade

import "path/filepath"

// Order selects how candidates and roots are nested during a search.
type Order int

const (
	// PathMajor tests every candidate in a root before moving to the next
	// root. Root priority beats candidate specificity.
	PathMajor Order = iota

	// CandidateMajor tests a candidate in every root before moving to the
	// next candidate. Candidate specificity beats root priority.
	CandidateMajor
)

func (o Order) String() string {
	switch o {
	case PathMajor:
		return "path-major"
	case CandidateMajor:
		return "candidate-major"
	default:
		return "unknown"
	}
}

// Resolved is the outcome of a successful search.
type Resolved struct {
	// Path is the absolute path of the matching file.
	Path string
	// Root is the search root the file was found under.
	Root string
}

// Resolver searches candidate names across roots using a Filesystem.
type Resolver struct {
	fs Filesystem
}

// NewResolver returns a Resolver backed by fs. A nil fs means OSFilesystem.
func NewResolver(fs Filesystem) *Resolver {
	if fs == nil {
		fs = OSFilesystem{}
	}
	return &Resolver{fs: fs}
}

// Resolve returns the first existing root/candidate combination in the
// given order, or a *NotFoundError when nothing exists.
func (r *Resolver) Resolve(order Order, candidates, roots []string) (Resolved, error) {
	switch order {
	case CandidateMajor:
		for _, name := range candidates {
			for _, root := range roots {
				if res, ok := r.probe(root, name); ok {
					return res, nil
				}
			}
		}
	default:
		for _, root := range roots {
			for _, name := range candidates {
				if res, ok := r.probe(root, name); ok {
					return res, nil
				}
			}
		}
	}
	return Resolved{}, &NotFoundError{Candidates: candidates, Roots: roots}
}

func (r *Resolver) probe(root, name string) (Resolved, bool) {
	if root == "" || name == "" {
		return Resolved{}, false
	}
	p := filepath.Join(root, filepath.FromSlash(name))
	if !r.fs.Exists(p) {
		return Resolved{}, false
	}
	return Resolved{Path: p, Root: filepath.Clean(root)}, true
}
