/*
Package templating is the rendering engine behind the view resolver. It loads
html/template files from an ordered list of root directories, keyed by their
root-relative path, the same key the cascade package produces when it
reduces a resolved file against its search roots.

The engine optionally loads a runtime directory of shared partials, caches
parsed templates in memory (invalidated by modification time and on demand),
and exposes a small function library for templates: arithmetic and logic
helpers, wordCount, markdown (goldmark) and highlight (chroma).

An Engine is immutable with respect to its roots. When the search path
changes, the owner builds a new Engine; this keeps the loader roots and the
parsed-template cache consistent with each other.
*/
package templating
