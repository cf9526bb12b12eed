/*
Package cascade resolves logical view identifiers such as "page-about" into
concrete template files.

An identifier is split on hyphens and turned into an ordered list of
candidate file names, most specific first ("page-about.html", "page.html").
The candidates are searched across a prioritized list of directory roots
held by a SearchPath, and the matching absolute path is reduced back to a
root-relative identifier that a rendering engine configured with the same
roots can load.

Two search orders exist. PathMajor walks roots in priority order and tests
every candidate inside each root, so a generic template in a high-priority
root beats a specific one in a lower root. CandidateMajor walks candidates
first, so specificity always beats root priority. Views use PathMajor and
layouts use CandidateMajor; both are kept as distinct call-site choices.

LayoutResolver is the second, independent cascade: given the template file
a host is about to render, it picks a wrapping "_layout-*" file from the
host's theme roots and reports the original template as a side channel so
the layout can render it.
*/
package cascade
