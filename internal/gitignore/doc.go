// Package gitignore implements gitignore pattern matching, as documented at
// https://git-scm.com/docs/gitignore, for filtering the indexer's file scan
// and the watcher's change-event stream.
//
// Supported syntax:
//   - literal and wildcard patterns (*.log, build/*.tmp)
//   - ** for arbitrary directory depth
//   - rooted patterns (/build)
//   - negation (!important.log)
//   - directory-only patterns (build/)
//   - nested .gitignore files, scoped to their own subtree
//
// Matcher is safe for concurrent use.
//
//	m := gitignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	m.AddPattern("/build/")
//	m.Match("error.log", false) // true
//
// Nested gitignore files are added with the subtree they apply to as base:
//
//	m.AddFromFile("/repo/.gitignore", "")
//	m.AddFromFile("/repo/src/.gitignore", "src")
package gitignore
