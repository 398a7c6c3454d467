// Package settings merges an application's default settings with a
// user-supplied override file into one flat Namespace.
//
// Exactly two layers are applied, in a fixed order: defaults first, then
// overrides. Overrides win on conflict. An override may introduce a name
// the defaults do not define only when extras are allowed.
//
// Override files are YAML (JSON works too). Plain values are literals; the
// tags below let an override build on what is already bound:
//
//	DEBUG: true
//	ALLOWED: !expr ALLOWED + [3]
//	INSTALLED_APPS: !extend [reports]
//	REPLICA: !ref DATABASE
//
// Names starting with ReservedPrefix are never settings. Files may use them
// as local helpers, and the merger binds FileBinding to the file's path.
package settings
