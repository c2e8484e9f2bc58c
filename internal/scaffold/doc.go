// Package scaffold materializes a template tree into a working directory.
//
// Templates are local directories or git repositories. File contents and path
// segments are rendered with text/template: files ending in .jinja or .tmpl are
// rendered and lose the suffix, and a path segment containing {{ is rendered
// as a name. An optional copier.yml may point at a _subdirectory holding the
// actual template.
package scaffold
