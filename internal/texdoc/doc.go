// Package texdoc holds the text-level engine behind texclean: comment
// stripping, usage resolution by substring search, and path flattening with
// in-document reference rewriting. Everything here is pure string work; the
// ops package does the file I/O.
package texdoc
