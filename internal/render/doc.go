// Package render turns Gmail messages into markdown documents.
//
// The upstream payload is converted once into a small tree of Part values,
// either a *Leaf carrying decoded bytes or a *Multipart with children.
// Rendering is a pure reduction over that tree:
//
//   - in multipart/alternative the text/plain branch wins over text/html
//   - in every other multipart the readable children are concatenated
//   - leaves with a filename are listed as attachments and never inlined
//
// HTML without a plain alternative is converted to text with html2text.
// Declared charsets are transcoded to UTF-8 and any invalid bytes left are
// replaced with U+FFFD.
//
// Rendering never fails. A part that cannot be decoded or converted is
// replaced by a visible placeholder and reported in Document.Problems.
package render
