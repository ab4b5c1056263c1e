// Package card renders repository cards.
//
// A card shows a repository's name, its wrapped description, its primary
// language with the linguist color for that language, and abbreviated star
// and fork counts. Cards are SVG documents built from an embedded template;
// the scale parameter changes the document's width and height while the
// view box stays fixed.
//
// Meaning captures every input that changes the rendered bytes and
// implements cache.Meaning, so rendered cards can be stored in the content
// cache.
package card
