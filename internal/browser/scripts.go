package browser

import (
	"encoding/json"
	"fmt"

	"github.com/hyperifyio/depdf/internal/extract"
)

// strippedElements are removed from the live DOM before text is read.
const strippedElements = "script, style, noscript, form, button, input, select, textarea, iframe, embed, object"

// authorSelectors is the byline cascade, tried after meta and microdata.
const authorSelectors = ".author, .by-author, .byline"

// textScript strips non-content elements and returns the innerText of the
// first non-empty content container, or of the body. Snapshot mirror
// containers come last.
func textScript() string {
	selectors := append(append([]string{}, extract.ContentSelectors...), extract.MirrorSelectors...)
	list, _ := json.Marshal(selectors)
	return fmt.Sprintf(`(() => {
  document.querySelectorAll(%q).forEach((el) => el.remove());
  for (const sel of %s) {
    for (const el of document.querySelectorAll(sel)) {
      const text = (el.innerText || "").trim();
      if (text) return text;
    }
  }
  return document.body ? (document.body.innerText || "") : "";
})()`, strippedElements, list)
}

// authorScript returns the author or null.
func authorScript() string {
	return fmt.Sprintf(`(() => {
  const clean = (v) => (v || "").replace(/\s+/g, " ").trim();
  for (const sel of ['meta[name="author"]', 'meta[property="article:author"]']) {
    const el = document.querySelector(sel);
    if (el && clean(el.getAttribute("content"))) return clean(el.getAttribute("content"));
  }
  const micro = document.querySelector('[itemprop="author"]');
  if (micro) {
    const v = clean(micro.getAttribute("content")) || clean(micro.innerText);
    if (v) return v;
  }
  const byline = document.querySelector(%q);
  if (byline && clean(byline.innerText)) return clean(byline.innerText);
  return null;
})()`, authorSelectors)
}
