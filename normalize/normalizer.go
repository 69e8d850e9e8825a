package normalize

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

// Options controls the normalization passes.
type Options struct {
	// KeepMedia retains images and other media elements (with src/alt
	// attributes only) instead of removing them.
	KeepMedia bool

	// MaxNestingDepth is the maximum element depth below the document
	// root. Elements nested deeper are replaced with their flattened
	// text content.
	MaxNestingDepth int

	// AnnotateLinks keeps the href attribute on hyperlinks and adds a
	// target="_blank" navigation annotation. When false, hyperlinks
	// keep only their href.
	AnnotateLinks bool
}

// DefaultOptions returns the options used by the ingestion pipeline.
func DefaultOptions() Options {
	return Options{
		KeepMedia:       false,
		MaxNestingDepth: 12,
		AnnotateLinks:   true,
	}
}

// Normalizer strips page markup down to a minimal, cleaned representation
// suitable for chunking and embedding. It is deterministic, makes no
// external calls, and is idempotent: normalizing already-normalized markup
// returns the same string.
type Normalizer struct {
	opts   Options
	logger *slog.Logger
}

// New creates a normalizer with the given options.
func New(opts Options) *Normalizer {
	if opts.MaxNestingDepth <= 0 {
		opts.MaxNestingDepth = DefaultOptions().MaxNestingDepth
	}
	return &Normalizer{
		opts:   opts,
		logger: slog.Default().With("component", "normalizer"),
	}
}

// passCount is the fixed number of structural cleanup iterations. Three
// passes are enough to reach a fixed point for the element-removal and
// unwrapping rules on real pages.
const passCount = 3

// Tag sets used by the cleanup passes.
var (
	// dropTags are removed with their whole subtree: no retrieval value.
	dropTags = tagSet("script", "style", "noscript", "template", "form",
		"input", "select", "option", "textarea", "button", "label",
		"meta", "link", "base", "title", "svg", "canvas", "map", "nav", "aside")

	// mediaTags are removed unless KeepMedia is set.
	mediaTags = tagSet("img", "picture", "video", "audio", "source", "track",
		"iframe", "embed", "object")

	// voidTags never carry children.
	voidTags = tagSet("area", "base", "br", "col", "embed", "hr", "img",
		"input", "link", "meta", "param", "source", "track", "wbr")

	// meaningfulVoid elements keep an otherwise-empty ancestor alive.
	meaningfulVoid = tagSet("hr", "img", "video", "audio", "iframe")

	// wrapperTags are unwrapped when they carry no attributes.
	wrapperTags = tagSet("div", "span", "section", "article", "main",
		"font", "center")

	// blockTags delimit lines of content; a trailing <br> just before a
	// block close is redundant.
	blockTags = tagSet("p", "div", "li", "td", "th", "blockquote", "pre",
		"section", "article", "main", "table", "ul", "ol", "h1", "h2",
		"h3", "h4", "h5", "h6")

	// blockContainers may legally hold block-level children; wrappers are
	// only unwrapped where their children remain valid.
	blockContainers = tagSet("body", "div", "section", "article", "main",
		"li", "td", "th", "blockquote", "figure")

	// preformattedTags keep their whitespace verbatim.
	preformattedTags = tagSet("pre", "code")
)

func tagSet(tags ...string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		set[tag] = true
	}
	return set
}

// Normalize runs the multi-pass cleanup over the markup and returns the
// cleaned markup as a single string.
func (n *Normalizer) Normalize(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("normalize: parsing markup: %w", err)
	}

	body := findElement(doc, "body")
	if body == nil {
		// html.Parse always synthesizes a body; nil means empty input.
		return "", nil
	}

	n.removeNoise(body)
	stripAttributes(body, n.opts)
	canonicalizeEmphasis(body)

	for i := 0; i < passCount; i++ {
		removeEmptyElements(body, n.opts)
		collapseBreakOnly(body)
		unwrapWrappers(body)
		flattenDeep(body, n.opts.MaxNestingDepth)
	}

	removeTrailingBreaks(body)
	minifyWhitespace(body, false)

	var sb strings.Builder
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&sb, child); err != nil {
			return "", fmt.Errorf("normalize: rendering markup: %w", err)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// removeNoise drops comment nodes, no-value subtrees, media (unless kept),
// and hidden elements.
func (n *Normalizer) removeNoise(node *html.Node) {
	var next *html.Node
	for child := node.FirstChild; child != nil; child = next {
		next = child.NextSibling

		switch child.Type {
		case html.CommentNode, html.DoctypeNode:
			node.RemoveChild(child)
			continue
		case html.ElementNode:
			if isMetaRefresh(child) {
				n.logger.Warn("dropping refresh directive from page markup")
				node.RemoveChild(child)
				continue
			}
			if dropTags[child.Data] || (!n.opts.KeepMedia && mediaTags[child.Data]) || isHidden(child) {
				node.RemoveChild(child)
				continue
			}
		}

		n.removeNoise(child)
	}
}

// isMetaRefresh reports whether the node is a meta refresh/redirect
// directive.
func isMetaRefresh(node *html.Node) bool {
	if node.Data != "meta" {
		return false
	}
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, "http-equiv") && strings.EqualFold(strings.TrimSpace(attr.Val), "refresh") {
			return true
		}
	}
	return false
}

// isHidden reports whether the element is hidden via an explicit flag or
// an inline style.
func isHidden(node *html.Node) bool {
	for _, attr := range node.Attr {
		switch strings.ToLower(attr.Key) {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(strings.TrimSpace(attr.Val), "true") {
				return true
			}
		case "style":
			style := strings.ToLower(strings.ReplaceAll(attr.Val, " ", ""))
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

// stripAttributes removes all attributes except the retained ones on
// hyperlinks and media elements.
func stripAttributes(node *html.Node, opts Options) {
	if node.Type == html.ElementNode {
		switch {
		case node.Data == "a":
			href, ok := findAttr(node, "href")
			node.Attr = nil
			if ok {
				node.Attr = []html.Attribute{{Key: "href", Val: href}}
				if opts.AnnotateLinks {
					node.Attr = append(node.Attr, html.Attribute{Key: "target", Val: "_blank"})
				}
			}
		case opts.KeepMedia && mediaTags[node.Data]:
			src, hasSrc := findAttr(node, "src")
			alt, hasAlt := findAttr(node, "alt")
			node.Attr = nil
			if hasSrc {
				node.Attr = append(node.Attr, html.Attribute{Key: "src", Val: src})
			}
			if hasAlt {
				node.Attr = append(node.Attr, html.Attribute{Key: "alt", Val: alt})
			}
		default:
			node.Attr = nil
		}
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		stripAttributes(child, opts)
	}
}

func findAttr(node *html.Node, key string) (string, bool) {
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val, true
		}
	}
	return "", false
}

// canonicalizeEmphasis rewrites emphasis-equivalent tags to the two
// canonical forms: b for bold, i for italic.
func canonicalizeEmphasis(node *html.Node) {
	if node.Type == html.ElementNode {
		switch node.Data {
		case "strong":
			node.Data = "b"
		case "em", "dfn", "cite", "var":
			node.Data = "i"
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		canonicalizeEmphasis(child)
	}
}

// removeEmptyElements removes non-void elements with no text content and
// no meaningful void descendants.
func removeEmptyElements(node *html.Node, opts Options) {
	var next *html.Node
	for child := node.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type != html.ElementNode {
			continue
		}
		removeEmptyElements(child, opts)
		if voidTags[child.Data] {
			continue
		}
		if strings.TrimSpace(textContent(child)) == "" && !hasMeaningfulVoid(child) {
			node.RemoveChild(child)
		}
	}
}

// hasMeaningfulVoid reports whether the subtree contains a void element
// that carries meaning on its own (a rule, an image, embedded media).
func hasMeaningfulVoid(node *html.Node) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && (meaningfulVoid[child.Data] || hasMeaningfulVoid(child)) {
			return true
		}
	}
	return false
}

// collapseBreakOnly removes elements whose only element child is a line
// break and which carry no text of their own.
func collapseBreakOnly(node *html.Node) {
	var next *html.Node
	for child := node.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type != html.ElementNode {
			continue
		}
		collapseBreakOnly(child)
		if voidTags[child.Data] {
			continue
		}
		if onlyChildIsBreak(child) {
			node.RemoveChild(child)
		}
	}
}

func onlyChildIsBreak(node *html.Node) bool {
	sawBreak := false
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			if strings.TrimSpace(child.Data) != "" {
				return false
			}
		case html.ElementNode:
			if child.Data != "br" || sawBreak {
				return false
			}
			sawBreak = true
		default:
			return false
		}
	}
	return sawBreak
}

// unwrapWrappers replaces attribute-less structural wrappers with their
// children, when doing so keeps the nesting valid.
func unwrapWrappers(node *html.Node) {
	var next *html.Node
	for child := node.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type != html.ElementNode {
			continue
		}
		unwrapWrappers(child)
		if wrapperTags[child.Data] && len(child.Attr) == 0 && canUnwrapInto(child, node) {
			unwrap(node, child)
		}
	}
}

// canUnwrapInto reports whether hoisting the wrapper's children into the
// parent keeps the markup valid. Inline wrappers (span, font, center) can
// be unwrapped anywhere; block wrappers only into block containers.
func canUnwrapInto(wrapper, parent *html.Node) bool {
	switch wrapper.Data {
	case "span", "font", "center":
		return true
	default:
		return parent.Type == html.ElementNode && blockContainers[parent.Data]
	}
}

// unwrap replaces child with its children, preserving order.
func unwrap(parent, child *html.Node) {
	for grandchild := child.FirstChild; grandchild != nil; {
		next := grandchild.NextSibling
		child.RemoveChild(grandchild)
		parent.InsertBefore(grandchild, child)
		grandchild = next
	}
	parent.RemoveChild(child)
}

// flattenDeep replaces elements nested deeper than maxDepth with their
// flattened text, or removes them when the text is empty.
func flattenDeep(root *html.Node, maxDepth int) {
	flattenAtDepth(root, 0, maxDepth)
}

func flattenAtDepth(node *html.Node, depth int, maxDepth int) {
	var next *html.Node
	for child := node.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type != html.ElementNode {
			continue
		}
		if depth+1 > maxDepth {
			text := collapseSpaces(textContent(child))
			if text == "" {
				node.RemoveChild(child)
			} else {
				replacement := &html.Node{Type: html.TextNode, Data: text}
				node.InsertBefore(replacement, child)
				node.RemoveChild(child)
			}
			continue
		}
		flattenAtDepth(child, depth+1, maxDepth)
	}
}

// removeTrailingBreaks drops line breaks that sit immediately before a
// block-level close.
func removeTrailingBreaks(node *html.Node) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			removeTrailingBreaks(child)
		}
	}

	if node.Type != html.ElementNode || (!blockTags[node.Data] && node.Data != "body") {
		return
	}
	for {
		last := node.LastChild
		for last != nil && last.Type == html.TextNode && strings.TrimSpace(last.Data) == "" {
			last = last.PrevSibling
		}
		if last == nil || last.Type != html.ElementNode || last.Data != "br" {
			return
		}
		node.RemoveChild(last)
	}
}

// minifyWhitespace collapses whitespace runs in text nodes and removes
// whitespace-only text nodes, except inside preformatted elements.
func minifyWhitespace(node *html.Node, inPre bool) {
	if node.Type == html.ElementNode && preformattedTags[node.Data] {
		inPre = true
	}

	var next *html.Node
	for child := node.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type == html.TextNode && !inPre {
			child.Data = collapseRuns(child.Data)
			// Whitespace between block-level siblings carries no content.
			if strings.TrimSpace(child.Data) == "" && betweenBlocks(child) {
				node.RemoveChild(child)
				continue
			}
		}
		minifyWhitespace(child, inPre)
	}
}

// collapseRuns reduces every whitespace run to a single space without
// trimming, so word breaks around inline elements survive.
func collapseRuns(s string) string {
	var sb strings.Builder
	inRun := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !inRun {
				sb.WriteByte(' ')
				inRun = true
			}
		default:
			sb.WriteRune(r)
			inRun = false
		}
	}
	return sb.String()
}

// betweenBlocks reports whether the text node's neighbors on both sides
// are block-level elements or tree boundaries.
func betweenBlocks(node *html.Node) bool {
	isBoundary := func(n *html.Node) bool {
		if n == nil {
			return true
		}
		return n.Type == html.ElementNode && (blockTags[n.Data] || n.Data == "br")
	}
	return isBoundary(node.PrevSibling) && isBoundary(node.NextSibling)
}

// textContent returns the concatenated text of the subtree.
func textContent(node *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return sb.String()
}

// collapseSpaces reduces any whitespace run to a single space and trims
// the result.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// findElement returns the first element with the given tag in the tree.
func findElement(node *html.Node, tag string) *html.Node {
	if node.Type == html.ElementNode && node.Data == tag {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}
