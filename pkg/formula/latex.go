package formula

import (
	"bytes"
	"fmt"
	"strings"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// typeset converts a simplified-LaTeX formula into a single display line.
// The formula is parsed by TreeBlood into MathML and the resulting tree
// is flattened into text the drawer can measure and paint. Formulas the
// parser cannot typeset return an error.
func typeset(latex string) (string, error) {
	mathNode, err := texToMathML(latex)
	if err != nil {
		return "", err
	}

	line := strings.TrimSpace(collapseSpaces(displayLine(mathNode)))
	if line == "" {
		return "", fmt.Errorf("formula is empty")
	}
	// A control sequence surviving into the display line means the
	// parser fell back to the raw TeX instead of typesetting it.
	if strings.Contains(line, `\`) {
		return "", fmt.Errorf("formula was not typeset: %q", line)
	}
	return line, nil
}

// texToMathML runs the formula through goldmark with the TreeBlood
// extension and returns the parsed <math> element.
func texToMathML(latex string) (*html.Node, error) {
	source := "$$" + strings.Trim(latex, "$ \t\r\n") + "$$"

	md := goldmark.New(
		goldmark.WithExtensions(
			treeblood.MathML(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return nil, fmt.Errorf("failed to convert formula: %w", err)
	}

	doc, err := html.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse typeset output: %w", err)
	}

	mathNode := findElement(doc, "math")
	if mathNode == nil {
		return nil, fmt.Errorf("malformed formula: no math content produced")
	}
	if errNode := findElement(mathNode, "merror"); errNode != nil {
		return nil, fmt.Errorf("malformed formula: %s", strings.TrimSpace(textContent(errNode)))
	}
	return mathNode, nil
}

var superscripts = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴',
	'5': '⁵', '6': '⁶', '7': '⁷', '8': '⁸', '9': '⁹',
	'+': '⁺', '-': '⁻', '=': '⁼', '(': '⁽', ')': '⁾',
	'n': 'ⁿ', 'i': 'ⁱ',
}

var subscripts = map[rune]rune{
	'0': '₀', '1': '₁', '2': '₂', '3': '₃', '4': '₄',
	'5': '₅', '6': '₆', '7': '₇', '8': '₈', '9': '₉',
	'+': '₊', '-': '₋', '=': '₌', '(': '₍', ')': '₎',
}

// accentCombining maps accent operators from <mover>/<munder> elements
// to the combining mark drawn over the base.
var accentCombining = map[rune]rune{
	'^': '̂', 'ˆ': '̂',
	'~': '̃', '˜': '̃',
	'¯': '̄', '‾': '̄', '−': '̄', '-': '̄',
	'˙': '̇', '.': '̇',
	'→': '⃗', '⃗': '⃗',
}

// binaryOperators are spaced out in the flattened line; MathML leaves
// operator spacing to the renderer.
const binaryOperators = "=+±∓×·÷<>≤≥≠≈≡→←⇒∈∉⊂∪∩∼"

// displayLine flattens a MathML node into the text drawn for it.
func displayLine(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return ""
	}

	switch n.Data {
	case "annotation", "annotation-xml":
		// Carries the original TeX source, not typeset content.
		return ""
	case "mfrac":
		parts := childLines(n)
		if len(parts) == 2 {
			return "(" + parts[0] + ")/(" + parts[1] + ")"
		}
	case "msqrt":
		return "√(" + joinChildren(n) + ")"
	case "mroot":
		parts := childLines(n)
		if len(parts) == 2 {
			return script(parts[1], true) + "√(" + parts[0] + ")"
		}
	case "msup":
		parts := childLines(n)
		if len(parts) == 2 {
			return parts[0] + script(parts[1], true)
		}
	case "msub":
		parts := childLines(n)
		if len(parts) == 2 {
			return parts[0] + script(parts[1], false)
		}
	case "msubsup", "munderover":
		parts := childLines(n)
		if len(parts) == 3 {
			return parts[0] + script(parts[1], false) + script(parts[2], true)
		}
	case "mover":
		parts := childLines(n)
		if len(parts) == 2 {
			return overline(parts[0], parts[1])
		}
	case "munder":
		parts := childLines(n)
		if len(parts) == 2 {
			return parts[0] + script(parts[1], false)
		}
	case "mo":
		op := strings.TrimSpace(textContent(n))
		if op != "" && strings.ContainsRune(binaryOperators, []rune(op)[0]) {
			return " " + op + " "
		}
		return op
	case "mi", "mn", "mtext", "ms":
		return textContent(n)
	case "mspace":
		return " "
	case "mtd":
		return joinChildren(n) + " "
	}
	return joinChildren(n)
}

// overline attaches an accent to its base, preferring a combining mark.
func overline(base, accent string) string {
	runes := []rune(strings.TrimSpace(accent))
	if len(runes) == 1 {
		if mark, ok := accentCombining[runes[0]]; ok {
			return base + string(mark)
		}
	}
	return base + script(accent, true)
}

// script renders a superscript or subscript, using the Unicode forms
// when every rune has one and a caret/underscore fallback otherwise.
func script(arg string, super bool) string {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return ""
	}
	table := subscripts
	marker := "_"
	if super {
		table = superscripts
		marker = "^"
	}
	var b strings.Builder
	for _, r := range arg {
		mapped, ok := table[r]
		if !ok {
			if len([]rune(arg)) == 1 {
				return marker + arg
			}
			return marker + "(" + arg + ")"
		}
		b.WriteRune(mapped)
	}
	return b.String()
}

// joinChildren concatenates the display lines of all child nodes.
func joinChildren(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(displayLine(c))
	}
	return b.String()
}

// childLines collects the display line of each child element, skipping
// inter-element whitespace.
func childLines(n *html.Node) []string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		parts = append(parts, displayLine(c))
	}
	return parts
}

// textContent returns the concatenated text under a node with invisible
// layout operators removed.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			for _, r := range n.Data {
				// U+2061..U+2064 are invisible function/times markers.
				if r >= 0x2061 && r <= 0x2064 {
					continue
				}
				b.WriteRune(r)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// findElement locates the first element with the given tag, depth first.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// collapseSpaces squeezes runs of whitespace into single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
