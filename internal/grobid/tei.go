package grobid

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

// teiNamespace is the namespace of every element GROBID emits.
const teiNamespace = "http://www.tei-c.org/ns/1.0"

// element is a minimal DOM node. Mixed content is kept in document order so
// that text can be gathered the way a reader would see it.
type element struct {
	name    string
	content []any // string or *element
}

func (e *element) children(name string) []*element {
	var out []*element
	for _, c := range e.content {
		if child, ok := c.(*element); ok && child.name == name {
			out = append(out, child)
		}
	}
	return out
}

func (e *element) child(name string) *element {
	for _, c := range e.content {
		if child, ok := c.(*element); ok && child.name == name {
			return child
		}
	}
	return nil
}

// find returns the first descendant with the given name, depth first.
func (e *element) find(name string) *element {
	for _, c := range e.content {
		child, ok := c.(*element)
		if !ok {
			continue
		}
		if child.name == name {
			return child
		}
		if found := child.find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant with the given name in document order.
func (e *element) findAll(name string) []*element {
	var out []*element
	for _, c := range e.content {
		child, ok := c.(*element)
		if !ok {
			continue
		}
		if child.name == name {
			out = append(out, child)
		}
		out = append(out, child.findAll(name)...)
	}
	return out
}

// ownText returns the text before the first child element.
func (e *element) ownText() string {
	var sb strings.Builder
	for _, c := range e.content {
		s, ok := c.(string)
		if !ok {
			break
		}
		sb.WriteString(s)
	}
	return sb.String()
}

// text returns all descendant text in document order.
func (e *element) text() string {
	var sb strings.Builder
	e.writeText(&sb)
	return sb.String()
}

func (e *element) writeText(sb *strings.Builder) {
	for _, c := range e.content {
		switch v := c.(type) {
		case string:
			sb.WriteString(v)
		case *element:
			v.writeText(sb)
		}
	}
}

// parseTree decodes an XML document into an element tree. Elements outside
// the TEI namespace keep their text but are named "{space}local" so that
// lookups by TEI name never match them.
func parseTree(r io.Reader) (*element, error) {
	dec := xml.NewDecoder(r)
	var root *element
	var stack []*element

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if t.Name.Space != teiNamespace {
				name = "{" + t.Name.Space + "}" + name
			}
			el := &element{name: name}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.content = append(parent.content, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.content = append(top.content, string(t))
			}
		}
	}

	if root == nil || root.name != "TEI" {
		return nil, errors.New("no TEI root element")
	}
	return root, nil
}

// ParseTEI extracts the title, abstract and body sections from a GROBID TEI
// document and classifies sections into methods, results and conclusion by
// their heading. When several sections match a category the last one wins.
func ParseTEI(r io.Reader) (domain.ExtractedContent, error) {
	root, err := parseTree(r)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("XML parsing error: %w", err)
	}

	content := domain.ExtractedContent{
		Sections: []domain.ContentSection{},
		Success:  true,
	}

	if stmt := root.find("titleStmt"); stmt != nil {
		if title := stmt.child("title"); title != nil {
			content.Title = strings.TrimSpace(title.ownText())
		}
	}

	if abstract := root.find("abstract"); abstract != nil {
		content.Abstract = strings.TrimSpace(abstract.text())
	}

	if body := root.find("body"); body != nil {
		for _, div := range body.findAll("div") {
			section, ok := extractSection(div)
			if ok {
				content.Sections = append(content.Sections, section)
			}
		}
	}

	for _, s := range content.Sections {
		heading := strings.ToLower(s.Title)
		switch {
		case strings.Contains(heading, "method"), strings.Contains(heading, "approach"):
			content.Methods = s.Content
		case strings.Contains(heading, "result"), strings.Contains(heading, "experiment"):
			content.Results = s.Content
		case strings.Contains(heading, "conclusion"), strings.Contains(heading, "discussion"):
			content.Conclusion = s.Content
		}
	}

	return content, nil
}

// extractSection reads a div's heading and joins its non-empty paragraphs.
// A div without paragraph text is not a section.
func extractSection(div *element) (domain.ContentSection, bool) {
	var section domain.ContentSection
	if head := div.child("head"); head != nil {
		section.Title = strings.TrimSpace(head.ownText())
	}

	var paragraphs []string
	for _, p := range div.children("p") {
		if text := strings.TrimSpace(p.text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) == 0 {
		return domain.ContentSection{}, false
	}

	section.Content = strings.Join(paragraphs, " ")
	return section, true
}
