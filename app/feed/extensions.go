package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

var namespacePrefixes = map[string]string{
	"http://purl.org/rss/1.0/modules/content/": "content",
	"http://purl.org/dc/elements/1.1/":         "dc",
	"http://search.yahoo.com/mrss/":            "media",
	"http://www.w3.org/2005/Atom":              "atom",
}

type rawNode struct {
	XMLName  xml.Name
	Text     string    `xml:",chardata"`
	Children []rawNode `xml:",any"`
}

type rawEntry struct {
	Fields []rawNode `xml:",any"`
}

// rawFields maps qualified element names ("dc:creator", "category") of one
// item to their text values in document order.
type rawFields map[string][]string

func (f rawFields) first(name string) string {
	if name == "" {
		return ""
	}
	for _, v := range f[name] {
		if v != "" {
			return v
		}
	}
	return ""
}

func (f rawFields) joined(name string) string {
	if name == "" {
		return ""
	}
	var values []string
	for _, v := range f[name] {
		if v != "" {
			values = append(values, v)
		}
	}
	return strings.Join(values, ", ")
}

// parseRawItems walks the document a second time and collects every child
// element of each <item> or <entry>, including namespaced extensions that
// the standard parser folds away. Namespaces outside the well-known set are
// named by the prefix the document declares for them.
func parseRawItems(data []byte) ([]rawFields, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	prefixes := make(map[string]string)
	var items []rawFields
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return items, fmt.Errorf("failed to read raw feed: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range se.Attr {
			if attr.Name.Space == "xmlns" && attr.Value != "" {
				prefixes[attr.Value] = attr.Name.Local
			}
		}
		if se.Name.Local != "item" && se.Name.Local != "entry" {
			continue
		}

		var entry rawEntry
		if err := dec.DecodeElement(&entry, &se); err != nil {
			return items, fmt.Errorf("failed to decode raw item: %w", err)
		}

		fields := make(rawFields, len(entry.Fields))
		for _, node := range entry.Fields {
			name := qualifiedName(node.XMLName, prefixes)
			fields[name] = append(fields[name], node.value())
		}
		items = append(items, fields)
	}

	return items, nil
}

func qualifiedName(n xml.Name, declared map[string]string) string {
	if n.Space == "" {
		return n.Local
	}
	prefix, ok := namespacePrefixes[n.Space]
	if !ok {
		prefix, ok = declared[n.Space]
	}
	if !ok {
		// Undeclared prefixes are left in Space verbatim.
		prefix = n.Space
	}
	return prefix + ":" + n.Local
}

// value is the element text, or the first non-empty child text for
// container elements such as <author><name>.
func (n rawNode) value() string {
	if text := strings.TrimSpace(n.Text); text != "" {
		return text
	}
	for _, c := range n.Children {
		if text := c.value(); text != "" {
			return text
		}
	}
	return ""
}
