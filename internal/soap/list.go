package soap

import "encoding/xml"

// MarshalList writes items as a SOAP array: start wrapping one element named
// item per entry. An empty list writes nothing, so the wrapper is left out
// of the envelope entirely. Struct tags of the form "Parent>item,omitempty"
// cannot do this; encoding/xml opens the parent before checking the leaf.
func MarshalList[T any](e *xml.Encoder, start xml.StartElement, item string, items []T) error {
	if len(items) == 0 {
		return nil
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	child := xml.StartElement{Name: xml.Name{Local: item}}
	for i := range items {
		if err := e.EncodeElement(items[i], child); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalList reads the children of start named item. Other children are
// skipped. A nil-marked or empty wrapper yields nil.
func UnmarshalList[T any](d *xml.Decoder, start xml.StartElement, item string) ([]T, error) {
	var out []T
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != item {
				if err := d.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			var v T
			if err := d.DecodeElement(&v, &t); err != nil {
				return nil, err
			}
			out = append(out, v)
		case xml.EndElement:
			return out, nil
		}
	}
}
