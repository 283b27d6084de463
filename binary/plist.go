package binary

import (
	"encoding/xml"
	"io"
)

// parsePlistStringDict scans an XML property list and pairs each <key>
// with the next <string> element after it, at any nesting depth (so the
// first string of an array value counts too). A key that appears more
// than once keeps its last value. Non-string values are not collected,
// which is all the platform-detection reads ever need.
func parsePlistStringDict(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	dec := xml.NewDecoder(r)

	var pendingKey string
	var haveKey bool

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "key":
				text, err := nextCharData(dec)
				if err != nil {
					return nil, err
				}
				pendingKey, haveKey = text, true
			case "string":
				if haveKey {
					text, err := nextCharData(dec)
					if err != nil {
						return nil, err
					}
					out[pendingKey] = text
					haveKey = false
				}
			}
		}
	}
	return out, nil
}

func nextCharData(dec *xml.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	if cd, ok := tok.(xml.CharData); ok {
		return string(cd), nil
	}
	return "", nil
}
