package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/samber/oops"
)

const jsonIndent = "    "

// MarshalSorted renders v as indented JSON with every object's keys sorted,
// regardless of struct field order. Numbers are carried through verbatim, so
// decoding and re-encoding the output yields the same bytes.
func MarshalSorted(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, oops.Wrapf(err, "json marshal error")
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var generic any
	if err = dec.Decode(&generic); err != nil {
		return nil, oops.Wrapf(err, "json decode error")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", jsonIndent)
	if err = enc.Encode(generic); err != nil {
		return nil, oops.Wrapf(err, "json encode error")
	}
	return buf.Bytes(), nil
}

// WriteJSONFile writes v to fileName through MarshalSorted.
func WriteJSONFile(fileName string, v any) error {
	eb := oops.With("file_name", fileName)

	b, err := MarshalSorted(v)
	if err != nil {
		return eb.Wrapf(err, "json render error")
	}
	if err = os.WriteFile(fileName, b, 0o644); err != nil {
		return eb.Wrapf(err, "file write error")
	}
	return nil
}

// SafeFileName maps a report id such as "sha256:0f3a" or a registry path onto
// a single file name component.
func SafeFileName(id string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, id)
	if strings.Trim(name, ".") == "" {
		return "_" + name
	}
	return name
}
