package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"reflect"
	"sort"
	"strconv"
)

// FilePart is one file in a multipart body.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Content     io.Reader
}

// Multipart is a form-data body. Scalar fields are sent as text, slices, maps
// and structs as JSON strings, and nil values are skipped.
type Multipart struct {
	Files  []FilePart
	Fields map[string]any
}

func (m *Multipart) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, f := range m.Files {
		if f.Content == nil {
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.FileName))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("copy file part %s: %w", f.Field, err)
		}
	}

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		text, ok, err := fieldText(m.Fields[k])
		if err != nil {
			return nil, "", fmt.Errorf("encode field %s: %w", k, err)
		}
		if !ok {
			continue
		}
		if err := w.WriteField(k, text); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// fieldText renders a form value. ok is false for nil values.
func fieldText(v any) (string, bool, error) {
	if v == nil {
		return "", false, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true, nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true, nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true, nil
	default:
		raw, err := json.Marshal(rv.Interface())
		if err != nil {
			return "", false, err
		}
		return string(raw), true, nil
	}
}
