package reqflow

import (
	"mime/multipart"
)

type formPart struct {
	name     string
	value    string
	filename string
	content  []byte
}

// FormData is an ordered multipart payload for Upload.
type FormData struct {
	parts []formPart
}

// NewFormData returns an empty multipart payload.
func NewFormData() *FormData {
	return &FormData{}
}

// Append adds a plain form field.
func (f *FormData) Append(name, value string) *FormData {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// AppendFile adds a file part.
func (f *FormData) AppendFile(name, filename string, content []byte) *FormData {
	f.parts = append(f.parts, formPart{name: name, filename: filename, content: content})
	return f
}

// Keys returns the part names in insertion order.
func (f *FormData) Keys() []string {
	keys := make([]string, 0, len(f.parts))
	for _, p := range f.parts {
		keys = append(keys, p.name)
	}
	return keys
}

func (f *FormData) writeTo(w *multipart.Writer) error {
	for _, p := range f.parts {
		if p.filename == "" {
			if err := w.WriteField(p.name, p.value); err != nil {
				return err
			}
			continue
		}
		part, err := w.CreateFormFile(p.name, p.filename)
		if err != nil {
			return err
		}
		if _, err := part.Write(p.content); err != nil {
			return err
		}
	}
	return w.Close()
}
