package transport

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
)

// Form is an ordered multipart/form-data body.
type Form struct {
	fields []formField
}

type formField struct {
	name     string
	value    string
	data     []byte
	fileName string
}

// NewForm creates an empty form.
func NewForm() *Form {
	return &Form{}
}

// Add appends a text field.
func (f *Form) Add(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// AddFile appends a binary file field.
func (f *Form) AddFile(name, fileName string, data []byte) *Form {
	f.fields = append(f.fields, formField{name: name, data: data, fileName: fileName})
	return f
}

// Request encodes the form into a POST request to path.
func (f *Form) Request(path string) (Request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, field := range f.fields {
		if field.fileName == "" {
			if err := writer.WriteField(field.name, field.value); err != nil {
				return Request{}, fmt.Errorf("write field %s: %w", field.name, err)
			}
			continue
		}

		part, err := writer.CreateFormFile(field.name, field.fileName)
		if err != nil {
			return Request{}, fmt.Errorf("create file field %s: %w", field.name, err)
		}
		if _, err := part.Write(field.data); err != nil {
			return Request{}, fmt.Errorf("write file field %s: %w", field.name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return Request{}, fmt.Errorf("close multipart writer: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", writer.FormDataContentType())

	return Request{
		Method: http.MethodPost,
		Path:   path,
		Header: header,
		Body:   body.Bytes(),
	}, nil
}
