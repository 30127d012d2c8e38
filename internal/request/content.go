package request

import "strings"

// ContentType is the class of a served resource.
type ContentType int

const (
	// ContentFile is anything without a known extension. It is offered as a
	// download instead of being rendered.
	ContentFile ContentType = iota
	ContentHTML
	ContentXML
	ContentJSON
)

var contentTypes = map[string]ContentType{
	"html": ContentHTML,
	"xml":  ContentXML,
	"json": ContentJSON,
}

var mimeTypes = map[ContentType]string{
	ContentHTML: "text/html",
	ContentXML:  "text/xml",
	ContentJSON: "text/json",
}

func (c ContentType) String() string {
	if m, ok := mimeTypes[c]; ok {
		return m
	}
	return "file"
}

// Header returns the header line announcing the resource type.
func (c ContentType) Header() (name, value string) {
	if m, ok := mimeTypes[c]; ok {
		return "Content-type", m
	}
	return "Content-Disposition", "attachment"
}

// Classify derives the content type from the last extension of the base name.
func Classify(path string) ContentType {
	base := path[strings.LastIndexByte(path, '/')+1:]

	dot := strings.LastIndexByte(base, '.')
	if dot == -1 {
		return ContentFile
	}

	if c, ok := contentTypes[strings.ToLower(base[dot+1:])]; ok {
		return c
	}
	return ContentFile
}
