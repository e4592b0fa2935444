package cloudinarytools

import "strings"

// Context is the normalized, display-ready metadata record attached to an
// uploaded asset. Every present field is a finalized string; a field left
// empty was absent from the source metadata.
type Context struct {
	Model                   string
	LensModel               string
	FocalLengthIn35mmFormat string
	FNumber                 string
	ExposureTime            string
	ISO                     string
	ExposureProgram         string
	Software                string
	DateTimeOriginal        string
}

type contextField struct {
	key   string
	value *string
}

func (c *Context) fields() []contextField {
	return []contextField{
		{"Model", &c.Model},
		{"LensModel", &c.LensModel},
		{"FocalLengthIn35mmFormat", &c.FocalLengthIn35mmFormat},
		{"FNumber", &c.FNumber},
		{"ExposureTime", &c.ExposureTime},
		{"ISO", &c.ISO},
		{"ExposureProgram", &c.ExposureProgram},
		{"Software", &c.Software},
		{"DateTimeOriginal", &c.DateTimeOriginal},
	}
}

// ContextString serializes the record into the pipe-delimited context
// attribute the CDN upload call expects: "key=value|key=value|...". Absent
// fields are skipped.
func (c *Context) ContextString() string {
	var parts []string
	for _, f := range c.fields() {
		if *f.value == "" {
			continue
		}
		parts = append(parts, f.key+"="+*f.value)
	}
	return strings.Join(parts, "|")
}

// ParseContextString rebuilds a Context from its pipe-delimited form.
// Unknown keys are ignored.
func ParseContextString(s string) *Context {
	context := &Context{}
	if s == "" {
		return context
	}
	byKey := make(map[string]*string)
	for _, f := range context.fields() {
		byKey[f.key] = f.value
	}
	for _, pair := range strings.Split(s, "|") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if dst, known := byKey[key]; known {
			*dst = value
		}
	}
	return context
}
