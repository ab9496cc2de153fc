package models

// Field is one extracted field/value pair with the section heading it
// was found under.
type Field struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Section string `json:"section,omitempty"`
}

// List is a detected bulleted, numbered, or lettered list.
type List struct {
	Items []string `json:"items"`
}

// FieldSet is everything key/value extraction recovers from
// unstructured text. Like tables, field sets are derived on demand and
// never persisted.
type FieldSet struct {
	Fields   []Field           `json:"fields"`
	Sections map[string]string `json:"sections,omitempty"`
	Lists    []List            `json:"lists,omitempty"`
	Dates    []string          `json:"dates,omitempty"`
	Amounts  []string          `json:"amounts,omitempty"`
}

// FieldByName returns the first field with the given normalized name.
func (fs *FieldSet) FieldByName(name string) (Field, bool) {
	for _, f := range fs.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
