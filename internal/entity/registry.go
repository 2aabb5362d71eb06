// Package entity declares the school entities the console can list and edit,
// with their backend paths and list columns.
package entity

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-admin-console/internal/models"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

// Descriptor describes one entity type.
type Descriptor struct {
	Name    string
	Title   string
	Path    string
	Columns []models.Column
	Search  []string
	new     func() models.Entity
}

// New returns an empty typed entity.
func (d Descriptor) New() models.Entity {
	return d.new()
}

// FieldKeys lists the editable fields in declaration order.
func (d Descriptor) FieldKeys() []string {
	return models.FieldKeys(d.new())
}

// FileFields lists the file-valued fields.
func (d Descriptor) FileFields() []string {
	if ff, ok := d.new().(models.FileFielder); ok {
		return ff.FileFields()
	}
	return nil
}

// IsFileField reports whether key holds a file.
func (d Descriptor) IsFileField(key string) bool {
	for _, f := range d.FileFields() {
		if f == key {
			return true
		}
	}
	return false
}

// HasField reports whether key is an editable field.
func (d Descriptor) HasField(key string) bool {
	for _, f := range d.FieldKeys() {
		if f == key {
			return true
		}
	}
	return false
}

// Decode converts a backend record into the typed entity, dropping fields the
// entity does not declare and defaulting missing ones to the empty string.
func (d Descriptor) Decode(rec models.Record) (models.Entity, error) {
	e := d.new()
	if err := models.Assign(e, rec.ID, rec.Values); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", d.Name, rec.ID, err)
	}
	return e, nil
}

// Info returns the public description.
func (d Descriptor) Info() models.EntityInfo {
	return models.EntityInfo{
		Name:       d.Name,
		Title:      d.Title,
		Columns:    append([]models.Column(nil), d.Columns...),
		Fields:     d.FieldKeys(),
		FileFields: d.FileFields(),
	}
}

// SearchKeys returns the keys matched by the list search box.
func (d Descriptor) SearchKeys() []string {
	if len(d.Search) > 0 {
		return d.Search
	}
	keys := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		keys = append(keys, c.Key)
	}
	return keys
}

// Registry indexes descriptors by name.
type Registry struct {
	byName map[string]Descriptor
	order  []string
}

// NewRegistry builds a registry from descriptors, keeping their order.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{byName: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, exists := r.byName[d.Name]; !exists {
			r.order = append(r.order, d.Name)
		}
		r.byName[d.Name] = d
	}
	return r
}

// Lookup finds a descriptor by name (case-insensitive).
func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Descriptor{}, appErrors.Clone(appErrors.ErrUnknownEntity, fmt.Sprintf("unknown entity: %s", name))
	}
	return d, nil
}

// All returns descriptors in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func col(key, title string) models.Column {
	return models.Column{Key: key, Title: title}
}

// Default returns the school entities served by the console.
func Default() *Registry {
	return NewRegistry(
		Descriptor{
			Name: "student", Title: "Students", Path: "/students",
			Columns: []models.Column{col("name", "Name"), col("email", "Email"), col("className", "Class"), col("section", "Section"), col("rollNumber", "Roll No."), col("parentName", "Parent"), col("phone", "Phone")},
			new:     func() models.Entity { return &models.Student{} },
		},
		Descriptor{
			Name: "teacher", Title: "Teachers", Path: "/teachers",
			Columns: []models.Column{col("name", "Name"), col("email", "Email"), col("subject", "Subject"), col("className", "Class"), col("phone", "Phone")},
			new:     func() models.Entity { return &models.Teacher{} },
		},
		Descriptor{
			Name: "parent", Title: "Parents", Path: "/parents",
			Columns: []models.Column{col("name", "Name"), col("email", "Email"), col("phone", "Phone"), col("studentName", "Student"), col("occupation", "Occupation")},
			new:     func() models.Entity { return &models.Parent{} },
		},
		Descriptor{
			Name: "class", Title: "Classes", Path: "/classes",
			Columns: []models.Column{col("name", "Class"), col("section", "Section"), col("teacherName", "Class Teacher"), col("capacity", "Capacity"), col("room", "Room")},
			new:     func() models.Entity { return &models.Class{} },
		},
		Descriptor{
			Name: "subject", Title: "Subjects", Path: "/subjects",
			Columns: []models.Column{col("name", "Subject"), col("code", "Code"), col("className", "Class"), col("teacherName", "Teacher")},
			new:     func() models.Entity { return &models.Subject{} },
		},
		Descriptor{
			Name: "book", Title: "Books", Path: "/books",
			Columns: []models.Column{col("title", "Title"), col("author", "Author"), col("subject", "Subject"), col("className", "Class"), col("publishedYear", "Year")},
			new:     func() models.Entity { return &models.Book{} },
		},
		Descriptor{
			Name: "expense", Title: "Expenses", Path: "/expenses",
			Columns: []models.Column{col("title", "Title"), col("category", "Category"), col("amount", "Amount"), col("date", "Date")},
			Search:  []string{"title", "category", "description"},
			new:     func() models.Entity { return &models.Expense{} },
		},
		Descriptor{
			Name: "fee", Title: "Fees", Path: "/fees",
			Columns: []models.Column{col("studentName", "Student"), col("className", "Class"), col("feeAmount", "Fee"), col("amount", "Paid"), col("status", "Status"), col("dueDate", "Due")},
			new:     func() models.Entity { return &models.Fee{} },
		},
		Descriptor{
			Name: "attendance", Title: "Attendance", Path: "/attendance",
			Columns: []models.Column{col("studentName", "Student"), col("className", "Class"), col("date", "Date"), col("status", "Status")},
			new:     func() models.Entity { return &models.Attendance{} },
		},
		Descriptor{
			Name: "notice", Title: "Notices", Path: "/notices",
			Columns: []models.Column{col("title", "Title"), col("author", "Author"), col("date", "Date")},
			Search:  []string{"title", "body", "author"},
			new:     func() models.Entity { return &models.Notice{} },
		},
		Descriptor{
			Name: "exam", Title: "Exam Schedule", Path: "/exams",
			Columns: []models.Column{col("subject", "Subject"), col("className", "Class"), col("date", "Date"), col("startTime", "Start"), col("endTime", "End"), col("room", "Room")},
			new:     func() models.Entity { return &models.ExamSchedule{} },
		},
		Descriptor{
			Name: "grade", Title: "Grades", Path: "/grades",
			Columns: []models.Column{col("studentName", "Student"), col("className", "Class"), col("subject", "Subject"), col("exam", "Exam"), col("marks", "Marks"), col("grade", "Grade")},
			new:     func() models.Entity { return &models.Grade{} },
		},
	)
}
