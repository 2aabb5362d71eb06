package models

// Typed school entities. Every string field tagged with a json name other than
// "id" is editable through the console.

// Student is a pupil enrolled in a class.
type Student struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female Male Female"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	ClassName   string `json:"className"`
	Section     string `json:"section"`
	RollNumber  string `json:"rollNumber" validate:"omitempty,numeric"`
	ParentName  string `json:"parentName"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Photo       string `json:"photo"`
}

func (s *Student) RecordID() string     { return s.ID }
func (s *Student) Fields() Fields       { return fieldsOf(s) }
func (s *Student) FileFields() []string { return []string{"photo"} }

// Teacher is a member of teaching staff.
type Teacher struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female Male Female"`
	Subject     string `json:"subject"`
	ClassName   string `json:"className"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Salary      string `json:"salary" validate:"omitempty,numeric"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Photo       string `json:"photo"`
}

func (t *Teacher) RecordID() string     { return t.ID }
func (t *Teacher) Fields() Fields       { return fieldsOf(t) }
func (t *Teacher) FileFields() []string { return []string{"photo"} }

// Parent is a guardian linked to one or more students.
type Parent struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone"`
	Occupation  string `json:"occupation"`
	Address     string `json:"address"`
	StudentName string `json:"studentName"`
	Photo       string `json:"photo"`
}

func (p *Parent) RecordID() string     { return p.ID }
func (p *Parent) Fields() Fields       { return fieldsOf(p) }
func (p *Parent) FileFields() []string { return []string{"photo"} }

// Class is a teaching group.
type Class struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Section     string `json:"section"`
	TeacherName string `json:"teacherName"`
	Capacity    string `json:"capacity" validate:"omitempty,numeric"`
	Room        string `json:"room"`
}

func (c *Class) RecordID() string { return c.ID }
func (c *Class) Fields() Fields   { return fieldsOf(c) }

// Subject is a course taught to a class.
type Subject struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Code        string `json:"code"`
	ClassName   string `json:"className"`
	TeacherName string `json:"teacherName"`
}

func (s *Subject) RecordID() string { return s.ID }
func (s *Subject) Fields() Fields   { return fieldsOf(s) }

// Book is a library or syllabus book.
type Book struct {
	ID            string `json:"id"`
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author"`
	Subject       string `json:"subject"`
	ClassName     string `json:"className"`
	PublishedYear string `json:"publishedYear" validate:"omitempty,numeric,len=4"`
}

func (b *Book) RecordID() string { return b.ID }
func (b *Book) Fields() Fields   { return fieldsOf(b) }

// Expense is a school expenditure.
type Expense struct {
	ID          string `json:"id"`
	Title       string `json:"title" validate:"required"`
	Category    string `json:"category"`
	Amount      string `json:"amount" validate:"required,numeric"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description string `json:"description"`
}

func (e *Expense) RecordID() string { return e.ID }
func (e *Expense) Fields() Fields   { return fieldsOf(e) }

// Fee is a student fee record. Amount is what has been paid; FeeAmount is what is due.
type Fee struct {
	ID          string `json:"id"`
	StudentName string `json:"studentName" validate:"required"`
	ClassName   string `json:"className"`
	FeeAmount   string `json:"feeAmount" validate:"omitempty,numeric"`
	Amount      string `json:"amount" validate:"omitempty,numeric"`
	Status      string `json:"status"`
	DueDate     string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

func (f *Fee) RecordID() string { return f.ID }
func (f *Fee) Fields() Fields   { return fieldsOf(f) }

// Attendance is one student's attendance mark for a day.
type Attendance struct {
	ID          string `json:"id"`
	StudentName string `json:"studentName" validate:"required"`
	ClassName   string `json:"className"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Status      string `json:"status" validate:"omitempty,oneof=present absent late Present Absent Late"`
}

func (a *Attendance) RecordID() string { return a.ID }
func (a *Attendance) Fields() Fields   { return fieldsOf(a) }

// Notice is an announcement shown on the dashboard.
type Notice struct {
	ID     string `json:"id"`
	Title  string `json:"title" validate:"required"`
	Body   string `json:"body"`
	Author string `json:"author"`
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (n *Notice) RecordID() string { return n.ID }
func (n *Notice) Fields() Fields   { return fieldsOf(n) }

// ExamSchedule is one sitting of an exam.
type ExamSchedule struct {
	ID        string `json:"id"`
	Subject   string `json:"subject" validate:"required"`
	ClassName string `json:"className"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Room      string `json:"room"`
}

func (e *ExamSchedule) RecordID() string { return e.ID }
func (e *ExamSchedule) Fields() Fields   { return fieldsOf(e) }

// Grade is a student's result in one subject exam.
type Grade struct {
	ID          string `json:"id"`
	StudentName string `json:"studentName" validate:"required"`
	ClassName   string `json:"className"`
	Subject     string `json:"subject" validate:"required"`
	Exam        string `json:"exam"`
	Marks       string `json:"marks" validate:"omitempty,numeric"`
	Grade       string `json:"grade"`
}

func (g *Grade) RecordID() string { return g.ID }
func (g *Grade) Fields() Fields   { return fieldsOf(g) }
