package lifecycle

import (
	"fmt"

	"booklend/model"
	rentalrepo "booklend/repository/rental"
)

// Templates renders notice subject and body for a rental. The sweep
// treats the output as opaque strings.
type Templates interface {
	Render(kind model.NoticeKind, c rentalrepo.Candidate) (subject, body string)
}

// PlainTemplates is the default plain-text renderer.
type PlainTemplates struct{}

func (PlainTemplates) Render(kind model.NoticeKind, c rentalrepo.Candidate) (string, string) {
	due := c.DueDate.Format("Mon, 2 Jan 2006")
	switch kind {
	case model.NoticeDueSoon:
		return fmt.Sprintf("Reminder: %q is due %s", c.BookName, due),
			fmt.Sprintf("Hi %s,\n\nYour rental of %q is due on %s. Please return or extend it before then.\n",
				c.UserName, c.BookName, due)
	default:
		return fmt.Sprintf("Overdue: %q was due %s", c.BookName, due),
			fmt.Sprintf("Hi %s,\n\nYour rental of %q was due on %s and is now overdue. Please return it as soon as possible.\n",
				c.UserName, c.BookName, due)
	}
}
