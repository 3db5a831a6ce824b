// model/rental.go
package model

import "time"

type RentalStatus string

const (
	RentalActive   RentalStatus = "ACTIVE"
	RentalOverdue  RentalStatus = "OVERDUE"
	RentalReturned RentalStatus = "RETURNED"
)

// NoticeKind identifies the lifecycle transition a notification is about.
type NoticeKind string

const (
	NoticeOverdue NoticeKind = "OVERDUE_NOTICE"
	NoticeDueSoon NoticeKind = "DUE_SOON_NOTICE"
)

type Rental struct {
	ID         int64        `json:"id"`
	UserID     int64        `json:"user_id"`
	BookID     int64        `json:"book_id"`
	Status     RentalStatus `json:"status"`
	RentedAt   time.Time    `json:"rented_at"`
	DueDate    time.Time    `json:"due_date"`
	Returned   bool         `json:"returned"`
	ReturnedAt *time.Time   `json:"returned_at,omitempty"`
}
