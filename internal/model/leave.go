package model

import "time"

type LeaveStatus string

const (
	LeaveStatusRequested LeaveStatus = "requested"
	LeaveStatusApproved  LeaveStatus = "approved"
	LeaveStatusDeclined  LeaveStatus = "declined"
)

// LeaveRequest is one annual-leave request owned by a User. Only Status changes after creation.
type LeaveRequest struct {
	ID            int         `bson:"id" dynamodbav:"id" json:"id"` // sequential per user, 1-based
	StartDate     string      `bson:"start_date" dynamodbav:"startDate" json:"start_date"`    // YYYY-MM-DD
	ReturnDate    string      `bson:"return_date" dynamodbav:"returnDate" json:"return_date"` // YYYY-MM-DD
	LeaveCount    int         `bson:"leave_count" dynamodbav:"leaveCount" json:"leave_count"`
	Status        LeaveStatus `bson:"status" dynamodbav:"status" json:"status"`
	FinancialYear *int        `bson:"financial_year,omitempty" dynamodbav:"financialYear,omitempty" json:"financial_year,omitempty"`
	CreatedAt     time.Time   `bson:"created_at" dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt     time.Time   `bson:"updated_at" dynamodbav:"updatedAt" json:"updated_at"`
}
