package templates

import (
	"fmt"
	"strings"
	"time"
)

// Message is a rendered email ready to hand to the mailer
type Message struct {
	Subject string
	Plain   string
	HTML    string
}

func newMessage(subject, plain string) Message {
	return Message{Subject: subject, Plain: plain, HTML: RenderGenericEmail(subject, plain)}
}

// ApprovalEmail welcomes a member whose registration was approved
func ApprovalEmail(name, loginURL string) Message {
	return newMessage("Your membership has been approved",
		fmt.Sprintf("Hi %s,\n\nGood news! An officer approved your registration and you can now sign in to the club portal.\n\n%s\n\nWe serve!", name, loginURL))
}

// BirthdayEmail greets a member on their birthday
func BirthdayEmail(name string) Message {
	return newMessage("Happy birthday from your LEO club!",
		fmt.Sprintf("Hi %s,\n\nEveryone at the club wishes you a very happy birthday. Have a wonderful day!", name))
}

// EventReminderEmail reminds members of an event starting soon
func EventReminderEmail(title, venue string, startsAt time.Time) Message {
	when := startsAt.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	body := fmt.Sprintf("Reminder: %s starts %s.", title, when)
	if venue != "" {
		body += "\nVenue: " + venue
	}
	body += "\n\nRemember to mark your attendance when you arrive."
	return newMessage("Upcoming event: "+title, body)
}

// DuesReminderEmail asks a member to pay outstanding dues
func DuesReminderEmail(name string, amountCents int64, currency string) Message {
	return newMessage("Membership dues reminder",
		fmt.Sprintf("Hi %s,\n\nOur records show your annual membership dues of %s are still unpaid. You can pay online from the Finance page of the portal.\n\nThank you for supporting the club.", name, FormatAmount(amountCents, currency)))
}

// IdeaReviewedEmail tells an author the outcome of a project idea review
func IdeaReviewedEmail(name, title, status, comment string) Message {
	outcome := strings.ReplaceAll(status, "_", " ")
	body := fmt.Sprintf("Hi %s,\n\nYour project idea \"%s\" was reviewed. Outcome: %s.", name, title, outcome)
	if comment != "" {
		body += "\n\nReviewer comment:\n" + comment
	}
	return newMessage("Project idea reviewed: "+title, body)
}

// MonthlyReport is the activity digest sent to admins
type MonthlyReport struct {
	Month        string
	Events       int
	Attendance   int
	NewMembers   int
	IncomeCents  int64
	ExpenseCents int64
	Currency     string
}

// MonthlyReportEmail renders the admin digest
func MonthlyReportEmail(r MonthlyReport) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Club activity for %s\n\n", r.Month)
	fmt.Fprintf(&b, "Events held: %d\n", r.Events)
	fmt.Fprintf(&b, "Attendance marks: %d\n", r.Attendance)
	fmt.Fprintf(&b, "New members: %d\n", r.NewMembers)
	fmt.Fprintf(&b, "Income: %s\n", FormatAmount(r.IncomeCents, r.Currency))
	fmt.Fprintf(&b, "Expenses: %s\n", FormatAmount(r.ExpenseCents, r.Currency))
	fmt.Fprintf(&b, "Net: %s", FormatAmount(r.IncomeCents-r.ExpenseCents, r.Currency))
	return newMessage("Monthly report: "+r.Month, b.String())
}

// FormatAmount renders cents as a decimal amount with an upper case currency code
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}
