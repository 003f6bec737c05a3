package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/export"
	"github.com/leoportal/leo-portal-api/models"
)

// ExportRowsHeader carries the number of data rows in an export response
const ExportRowsHeader = "X-Export-Rows"

// Export exported for testing purposes
type Export struct {
	ADB databases.AttendanceDatabase
	EDB databases.EventDatabase
	TDB databases.TransactionDatabase
	UDB databases.UserDatabase
}

func exportFormat(w http.ResponseWriter, r *http.Request) (string, bool) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "":
		return export.FormatCSV, true
	case export.FormatCSV, export.FormatPDF:
		return format, true
	}
	config.ErrorStatus("format must be csv or pdf", http.StatusBadRequest, w, nil)
	return "", false
}

// writeExport renders the table in memory so a rendering failure can still be
// reported as JSON, then streams it as an attachment
func writeExport(w http.ResponseWriter, format, name string, t export.Table) {
	var buf bytes.Buffer
	n, err := export.Write(&buf, format, t)
	if err != nil {
		config.ErrorStatus("failed to render export", http.StatusInternalServerError, w, err)
		return
	}
	if n != len(t.Rows) {
		config.ErrorStatus("export is incomplete", http.StatusInternalServerError, w,
			fmt.Errorf("wrote %d of %d rows", n, len(t.Rows)))
		return
	}

	filename := fmt.Sprintf("%s-%s.%s", name, time.Now().UTC().Format("20060102"), format)
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set(ExportRowsHeader, strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		zap.S().Warnw("failed to stream export", "file", filename, "error", err)
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func formatDate(d interface{ Time() time.Time }) string {
	t := d.Time()
	if t.IsZero() || t.Unix() == 0 {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// AttendanceExportHandler exports everyone marked present at an event
func (e Export) AttendanceExportHandler(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "event_id")
	if !ok {
		return
	}
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	event, err := e.EDB.FindOne(ctx, bson.M{"_id": eventID})
	if err != nil {
		config.ErrorStatus("failed to get event by ID", lookupStatus(err), w, err)
		return
	}
	records, err := e.ADB.Find(ctx, bson.M{"eventId": eventID}, options.Find().SetSort(bson.D{{Key: "markedAt", Value: 1}}))
	if err != nil {
		config.ErrorStatus("failed to get attendance", http.StatusInternalServerError, w, err)
		return
	}

	t := export.Table{
		Title:  fmt.Sprintf("Attendance: %s (%s)", event.Title, event.StartsAt.UTC().Format("2006-01-02")),
		Header: []string{"Name", "Attendee", "Method", "Marked At", "Distance (m)", "Contact"},
		Rows:   make([][]string, 0, len(records)),
	}
	for _, rec := range records {
		name, kind := rec.UserName, "member"
		if rec.IsVisitor() {
			name, kind = rec.VisitorName, "visitor"
		}
		distance := ""
		if rec.DistanceMeters != nil {
			distance = strconv.FormatFloat(*rec.DistanceMeters, 'f', 0, 64)
		}
		t.Rows = append(t.Rows, []string{
			name,
			kind,
			rec.Method,
			rec.MarkedAt.UTC().Format("2006-01-02 15:04"),
			distance,
			rec.VisitorContact,
		})
	}
	writeExport(w, format, "attendance-"+slug.Make(event.Title), t)
}

// TransactionsExportHandler exports transactions using the same filters as the
// finance listing
func (e Export) TransactionsExportHandler(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	filter, err := transactionFilter(r.URL.Query())
	if err != nil {
		config.ErrorStatus("invalid filter", http.StatusBadRequest, w, err)
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	txns, err := e.TDB.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		config.ErrorStatus("failed to get transactions", http.StatusInternalServerError, w, err)
		return
	}

	t := export.Table{
		Title:  "Transactions",
		Header: []string{"Date", "Type", "Category", "Description", "Amount"},
		Rows:   make([][]string, 0, len(txns)),
	}
	for _, txn := range txns {
		t.Rows = append(t.Rows, []string{
			txn.Date.UTC().Format("2006-01-02"),
			txn.Type,
			txn.Category,
			txn.Description,
			formatCents(txn.Amount),
		})
	}
	writeExport(w, format, "transactions", t)
}

// MembersExportHandler exports the member roster, approved members by default
func (e Export) MembersExportHandler(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(w, r)
	if !ok {
		return
	}
	filter := bson.M{"status": models.StatusApproved}
	if s := r.URL.Query().Get("status"); s != "" {
		filter["status"] = s
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	users, err := e.UDB.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		config.ErrorStatus("failed to get users", http.StatusInternalServerError, w, err)
		return
	}

	t := export.Table{
		Title:  "Members",
		Header: []string{"Name", "Email", "Phone", "Role", "Status", "Membership ID", "Birthday", "Dues", "Joined"},
		Rows:   make([][]string, 0, len(users)),
	}
	for _, u := range users {
		t.Rows = append(t.Rows, []string{
			u.Name,
			u.Email,
			u.Phone,
			u.Role,
			u.Status,
			u.MembershipID,
			u.Birthday,
			u.DuesStatus,
			formatDate(u.JoinedAt),
		})
	}
	writeExport(w, format, "members", t)
}
