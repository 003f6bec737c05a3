package handlers_test

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/leoportal/leo-portal-api/api/handlers"
	"github.com/leoportal/leo-portal-api/databases/mocks"
	"github.com/leoportal/leo-portal-api/models"
)

func newExportHandler() (handlers.Export, *mocks.AttendanceDatabase, *mocks.EventDatabase, *mocks.TransactionDatabase, *mocks.UserDatabase) {
	adb := &mocks.AttendanceDatabase{}
	edb := &mocks.EventDatabase{}
	tdb := &mocks.TransactionDatabase{}
	udb := &mocks.UserDatabase{}
	return handlers.Export{ADB: adb, EDB: edb, TDB: tdb, UDB: udb}, adb, edb, tdb, udb
}

func attendanceRecords(eventID primitive.ObjectID) []models.AttendanceRecord {
	d := 12.4
	marked := time.Date(2026, 3, 14, 18, 5, 0, 0, time.UTC)
	return []models.AttendanceRecord{
		{EventID: eventID, UserID: "u1", UserName: "Ada Lovelace", Method: models.MethodGeofence, DistanceMeters: &d, MarkedAt: marked},
		{EventID: eventID, UserID: "u2", UserName: "Grace Hopper", Method: models.MethodQR, MarkedAt: marked.Add(time.Minute)},
		{EventID: eventID, VisitorName: "Jane Doe", VisitorContact: "jane@example.com", Method: models.MethodManual, MarkedAt: marked.Add(2 * time.Minute)},
	}
}

func TestExport_AttendanceExportHandlerCSV(t *testing.T) {
	h, adb, edb, _, _ := newExportHandler()
	id := primitive.NewObjectID()
	edb.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Event{ID: id, Title: "Pi Day Meetup", StartsAt: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}, nil)
	adb.On("Find", mock.Anything, bson.M{"eventId": id}, mock.Anything).Return(attendanceRecords(id), nil)

	rr := serve(h.AttendanceExportHandler, newRequest(t, http.MethodGet, "/", nil, admin(primitive.NewObjectID()), map[string]string{"event_id": id.Hex()}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "3", rr.Header().Get(handlers.ExportRowsHeader))
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attendance-pi-day-meetup-")

	lines, err := csv.NewReader(bytes.NewReader(rr.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"Name", "Attendee", "Method", "Marked At", "Distance (m)", "Contact"}, lines[0])
	assert.Equal(t, []string{"Ada Lovelace", "member", "geofence", "2026-03-14 18:05", "12", ""}, lines[1])
	assert.Equal(t, []string{"Jane Doe", "visitor", "manual", "2026-03-14 18:07", "", "jane@example.com"}, lines[3])
}

func TestExport_AttendanceExportHandlerPDF(t *testing.T) {
	h, adb, edb, _, _ := newExportHandler()
	id := primitive.NewObjectID()
	edb.On("FindOne", mock.Anything, bson.M{"_id": id}).Return(&models.Event{ID: id, Title: "Pi Day Meetup"}, nil)
	adb.On("Find", mock.Anything, bson.M{"eventId": id}, mock.Anything).Return(attendanceRecords(id), nil)

	rr := serve(h.AttendanceExportHandler, newRequest(t, http.MethodGet, "/?format=pdf", nil, admin(primitive.NewObjectID()), map[string]string{"event_id": id.Hex()}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, "3", rr.Header().Get(handlers.ExportRowsHeader))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")))
}

func TestExport_AttendanceExportHandlerBadFormat(t *testing.T) {
	h, _, edb, _, _ := newExportHandler()

	rr := serve(h.AttendanceExportHandler, newRequest(t, http.MethodGet, "/?format=xlsx", nil, admin(primitive.NewObjectID()), map[string]string{"event_id": primitive.NewObjectID().Hex()}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	edb.AssertNotCalled(t, "FindOne", mock.Anything, mock.Anything)
}

func TestExport_TransactionsExportHandler(t *testing.T) {
	h, _, _, tdb, _ := newExportHandler()
	txns := make([]models.Transaction, 0, 25)
	for i := 0; i < 25; i++ {
		txns = append(txns, models.Transaction{
			Type:     models.TransactionIncome,
			Category: "dues",
			Amount:   int64(1000 + i),
			Date:     time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}
	tdb.On("Find", mock.Anything, bson.M{"type": models.TransactionIncome}, mock.Anything).Return(txns, nil)

	rr := serve(h.TransactionsExportHandler, newRequest(t, http.MethodGet, "/?type=income", nil, admin(primitive.NewObjectID()), nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, strconv.Itoa(len(txns)), rr.Header().Get(handlers.ExportRowsHeader))
	lines, err := csv.NewReader(bytes.NewReader(rr.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, len(txns)+1)
	assert.Equal(t, "10.00", lines[1][4])
}

func TestExport_MembersExportHandlerEmpty(t *testing.T) {
	h, _, _, _, udb := newExportHandler()
	udb.On("Find", mock.Anything, bson.M{"status": models.StatusApproved}, mock.Anything).Return(nil, nil)

	rr := serve(h.MembersExportHandler, newRequest(t, http.MethodGet, "/", nil, admin(primitive.NewObjectID()), nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "0", rr.Header().Get(handlers.ExportRowsHeader))
	lines, err := csv.NewReader(bytes.NewReader(rr.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}
