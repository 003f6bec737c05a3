// Package docs LEO Club Portal API.
//
// Documentation of the LEO Club Portal API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - bearer
//
//    SecurityDefinitions:
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/leoportal/leo-portal-api/models"
)

// swagger:route GET /health health healthEndpointID
// Shows the health of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/events/{event_id} events eventByID
// Gets a single event by ID.
// responses:
//   200: eventByIDResponse

// Shows a single event by the given {event_id}
// swagger:response eventByIDResponse
type eventByIDResponseWrapper struct {
	// in:body
	Body models.Event
}

// swagger:route POST /api/v1/events/{event_id}/attendance attendance markAttendance
// Marks the caller present at an event.
// responses:
//   201: attendanceResponse
//   409: alreadyMarkedResponse
//   422: errorResponse

// The attendance record that was created
// swagger:response attendanceResponse
type attendanceResponseWrapper struct {
	// in:body
	Body models.AttendanceRecord
}

// The caller was already marked present; the existing record is returned
// swagger:response alreadyMarkedResponse
type alreadyMarkedResponseWrapper struct {
	// in:body
	Body models.AlreadyMarkedResponse
}

// swagger:route POST /api/v1/attendance/sync attendance syncAttendance
// Inserts attendance marks queued while offline.
// responses:
//   200: syncResponse

// Per item outcome of an offline sync
// swagger:response syncResponse
type syncResponseWrapper struct {
	// in:body
	Body models.SyncResponse
}

// swagger:route GET /api/v1/finance/summary finance financeSummary
// Totals income and expenses.
// responses:
//   200: financeSummaryResponse

// Income, expense and balance totals in cents
// swagger:response financeSummaryResponse
type financeSummaryResponseWrapper struct {
	// in:body
	Body models.FinanceSummary
}

// A failed request
// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}
