// Package sheets mirrors the member roster into a Google spreadsheet so officers
// can work with it outside the portal.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/leoportal/leo-portal-api/models"
)

const (
	memberSheet = "Members"
	idColumn    = memberSheet + "!A:A"
)

// Mirror keeps an external copy of the member roster
type Mirror interface {
	AppendMember(ctx context.Context, u models.User) error
	UpdateMember(ctx context.Context, u models.User) error
}

// Noop is used when no spreadsheet is configured
type Noop struct{}

// AppendMember does nothing
func (Noop) AppendMember(context.Context, models.User) error { return nil }

// UpdateMember does nothing
func (Noop) UpdateMember(context.Context, models.User) error { return nil }

// SheetMirror writes one row per member to the Members tab
type SheetMirror struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// New builds a mirror for spreadsheetID. Extra client options may point the
// service at another endpoint or supply credentials.
func New(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetMirror, error) {
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetMirror{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// NewFromConfig returns a Noop mirror when the spreadsheet id is empty
func NewFromConfig(ctx context.Context, spreadsheetID, credentialsFile string) (Mirror, error) {
	if spreadsheetID == "" {
		return Noop{}, nil
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return New(ctx, spreadsheetID, opts...)
}

func memberRow(u models.User) []interface{} {
	return []interface{}{
		u.ID.Hex(),
		u.Name,
		u.Email,
		u.Phone,
		u.Role,
		u.Status,
		u.MembershipID,
		u.DuesStatus,
		u.JoinedAt.Time().UTC().Format("2006-01-02"),
	}
}

// AppendMember adds a row for a newly registered user
func (m *SheetMirror) AppendMember(ctx context.Context, u models.User) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{memberRow(u)}}
	_, err := m.svc.Spreadsheets.Values.Append(m.spreadsheetID, memberSheet, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append member row: %w", err)
	}
	return nil
}

// UpdateMember rewrites the row holding the user's id, appending one when the
// user was never mirrored
func (m *SheetMirror) UpdateMember(ctx context.Context, u models.User) error {
	ids, err := m.svc.Spreadsheets.Values.Get(m.spreadsheetID, idColumn).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read member ids: %w", err)
	}
	row := 0
	for i, r := range ids.Values {
		if len(r) > 0 && fmt.Sprint(r[0]) == u.ID.Hex() {
			row = i + 1
			break
		}
	}
	if row == 0 {
		return m.AppendMember(ctx, u)
	}

	target := fmt.Sprintf("%s!A%d", memberSheet, row)
	vr := &gsheets.ValueRange{Values: [][]interface{}{memberRow(u)}}
	_, err = m.svc.Spreadsheets.Values.Update(m.spreadsheetID, target, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update member row: %w", err)
	}
	return nil
}
