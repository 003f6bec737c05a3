package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/aiassist"
	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/checkin"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/mailer"
	"github.com/leoportal/leo-portal-api/models"
	"github.com/leoportal/leo-portal-api/notify"
	"github.com/leoportal/leo-portal-api/payments"
	"github.com/leoportal/leo-portal-api/sheets"
	"github.com/leoportal/leo-portal-api/triggers"
	"github.com/leoportal/leo-portal-api/uploads"
)

const maxBodyBytes = 1 << 20

// App stores the router and db connection, so it can be reused
type App struct {
	Router *mux.Router
	Config config.Config

	Client   databases.ClientHelper
	Hub      *notify.Hub
	Triggers *triggers.Dispatcher
	Mailer   mailer.Mailer
	Pusher   notify.Pusher

	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	conf := a.Config
	userDB := databases.NewUserDatabase(a.dbHelper)
	eventDB := databases.NewEventDatabase(a.dbHelper)
	attendanceDB := databases.NewAttendanceDatabase(a.dbHelper)
	pointsDB := databases.NewPointsDatabase(a.dbHelper)
	taskDB := databases.NewTaskDatabase(a.dbHelper)
	transactionDB := databases.NewTransactionDatabase(a.dbHelper)
	ideaDB := databases.NewProjectIdeaDatabase(a.dbHelper)
	documentDB := databases.NewDocumentDatabase(a.dbHelper)
	groupDB := databases.NewCommunicationGroupDatabase(a.dbHelper)
	pushTokenDB := databases.NewPushTokenDatabase(a.dbHelper)

	issuer := checkin.NewIssuer(conf.CheckInSecret)

	m := api.NewAuth(userDB)
	u := User{DB: userDB, Hooks: a.Triggers}
	e := Event{DB: eventDB, ADB: attendanceDB, Hooks: a.Triggers, CheckIn: issuer, DefaultRadius: conf.CheckInRadiusMeters}
	att := Attendance{DB: attendanceDB, EDB: eventDB, UDB: userDB, PDB: pointsDB, CheckIn: issuer, DefaultRadius: conf.CheckInRadiusMeters}
	idea := ProjectIdea{DB: ideaDB, UDB: userDB, Hooks: a.Triggers, AI: aiassist.New(conf.OpenAIAPIKey, conf.OpenAIModel)}
	task := Task{DB: taskDB, UDB: userDB, Hub: a.Hub}
	fin := Finance{
		DB:          transactionDB,
		UDB:         userDB,
		Payments:    payments.NewStripe(conf.StripeSecretKey),
		DuesAmount:  conf.DuesAmountCents,
		Currency:    conf.DuesCurrency,
		RedirectURL: conf.BaseURL,
	}
	pts := Points{DB: pointsDB, UDB: userDB}
	doc := Document{DB: documentDB, Signer: uploads.NewSigner(conf.CloudinaryCloudName, conf.CloudinaryAPIKey, conf.CloudinaryAPISecret, conf.CloudinaryUploadPreset)}
	comm := Communication{DB: groupDB, UDB: userDB, Mailer: a.Mailer}
	exp := Export{ADB: attendanceDB, EDB: eventDB, TDB: transactionDB, UDB: userDB}
	pt := PushToken{DB: pushTokenDB}
	ws := Notification{Hub: a.Hub}

	r := api.New()
	r.Use(api.MetricsMiddleware)

	// the websocket route cannot sit behind the timeout writer
	r.Handle("/ws/notifications", m.Middleware(http.HandlerFunc(ws.HandleNotificationsWebSocket))).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(conf.RequestTimeout))

	authed := func(h http.HandlerFunc) http.Handler { return m.Middleware(h) }
	admin := func(h http.HandlerFunc) http.Handler { return m.Middleware(api.AdminOnly(h)) }

	apiCreate.Handle("/auth/token", authed(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", authed(m.RevokeToken)).Methods("DELETE")

	apiCreate.Handle("/users/register", http.HandlerFunc(u.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/users/me", authed(u.MeHandler)).Methods("GET")
	apiCreate.Handle("/users/me", authed(u.UpdateProfileHandler)).Methods("PATCH")
	apiCreate.Handle("/users", authed(u.ListUsersHandler)).Methods("GET")
	apiCreate.Handle("/users/{user_id}", authed(u.UserByIDHandler)).Methods("GET")
	apiCreate.Handle("/users/{user_id}/approve", admin(u.ApproveUserHandler)).Methods("POST")
	apiCreate.Handle("/users/{user_id}/reject", admin(u.RejectUserHandler)).Methods("DELETE")
	apiCreate.Handle("/users/{user_id}/role", admin(u.SetRoleHandler)).Methods("PUT")
	apiCreate.Handle("/users/{user_id}/attendance", authed(att.UserAttendanceHandler)).Methods("GET")
	apiCreate.Handle("/users/{user_id}/points", authed(pts.UserPointsHandler)).Methods("GET")

	apiCreate.Handle("/events", authed(e.ListEventsHandler)).Methods("GET")
	apiCreate.Handle("/events", admin(e.CreateEventHandler)).Methods("POST")
	apiCreate.Handle("/events/{event_id}", authed(e.EventByIDHandler)).Methods("GET")
	apiCreate.Handle("/events/{event_id}", admin(e.UpdateEventHandler)).Methods("PUT")
	apiCreate.Handle("/events/{event_id}", admin(e.DeleteEventHandler)).Methods("DELETE")
	apiCreate.Handle("/events/{event_id}/checkin-code", admin(e.CheckInCodeHandler)).Methods("GET")
	apiCreate.Handle("/events/{event_id}/attendance", authed(att.MarkAttendanceHandler)).Methods("POST")
	apiCreate.Handle("/events/{event_id}/attendance", authed(att.EventAttendanceHandler)).Methods("GET")
	apiCreate.Handle("/events/{event_id}/attendance/visitor", authed(att.MarkVisitorHandler)).Methods("POST")
	apiCreate.Handle("/events/{event_id}/attendance/manual", admin(att.ManualMarkHandler)).Methods("POST")

	apiCreate.Handle("/attendance/sync", authed(att.SyncHandler)).Methods("POST")
	apiCreate.Handle("/attendance/leaderboard", authed(att.LeaderboardHandler)).Methods("GET")

	apiCreate.Handle("/project-ideas", authed(idea.ListIdeasHandler)).Methods("GET")
	apiCreate.Handle("/project-ideas", authed(idea.CreateIdeaHandler)).Methods("POST")
	apiCreate.Handle("/project-ideas/generate", authed(idea.GenerateIdeaHandler)).Methods("POST")
	apiCreate.Handle("/project-ideas/{idea_id}", authed(idea.IdeaByIDHandler)).Methods("GET")
	apiCreate.Handle("/project-ideas/{idea_id}", authed(idea.UpdateIdeaHandler)).Methods("PUT")
	apiCreate.Handle("/project-ideas/{idea_id}", authed(idea.DeleteIdeaHandler)).Methods("DELETE")
	apiCreate.Handle("/project-ideas/{idea_id}/submit", authed(idea.SubmitIdeaHandler)).Methods("POST")
	apiCreate.Handle("/project-ideas/{idea_id}/review", admin(idea.ReviewIdeaHandler)).Methods("POST")

	apiCreate.Handle("/tasks", authed(task.BoardHandler)).Methods("GET")
	apiCreate.Handle("/tasks", authed(task.CreateTaskHandler)).Methods("POST")
	apiCreate.Handle("/tasks/{task_id}", authed(task.TaskByIDHandler)).Methods("GET")
	apiCreate.Handle("/tasks/{task_id}", authed(task.UpdateTaskHandler)).Methods("PUT")
	apiCreate.Handle("/tasks/{task_id}", authed(task.DeleteTaskHandler)).Methods("DELETE")
	apiCreate.Handle("/tasks/{task_id}/move", authed(task.MoveTaskHandler)).Methods("PUT")
	apiCreate.Handle("/tasks/{task_id}/checklist", authed(task.AddChecklistItemHandler)).Methods("POST")
	apiCreate.Handle("/tasks/{task_id}/checklist/{item_id}/toggle", authed(task.ToggleChecklistItemHandler)).Methods("PUT")
	apiCreate.Handle("/tasks/{task_id}/checklist/{item_id}", authed(task.RemoveChecklistItemHandler)).Methods("DELETE")
	apiCreate.Handle("/tasks/{task_id}/comments", authed(task.AddCommentHandler)).Methods("POST")
	apiCreate.Handle("/tasks/{task_id}/comments/{comment_id}", authed(task.DeleteCommentHandler)).Methods("DELETE")

	apiCreate.Handle("/finance/transactions", admin(fin.ListTransactionsHandler)).Methods("GET")
	apiCreate.Handle("/finance/transactions", admin(fin.CreateTransactionHandler)).Methods("POST")
	apiCreate.Handle("/finance/transactions/{transaction_id}", admin(fin.TransactionByIDHandler)).Methods("GET")
	apiCreate.Handle("/finance/transactions/{transaction_id}", admin(fin.UpdateTransactionHandler)).Methods("PUT")
	apiCreate.Handle("/finance/transactions/{transaction_id}", admin(fin.DeleteTransactionHandler)).Methods("DELETE")
	apiCreate.Handle("/finance/summary", admin(fin.SummaryHandler)).Methods("GET")
	apiCreate.Handle("/finance/dues/checkout", authed(fin.DuesCheckoutHandler)).Methods("POST")
	apiCreate.Handle("/finance/dues/confirm", authed(fin.DuesConfirmHandler)).Methods("POST")

	apiCreate.Handle("/points", admin(pts.AwardPointsHandler)).Methods("POST")
	apiCreate.Handle("/points/leaderboard", authed(pts.LeaderboardHandler)).Methods("GET")
	apiCreate.Handle("/points/{entry_id}", admin(pts.DeletePointsHandler)).Methods("DELETE")

	apiCreate.Handle("/documents", authed(doc.ListDocumentsHandler)).Methods("GET")
	apiCreate.Handle("/documents", admin(doc.CreateDocumentHandler)).Methods("POST")
	apiCreate.Handle("/documents/upload-signature", admin(doc.UploadSignatureHandler)).Methods("POST")
	apiCreate.Handle("/documents/{document_id}", authed(doc.DocumentByIDHandler)).Methods("GET")
	apiCreate.Handle("/documents/{document_id}", admin(doc.UpdateDocumentHandler)).Methods("PUT")
	apiCreate.Handle("/documents/{document_id}", admin(doc.DeleteDocumentHandler)).Methods("DELETE")

	apiCreate.Handle("/communication/groups", admin(comm.ListGroupsHandler)).Methods("GET")
	apiCreate.Handle("/communication/groups", admin(comm.CreateGroupHandler)).Methods("POST")
	apiCreate.Handle("/communication/groups/{group_id}", admin(comm.GroupByIDHandler)).Methods("GET")
	apiCreate.Handle("/communication/groups/{group_id}", admin(comm.UpdateGroupHandler)).Methods("PUT")
	apiCreate.Handle("/communication/groups/{group_id}", admin(comm.DeleteGroupHandler)).Methods("DELETE")
	apiCreate.Handle("/communication/send", admin(comm.SendHandler)).Methods("POST")

	apiCreate.Handle("/export/attendance/{event_id}", admin(exp.AttendanceExportHandler)).Methods("GET")
	apiCreate.Handle("/export/transactions", admin(exp.TransactionsExportHandler)).Methods("GET")
	apiCreate.Handle("/export/members", admin(exp.MembersExportHandler)).Methods("GET")

	apiCreate.Handle("/push-tokens", authed(pt.RegisterPushTokenHandler)).Methods("POST")
	apiCreate.Handle("/push-tokens", authed(pt.UnregisterPushTokenHandler)).Methods("DELETE")

	// swagger docs hosted at "/"
	r.PathPrefix("/").Handler(http.StripPrefix("/", http.FileServer(http.Dir("./docs/"))))
	return r
}

// Initialize is invoked by main to connect with the database, wire the side
// effect services and create a router
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		zap.S().Errorw("failed to create new client", "error", err)
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	if err = client.Connect(ctx); err != nil {
		zap.S().Errorw("failed to connect to database", "error", err)
		return err
	}
	a.Client = client
	zap.S().Info("leo-portal-api has connected to the database")

	if err = databases.EnsureIndexes(ctx, a.dbHelper); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	mirror, err := sheets.NewFromConfig(ctx, a.Config.SheetsSpreadsheetID, a.Config.GoogleCredentialsFile)
	if err != nil {
		zap.S().Warnw("spreadsheet mirror disabled", "error", err)
		mirror = sheets.Noop{}
	}

	a.Hub = notify.NewHub()
	a.Mailer = mailer.NewSendGrid(a.Config.SendGridAPIKey, a.Config.EmailFromName, a.Config.EmailFrom)
	a.Pusher = notify.NewExpoClient()
	a.Triggers = &triggers.Dispatcher{
		Mailer:  a.Mailer,
		Mirror:  mirror,
		Pusher:  a.Pusher,
		Tokens:  databases.NewPushTokenDatabase(a.dbHelper),
		Users:   databases.NewUserDatabase(a.dbHelper),
		BaseURL: a.Config.BaseURL,
	}

	a.initializeRoutes()
	return nil
}

// Database exposes the connected database to the scheduler
func (a *App) Database() databases.DatabaseHelper {
	return a.dbHelper
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// PaginatedResponse holds the structure for paginated list responses
type PaginatedResponse struct {
	Page       int64       `json:"page"`
	Limit      int64       `json:"limit"`
	TotalCount int64       `json:"totalCount"`
	Data       interface{} `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("failed to encode response", "error", err)
	}
}

// decodeBody reads a JSON request body, rejecting unknown fields and oversized bodies
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return false
	}
	return true
}

// caller returns the authenticated principal or writes a 401
func caller(w http.ResponseWriter, r *http.Request) (api.Principal, bool) {
	p, ok := api.PrincipalFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
	}
	return p, ok
}

// pathID parses a hex object id from the route variable or writes a 400
func pathID(w http.ResponseWriter, r *http.Request, key string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[key])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

// insertedID converts the id returned by an insert into its hex form
func insertedID(res databases.InsertOneResultHelper) primitive.ObjectID {
	if res == nil {
		return primitive.NilObjectID
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		return id
	}
	return primitive.NilObjectID
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func message(msg string, id primitive.ObjectID) models.MessageResponse {
	resp := models.MessageResponse{Message: msg}
	if !id.IsZero() {
		resp.ID = id.Hex()
	}
	return resp
}

// lookupStatus maps a FindOne error to 404 for a missing document and 500 otherwise
func lookupStatus(err error) int {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
