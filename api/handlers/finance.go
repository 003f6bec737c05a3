package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/api"
	"github.com/leoportal/leo-portal-api/config"
	"github.com/leoportal/leo-portal-api/databases"
	"github.com/leoportal/leo-portal-api/models"
	"github.com/leoportal/leo-portal-api/payments"
)

// Finance exported for testing purposes
type Finance struct {
	DB          databases.TransactionDatabase
	UDB         databases.UserDatabase
	Payments    payments.Provider
	DuesAmount  int64
	Currency    string
	RedirectURL string
}

// transactionFilter builds a filter from the type, category, from and to query
// parameters. A plain date in "to" includes that whole day.
func transactionFilter(q url.Values) (bson.M, error) {
	filter := bson.M{}
	if t := q.Get("type"); t != "" {
		if t != models.TransactionIncome && t != models.TransactionExpense {
			return nil, errors.New("type must be income or expense")
		}
		filter["type"] = t
	}
	if c := q.Get("category"); c != "" {
		filter["category"] = strings.ToLower(c)
	}
	date := bson.M{}
	if v := q.Get("from"); v != "" {
		from, err := parseDate(v)
		if err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		date["$gte"] = from.UTC()
	}
	if v := q.Get("to"); v != "" {
		to, err := parseDate(v)
		if err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
		if len(v) == len("2006-01-02") {
			to = to.Add(24 * time.Hour)
		}
		date["$lt"] = to.UTC()
	}
	if len(date) > 0 {
		filter["date"] = date
	}
	return filter, nil
}

func validateTransaction(req *models.TransactionRequest) string {
	if req.Type != models.TransactionIncome && req.Type != models.TransactionExpense {
		return "type must be income or expense"
	}
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if req.Category == "" {
		return "category is required"
	}
	if req.Amount <= 0 {
		return "amount must be greater than zero"
	}
	if req.Date.IsZero() {
		req.Date = time.Now()
	}
	req.Date = req.Date.UTC()
	return ""
}

// CreateTransactionHandler records an income or expense
func (f Finance) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateTransaction(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	txn := models.Transaction{
		Type:        req.Type,
		Category:    req.Category,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Date:        req.Date,
		ReceiptURL:  req.ReceiptURL,
		RecordedBy:  p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := f.DB.InsertOne(ctx, txn)
	if err != nil {
		config.ErrorStatus("failed to create transaction", http.StatusInternalServerError, w, err)
		return
	}
	txn.ID = insertedID(res)
	writeJSON(w, http.StatusCreated, txn)
}

// ListTransactionsHandler lists transactions newest first
func (f Finance) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := transactionFilter(q)
	if err != nil {
		config.ErrorStatus("invalid filter", http.StatusBadRequest, w, err)
		return
	}

	page := databases.NewPaginate(q)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	total, err := f.DB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count transactions", http.StatusInternalServerError, w, err)
		return
	}
	txns, err := f.DB.Find(ctx, filter, page.FindOptions().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		config.ErrorStatus("failed to get transactions", http.StatusInternalServerError, w, err)
		return
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, PaginatedResponse{Page: page.Page, Limit: page.Limit, TotalCount: total, Data: txns})
}

// TransactionByIDHandler returns a transaction given a transactionID
func (f Finance) TransactionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transaction_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	txn, err := f.DB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get transaction by ID", lookupStatus(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// UpdateTransactionHandler replaces the editable fields of a transaction
func (f Finance) UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transaction_id")
	if !ok {
		return
	}
	var req models.TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := validateTransaction(&req); msg != "" {
		config.ErrorStatus(msg, http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := f.DB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"type":        req.Type,
		"category":    req.Category,
		"amount":      req.Amount,
		"description": strings.TrimSpace(req.Description),
		"date":        req.Date,
		"receiptUrl":  req.ReceiptURL,
		"updatedAt":   time.Now().UTC(),
	}})
	if err != nil {
		config.ErrorStatus("failed to update transaction", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("transaction not found", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("transaction updated", id))
}

// DeleteTransactionHandler removes a transaction
func (f Finance) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transaction_id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := f.DB.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to delete transaction", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("transaction not found", http.StatusNotFound, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, message("transaction deleted", id))
}

// SummaryHandler totals income, expense and balance for the filtered range
func (f Finance) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := transactionFilter(r.URL.Query())
	if err != nil {
		config.ErrorStatus("invalid filter", http.StatusBadRequest, w, err)
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	txns, err := f.DB.Find(ctx, filter, options.Find().SetProjection(bson.M{"type": 1, "category": 1, "amount": 1}))
	if err != nil {
		config.ErrorStatus("failed to get transactions", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Summarize(txns))
}

// DuesCheckoutHandler starts a Stripe checkout for the caller's annual dues
func (f Finance) DuesCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	if f.Payments == nil || f.DuesAmount <= 0 {
		config.ErrorStatus("online dues payment is not available", http.StatusServiceUnavailable, w, payments.ErrNotConfigured)
		return
	}
	uID, err := primitive.ObjectIDFromHex(p.UserID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := f.UDB.FindOne(ctx, bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", lookupStatus(err), w, err)
		return
	}
	if user.DuesStatus == models.DuesPaid {
		config.ErrorStatus("dues are already paid", http.StatusConflict, w, nil)
		return
	}

	base := strings.TrimRight(f.RedirectURL, "/")
	checkout, err := f.Payments.CreateCheckout(r.Context(), payments.CheckoutRequest{
		UserID:      p.UserID,
		Email:       user.Email,
		AmountCents: f.DuesAmount,
		Currency:    f.Currency,
		SuccessURL:  base + "/finance/dues/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   base + "/finance/dues",
	})
	if err != nil {
		config.ErrorStatus("failed to start checkout", http.StatusBadGateway, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

// DuesConfirmHandler records a paid checkout as dues income and marks the member
// paid. Confirming the same session twice records it once.
func (f Finance) DuesConfirmHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.DuesConfirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		config.ErrorStatus("sessionId is required", http.StatusBadRequest, w, nil)
		return
	}
	if f.Payments == nil {
		config.ErrorStatus("online dues payment is not available", http.StatusServiceUnavailable, w, payments.ErrNotConfigured)
		return
	}

	payment, err := f.Payments.Confirm(r.Context(), req.SessionID)
	if err != nil {
		config.ErrorStatus("failed to confirm checkout", http.StatusBadGateway, w, err)
		return
	}
	if payment.UserID != p.UserID && !p.IsAdmin() {
		config.ErrorStatus("checkout belongs to another member", http.StatusForbidden, w, nil)
		return
	}
	if !payment.Paid {
		config.ErrorStatus("checkout is not paid", http.StatusUnprocessableEntity, w, nil)
		return
	}
	uID, err := primitive.ObjectIDFromHex(payment.UserID)
	if err != nil {
		config.ErrorStatus("checkout has no member reference", http.StatusUnprocessableEntity, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	txn := models.Transaction{
		Type:        models.TransactionIncome,
		Category:    models.CategoryDues,
		Amount:      payment.AmountCents,
		Description: "Membership dues",
		Date:        now,
		UserID:      payment.UserID,
		ExternalRef: payment.SessionID,
		RecordedBy:  p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	recorded := true
	if _, err := f.DB.InsertOne(ctx, txn); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("failed to record dues payment", http.StatusInternalServerError, w, err)
			return
		}
		recorded = false
	}

	paidAt := primitive.NewDateTimeFromTime(now)
	_, err = f.UDB.UpdateOne(ctx, bson.M{"_id": uID}, bson.M{"$set": bson.M{
		"duesStatus": models.DuesPaid,
		"duesPaidAt": paidAt,
		"updatedAt":  paidAt,
	}})
	if err != nil {
		config.ErrorStatus("failed to mark dues paid", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("dues confirmed", "userId", payment.UserID, "sessionId", payment.SessionID, "newRecord", recorded)
	if !recorded {
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: "dues payment already recorded"})
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "dues payment recorded"})
}
