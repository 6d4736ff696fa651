// Package ddb provides the DynamoDB persistence gateway for the dispute core.
// It is the sole writer of durable state: customer/card/transaction reference
// data in one table, dispute cases in another. All numeric fields cross the
// wire as exact decimals, and every call runs under the throttle retry policy.
package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/cardpath/dispute-resolution-portal/internal/fault"
	"github.com/cardpath/dispute-resolution-portal/internal/models"
	"github.com/cardpath/dispute-resolution-portal/internal/retry"
)

// Secondary index names shared by both tables.
const (
	TransactionIndex = "TransactionIndex"
	CustomerIndex    = "CustomerIndex"
)

// DynamoAPI is the slice of the DynamoDB client the gateway needs. Narrowed
// to an interface so tests can run against an in-memory fake.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Repo is the persistence gateway over the cards/transactions table and the
// case table.
type Repo struct {
	db         DynamoAPI
	cardsTable string
	caseTable  string
	policy     retry.Policy
	log        *zap.Logger
}

// New builds a gateway. The retry policy governs every DynamoDB call.
func New(db DynamoAPI, cardsTable, caseTable string, policy retry.Policy, log *zap.Logger) *Repo {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repo{db: db, cardsTable: cardsTable, caseTable: caseTable, policy: policy, log: log}
}

// NowISO returns the current time in ISO8601 format.
func NowISO() string { return time.Now().UTC().Format(time.RFC3339) }

// cardRow is the flat single-table record in the cards table. A row with an
// empty transaction id describes the card itself; rows with a transaction id
// carry one transaction each.
type cardRow struct {
	CustomerID   string       `dynamodbav:"customer_id"`
	CompositeKey string       `dynamodbav:"composite_key"` // CARD#<num> or CARD#<num>#<txn>
	CardNumber   string       `dynamodbav:"card_number"`
	CardType     string       `dynamodbav:"card_type"`
	CardStatus   string       `dynamodbav:"card_status"`
	Holder       string       `dynamodbav:"cardholder_name"`
	ExpiryDate   string       `dynamodbav:"expiry_date"`
	TxnID        string       `dynamodbav:"transaction_id,omitempty"`
	Amount       models.Money `dynamodbav:"amount,omitempty"`
	Currency     string       `dynamodbav:"currency,omitempty"`
	TxnDate      string       `dynamodbav:"transaction_date,omitempty"`
	Merchant     string       `dynamodbav:"merchant,omitempty"`
	Description  string       `dynamodbav:"description,omitempty"`
	TxnStatus    string       `dynamodbav:"status,omitempty"`
}

func (row cardRow) transaction() models.Transaction {
	return models.Transaction{
		TransactionID: row.TxnID,
		CustomerID:    row.CustomerID,
		CardNumber:    row.CardNumber,
		Amount:        row.Amount,
		Currency:      row.Currency,
		Date:          row.TxnDate,
		Merchant:      row.Merchant,
		Description:   row.Description,
		Status:        row.TxnStatus,
	}
}

// CardKey builds the sort key for a card header row.
func CardKey(cardNumber string) string { return fmt.Sprintf("CARD#%s", cardNumber) }

// CardTxnKey builds the sort key for a transaction row under a card.
func CardTxnKey(cardNumber, txnID string) string {
	return fmt.Sprintf("CARD#%s#%s", cardNumber, txnID)
}

// txnGuardKey is the case-table key of the per-transaction guard item that
// enforces at most one open case per transaction via a conditional write.
func txnGuardKey(txnID string) string { return fmt.Sprintf("TXN#%s", txnID) }

// guardItem is the marker written alongside each case. It carries no index
// key attributes on purpose, so it never shows up in GSI queries.
type guardItem struct {
	CaseID     string `dynamodbav:"case_id"` // TXN#<transaction_id>
	OpenCaseID string `dynamodbav:"open_case_id"`
	CaseOpen   bool   `dynamodbav:"case_open"`
	UpdatedAt  string `dynamodbav:"updated_at"`
}

// GetCustomer loads a customer with all cards and their transactions, grouped
// from the single-table rows.
func (r *Repo) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	rows, err := r.queryCards(ctx, customerID, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fault.New(fault.KindNotFound, "customer %s not found", customerID)
	}

	byCard := map[string]*models.Card{}
	var order []string
	for _, row := range rows {
		card, ok := byCard[row.CardNumber]
		if !ok {
			card = &models.Card{
				CardNumber: row.CardNumber,
				CardType:   row.CardType,
				CardStatus: row.CardStatus,
				Holder:     row.Holder,
				ExpiryDate: row.ExpiryDate,
			}
			byCard[row.CardNumber] = card
			order = append(order, row.CardNumber)
		}
		if row.TxnID != "" {
			card.Transactions = append(card.Transactions, row.transaction())
		}
	}

	cust := &models.Customer{CustomerID: customerID, Name: rows[0].Holder}
	for _, num := range order {
		cust.Cards = append(cust.Cards, *byCard[num])
	}
	r.log.Info("customer loaded", zap.String("customer_id", customerID), zap.Int("cards", len(cust.Cards)))
	return cust, nil
}

// GetCardTransactions loads one card and its transactions by composite-key
// prefix.
func (r *Repo) GetCardTransactions(ctx context.Context, customerID, cardNumber string) (*models.Card, error) {
	rows, err := r.queryCards(ctx, customerID, CardKey(cardNumber))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fault.New(fault.KindNotFound, "card %s not found for customer %s", cardNumber, customerID)
	}

	card := &models.Card{
		CardNumber: cardNumber,
		CardType:   rows[0].CardType,
		CardStatus: rows[0].CardStatus,
		Holder:     rows[0].Holder,
		ExpiryDate: rows[0].ExpiryDate,
	}
	for _, row := range rows {
		if row.TxnID != "" {
			card.Transactions = append(card.Transactions, row.transaction())
		}
	}
	return card, nil
}

// GetTransaction resolves a transaction by id through the cards table's
// transaction index.
func (r *Repo) GetTransaction(ctx context.Context, txnID string) (*models.Transaction, error) {
	var out *dynamodb.QueryOutput
	err := r.do(ctx, func(ctx context.Context) error {
		var qerr error
		out, qerr = r.db.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.cardsTable),
			IndexName:              aws.String(TransactionIndex),
			KeyConditionExpression: aws.String("transaction_id = :t"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t": &types.AttributeValueMemberS{Value: txnID},
			},
		})
		return qerr
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fault.New(fault.KindNotFound, "transaction %s not found", txnID)
	}

	var row cardRow
	if err := attributevalue.UnmarshalMap(out.Items[0], &row); err != nil {
		return nil, fault.Wrap(fault.KindValidation, err, "decode transaction %s", txnID)
	}
	txn := row.transaction()
	return &txn, nil
}

// GetCase loads a case by id.
func (r *Repo) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	var out *dynamodb.GetItemOutput
	err := r.do(ctx, func(ctx context.Context) error {
		var gerr error
		out, gerr = r.db.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(r.caseTable),
			Key: map[string]types.AttributeValue{
				"case_id": &types.AttributeValueMemberS{Value: caseID},
			},
		})
		return gerr
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fault.New(fault.KindNotFound, "case %s not found", caseID)
	}

	var c models.Case
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fault.Wrap(fault.KindValidation, err, "decode case %s", caseID)
	}
	return &c, nil
}

// GetOpenCaseForTransaction returns the most recent non-terminal case for a
// transaction, or nil when none is open. More than one open case should be
// impossible; when it happens anyway the extras are logged as a consistency
// warning and the latest still blocks creation.
func (r *Repo) GetOpenCaseForTransaction(ctx context.Context, txnID string) (*models.Case, error) {
	var out *dynamodb.QueryOutput
	err := r.do(ctx, func(ctx context.Context) error {
		var qerr error
		out, qerr = r.db.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.caseTable),
			IndexName:              aws.String(TransactionIndex),
			KeyConditionExpression: aws.String("transaction_id = :t"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t": &types.AttributeValueMemberS{Value: txnID},
			},
			ScanIndexForward: aws.Bool(false), // latest first
		})
		return qerr
	})
	if err != nil {
		return nil, err
	}

	var open []models.Case
	for _, item := range out.Items {
		var c models.Case
		if err := attributevalue.UnmarshalMap(item, &c); err != nil {
			return nil, fault.Wrap(fault.KindValidation, err, "decode case for transaction %s", txnID)
		}
		if c.Open() {
			open = append(open, c)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}
	if len(open) > 1 {
		ids := make([]string, len(open))
		for i, c := range open {
			ids[i] = c.CaseID
		}
		r.log.Warn("consistency warning: multiple open cases for one transaction",
			zap.String("transaction_id", txnID), zap.Strings("case_ids", ids))
	}
	return &open[0], nil
}

// CreateCase persists a new case. The write is a single transaction pairing
// the case item with a per-transaction guard item conditioned on no open case
// existing, so the one-open-case invariant holds even when two requests race
// past the read-side duplicate check.
func (r *Repo) CreateCase(ctx context.Context, c models.Case) error {
	caseItem, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fault.Wrap(fault.KindValidation, err, "encode case %s", c.CaseID)
	}
	guard, err := attributevalue.MarshalMap(guardItem{
		CaseID:     txnGuardKey(c.TransactionID),
		OpenCaseID: c.CaseID,
		CaseOpen:   c.Open(),
		UpdatedAt:  c.CreatedAt,
	})
	if err != nil {
		return fault.Wrap(fault.KindValidation, err, "encode guard for transaction %s", c.TransactionID)
	}

	err = r.do(ctx, func(ctx context.Context) error {
		_, terr := r.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: []types.TransactWriteItem{
				{
					Put: &types.Put{
						TableName:           aws.String(r.caseTable),
						Item:                guard,
						ConditionExpression: aws.String("attribute_not_exists(case_id) OR case_open = :closed"),
						ExpressionAttributeValues: map[string]types.AttributeValue{
							":closed": &types.AttributeValueMemberBOOL{Value: false},
						},
					},
				},
				{
					Put: &types.Put{
						TableName:           aws.String(r.caseTable),
						Item:                caseItem,
						ConditionExpression: aws.String("attribute_not_exists(case_id)"),
					},
				},
			},
		})
		return terr
	})
	if err != nil {
		if conditionFailed(err) {
			return fault.Wrap(fault.KindDuplicateCase, err,
				"an open case already exists for transaction %s", c.TransactionID)
		}
		return err
	}

	r.log.Info("case created",
		zap.String("case_id", c.CaseID),
		zap.String("transaction_id", c.TransactionID),
		zap.String("status", string(c.DisputeStatus)))
	return nil
}

// ListCasesByCustomer returns a customer's cases, latest first.
func (r *Repo) ListCasesByCustomer(ctx context.Context, customerID string, limit int32) ([]models.Case, error) {
	var out *dynamodb.QueryOutput
	err := r.do(ctx, func(ctx context.Context) error {
		var qerr error
		out, qerr = r.db.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.caseTable),
			IndexName:              aws.String(CustomerIndex),
			KeyConditionExpression: aws.String("customer_id = :c"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":c": &types.AttributeValueMemberS{Value: customerID},
			},
			Limit:            aws.Int32(limit),
			ScanIndexForward: aws.Bool(false),
		})
		return qerr
	})
	if err != nil {
		return nil, err
	}

	cases := make([]models.Case, 0, len(out.Items))
	for _, item := range out.Items {
		var c models.Case
		if err := attributevalue.UnmarshalMap(item, &c); err != nil {
			return nil, fault.Wrap(fault.KindValidation, err, "decode case for customer %s", customerID)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// UpdateCaseDocuments appends document records to an existing case and bumps
// its updated timestamp.
func (r *Repo) UpdateCaseDocuments(ctx context.Context, caseID string, docs []models.Document) error {
	list, err := attributevalue.MarshalList(docs)
	if err != nil {
		return fault.Wrap(fault.KindValidation, err, "encode documents for case %s", caseID)
	}

	err = r.do(ctx, func(ctx context.Context) error {
		_, uerr := r.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(r.caseTable),
			Key: map[string]types.AttributeValue{
				"case_id": &types.AttributeValueMemberS{Value: caseID},
			},
			ConditionExpression: aws.String("attribute_exists(case_id)"),
			UpdateExpression:    aws.String("SET documents = list_append(if_not_exists(documents, :empty), :docs), updated_at = :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":docs":  &types.AttributeValueMemberL{Value: list},
				":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
				":now":   &types.AttributeValueMemberS{Value: NowISO()},
			},
		})
		return uerr
	})
	if err != nil {
		if conditionFailed(err) {
			return fault.New(fault.KindNotFound, "case %s not found", caseID)
		}
		return err
	}

	r.log.Info("documents attached", zap.String("case_id", caseID), zap.Int("count", len(docs)))
	return nil
}

// queryCards runs a partition query against the cards table, optionally
// narrowed by a composite-key prefix.
func (r *Repo) queryCards(ctx context.Context, customerID, skPrefix string) ([]cardRow, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.cardsTable),
		KeyConditionExpression: aws.String("customer_id = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: customerID},
		},
	}
	if skPrefix != "" {
		in.KeyConditionExpression = aws.String("customer_id = :c AND begins_with(composite_key, :p)")
		in.ExpressionAttributeValues[":p"] = &types.AttributeValueMemberS{Value: skPrefix}
	}

	var out *dynamodb.QueryOutput
	err := r.do(ctx, func(ctx context.Context) error {
		var qerr error
		out, qerr = r.db.Query(ctx, in)
		return qerr
	})
	if err != nil {
		return nil, err
	}

	rows := make([]cardRow, 0, len(out.Items))
	for _, item := range out.Items {
		var row cardRow
		if err := attributevalue.UnmarshalMap(item, &row); err != nil {
			return nil, fault.Wrap(fault.KindValidation, err, "decode card row for customer %s", customerID)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// do runs one DynamoDB call under the retry policy and classifies whatever
// error is left once the budget is spent.
func (r *Repo) do(ctx context.Context, op func(context.Context) error) error {
	err := r.policy.Do(ctx, op)
	switch {
	case err == nil:
		return nil
	case retry.Throttled(err):
		r.log.Warn("throttle retries exhausted", zap.Error(err))
		return fault.Wrap(fault.KindThrottleExhausted, err, "store throttling persisted past retry budget")
	case conditionFailed(err):
		// surfaced unclassified; callers map it to their own kind
		return err
	default:
		return fault.Wrap(fault.KindConnectivity, err, "store call failed")
	}
}

// conditionFailed reports whether err is a conditional-write rejection,
// either directly or inside a cancelled transaction.
func conditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tc *types.TransactionCanceledException
	if errors.As(err, &tc) {
		for _, reason := range tc.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
