package ddb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cardpath/dispute-resolution-portal/internal/fault"
	"github.com/cardpath/dispute-resolution-portal/internal/models"
	"github.com/cardpath/dispute-resolution-portal/internal/retry"
)

const (
	testCardsTable = "cards_test"
	testCaseTable  = "cases_test"
)

func newTestRepo(t *testing.T) (*Repo, *fakeDynamo) {
	t.Helper()
	fake := newFakeDynamo()
	policy := retry.NewPolicy(3, time.Millisecond).WithSleep(
		func(context.Context, time.Duration) error { return nil })
	return New(fake, testCardsTable, testCaseTable, policy, zap.NewNop()), fake
}

func seedCardRows(t *testing.T, fake *fakeDynamo) {
	t.Helper()
	rows := []cardRow{
		{
			CustomerID:   "CUST001",
			CompositeKey: CardKey("1234"),
			CardNumber:   "1234",
			CardType:     "Visa",
			CardStatus:   "Active",
			Holder:       "John Doe",
			ExpiryDate:   "12/28",
		},
		{
			CustomerID:   "CUST001",
			CompositeKey: CardTxnKey("1234", "TXN001"),
			CardNumber:   "1234",
			Holder:       "John Doe",
			TxnID:        "TXN001",
			Amount:       models.MustMoney("99.00"),
			Currency:     "USD",
			TxnDate:      "2024-01-15T10:00:00Z",
			Merchant:     "Netflix",
			TxnStatus:    "Posted",
		},
		{
			CustomerID:   "CUST001",
			CompositeKey: CardTxnKey("1234", "TXN002"),
			CardNumber:   "1234",
			Holder:       "John Doe",
			TxnID:        "TXN002",
			Amount:       models.MustMoney("150.00"),
			Currency:     "USD",
			TxnDate:      "2024-01-20T14:30:00Z",
			Merchant:     "Amazon",
			TxnStatus:    "Posted",
		},
	}
	for _, row := range rows {
		item, err := attributevalue.MarshalMap(row)
		require.NoError(t, err)
		fake.cards = append(fake.cards, item)
	}
}

func sampleCase(id, txnID string, status models.DisputeStatus, createdAt string) models.Case {
	return models.Case{
		CaseID:            id,
		CustomerID:        "CUST001",
		CardNumber:        "1234",
		TransactionID:     txnID,
		TransactionDate:   "2024-01-20T14:30:00Z",
		TransactionAmount: models.MustMoney("150.00"),
		Merchant:          "Amazon",
		DisputeStatus:     status,
		DecisionReason:    "test case",
		CreditType:        models.CreditTemporary,
		CreditAmount:      models.MustMoney("150.00"),
		AutoDecided:       true,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

func TestGetCustomerGroupsCardsAndTransactions(t *testing.T) {
	repo, fake := newTestRepo(t)
	seedCardRows(t, fake)

	cust, err := repo.GetCustomer(context.Background(), "CUST001")
	require.NoError(t, err)

	assert.Equal(t, "John Doe", cust.Name)
	require.Len(t, cust.Cards, 1)
	assert.Len(t, cust.Cards[0].Transactions, 2)
}

func TestGetCustomerNotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetCustomer(context.Background(), "NOBODY")
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

func TestGetCardTransactionsByPrefix(t *testing.T) {
	repo, fake := newTestRepo(t)
	seedCardRows(t, fake)

	card, err := repo.GetCardTransactions(context.Background(), "CUST001", "1234")
	require.NoError(t, err)
	assert.Equal(t, "Visa", card.CardType)
	assert.Len(t, card.Transactions, 2)

	_, err = repo.GetCardTransactions(context.Background(), "CUST001", "9999")
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

func TestGetTransactionByIndex(t *testing.T) {
	repo, fake := newTestRepo(t)
	seedCardRows(t, fake)

	txn, err := repo.GetTransaction(context.Background(), "TXN002")
	require.NoError(t, err)
	assert.Equal(t, "CUST001", txn.CustomerID)
	assert.Equal(t, "1234", txn.CardNumber)
	assert.True(t, txn.Amount.Equal(models.MustMoney("150.00").Decimal))

	_, err = repo.GetTransaction(context.Background(), "TXN999")
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

func TestCreateCaseRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	c := sampleCase("01CASEAAAAAAAAAAAAAAAAAAAA", "TXN002", models.StatusForwardedToAcquirer, "2025-06-01T00:00:00Z")

	require.NoError(t, repo.CreateCase(context.Background(), c))

	got, err := repo.GetCase(context.Background(), c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, c.DisputeStatus, got.DisputeStatus)
	assert.Equal(t, c.CreditType, got.CreditType)
	assert.True(t, got.CreditAmount.Equal(c.CreditAmount.Decimal))
	assert.True(t, got.TransactionAmount.Equal(c.TransactionAmount.Decimal))
}

func TestCreateCaseBlocksSecondOpenCase(t *testing.T) {
	repo, _ := newTestRepo(t)
	first := sampleCase("01CASEAAAAAAAAAAAAAAAAAAAA", "TXN002", models.StatusForwardedToAcquirer, "2025-06-01T00:00:00Z")
	second := sampleCase("01CASEBBBBBBBBBBBBBBBBBBBB", "TXN002", models.StatusForwardedToAcquirer, "2025-06-02T00:00:00Z")

	require.NoError(t, repo.CreateCase(context.Background(), first))

	err := repo.CreateCase(context.Background(), second)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindDuplicateCase))

	// the loser must not have been written
	_, err = repo.GetCase(context.Background(), second.CaseID)
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

func TestCreateCaseAllowsRefilingAfterTerminalCase(t *testing.T) {
	repo, _ := newTestRepo(t)
	closed := sampleCase("01CASEAAAAAAAAAAAAAAAAAAAA", "TXN001", models.StatusRejectedTimeBarred, "2025-06-01T00:00:00Z")
	reopened := sampleCase("01CASEBBBBBBBBBBBBBBBBBBBB", "TXN001", models.StatusForwardedToAcquirer, "2025-06-02T00:00:00Z")

	require.NoError(t, repo.CreateCase(context.Background(), closed))
	require.NoError(t, repo.CreateCase(context.Background(), reopened))
}

func TestGetOpenCaseForTransaction(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	open, err := repo.GetOpenCaseForTransaction(ctx, "TXN002")
	require.NoError(t, err)
	assert.Nil(t, open, "no case yet")

	closed := sampleCase("01CASEAAAAAAAAAAAAAAAAAAAA", "TXN001", models.StatusResolvedCustomer, "2025-06-01T00:00:00Z")
	require.NoError(t, repo.CreateCase(ctx, closed))

	open, err = repo.GetOpenCaseForTransaction(ctx, "TXN001")
	require.NoError(t, err)
	assert.Nil(t, open, "terminal case does not block")

	forwarded := sampleCase("01CASEBBBBBBBBBBBBBBBBBBBB", "TXN002", models.StatusForwardedToAcquirer, "2025-06-02T00:00:00Z")
	require.NoError(t, repo.CreateCase(ctx, forwarded))

	open, err = repo.GetOpenCaseForTransaction(ctx, "TXN002")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, forwarded.CaseID, open.CaseID)
}

func TestGetOpenCaseForTransactionWarnsOnMultipleOpen(t *testing.T) {
	fake := newFakeDynamo()
	core, logs := observer.New(zap.WarnLevel)
	policy := retry.NewPolicy(3, time.Millisecond).WithSleep(
		func(context.Context, time.Duration) error { return nil })
	repo := New(fake, testCardsTable, testCaseTable, policy, zap.New(core))

	// Two open cases for one transaction cannot be created through the
	// conditional write; plant them directly to exercise the read-side
	// handling of an already-corrupted table.
	older := sampleCase("01CASEAAAAAAAAAAAAAAAAAAAA", "TXN002", models.StatusForwardedToAcquirer, "2025-06-01T00:00:00Z")
	newer := sampleCase("01CASEBBBBBBBBBBBBBBBBBBBB", "TXN002", models.StatusForwardedToAcquirer, "2025-06-02T00:00:00Z")
	for _, c := range []models.Case{older, newer} {
		item, err := attributevalue.MarshalMap(c)
		require.NoError(t, err)
		fake.cases[c.CaseID] = item
	}

	open, err := repo.GetOpenCaseForTransaction(context.Background(), "TXN002")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, newer.CaseID, open.CaseID, "the latest open case still blocks")

	warns := logs.FilterMessage("consistency warning: multiple open cases for one transaction").All()
	require.Len(t, warns, 1)
	assert.Equal(t, "TXN002", warns[0].ContextMap()["transaction_id"])
}

func TestListCasesByCustomerLatestFirst(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	older := sampleCase("01CASEAAAAAAAAAAAAAAAAAAAA", "TXN001", models.StatusResolvedCustomer, "2025-06-01T00:00:00Z")
	newer := sampleCase("01CASEBBBBBBBBBBBBBBBBBBBB", "TXN002", models.StatusForwardedToAcquirer, "2025-06-02T00:00:00Z")
	require.NoError(t, repo.CreateCase(ctx, older))
	require.NoError(t, repo.CreateCase(ctx, newer))

	cases, err := repo.ListCasesByCustomer(ctx, "CUST001", 50)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, newer.CaseID, cases[0].CaseID)
	assert.Equal(t, older.CaseID, cases[1].CaseID)
}

func TestUpdateCaseDocuments(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	c := sampleCase("01CASEAAAAAAAAAAAAAAAAAAAA", "TXN002", models.StatusForwardedToAcquirer, "2025-06-01T00:00:00Z")
	require.NoError(t, repo.CreateCase(ctx, c))

	docs := []models.Document{{
		Filename: "receipt.pdf",
		S3Key:    "cases/" + c.CaseID + "/documents/20250601_000000_abcd1234_receipt.pdf",
		URL:      "s3://bucket/receipt",
	}}
	require.NoError(t, repo.UpdateCaseDocuments(ctx, c.CaseID, docs))

	got, err := repo.GetCase(ctx, c.CaseID)
	require.NoError(t, err)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "receipt.pdf", got.Documents[0].Filename)
	assert.NotEqual(t, c.UpdatedAt, got.UpdatedAt)
}

func TestUpdateCaseDocumentsMissingCase(t *testing.T) {
	repo, _ := newTestRepo(t)

	err := repo.UpdateCaseDocuments(context.Background(), "01CASEZZZZZZZZZZZZZZZZZZZZ", []models.Document{{Filename: "a.pdf"}})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

func TestCreateCaseRetriesThrottlingOnce(t *testing.T) {
	repo, fake := newTestRepo(t)
	fake.injectErr(&smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"})

	c := sampleCase("01CASEAAAAAAAAAAAAAAAAAAAA", "TXN002", models.StatusForwardedToAcquirer, "2025-06-01T00:00:00Z")
	require.NoError(t, repo.CreateCase(context.Background(), c))

	// throttled attempt plus the successful one; the case lands exactly once
	assert.Equal(t, 1, fake.writeCalls)
	got, err := repo.GetCase(context.Background(), c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, c.CaseID, got.CaseID)
}

func TestCreateCaseSurfacesThrottleExhaustion(t *testing.T) {
	repo, fake := newTestRepo(t)
	throttle := &smithy.GenericAPIError{Code: "ThrottlingException"}
	fake.injectErr(throttle, throttle, throttle)

	c := sampleCase("01CASEAAAAAAAAAAAAAAAAAAAA", "TXN002", models.StatusForwardedToAcquirer, "2025-06-01T00:00:00Z")
	err := repo.CreateCase(context.Background(), c)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindThrottleExhausted))
}

func TestGetTransactionWrapsConnectivityFailures(t *testing.T) {
	repo, fake := newTestRepo(t)
	fake.injectErr(&smithy.GenericAPIError{Code: "InternalServerError"})

	_, err := repo.GetTransaction(context.Background(), "TXN001")
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindConnectivity))
}
