// Package main creates the DynamoDB tables and loads the sample customer
// data used by local stacks and demos.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cardpath/dispute-resolution-portal/internal/awsutil"
	"github.com/cardpath/dispute-resolution-portal/internal/config"
	"github.com/cardpath/dispute-resolution-portal/internal/ddb"
	"github.com/cardpath/dispute-resolution-portal/internal/models"
)

// seedRow mirrors the cards table's single-table layout: one header row per
// card, one row per transaction.
type seedRow struct {
	CustomerID   string       `dynamodbav:"customer_id"`
	CompositeKey string       `dynamodbav:"composite_key"`
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

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	env := config.MustLoad()
	ctx := context.Background()
	cfg, endpoint, err := awsutil.Load(ctx, env.Region)
	if err != nil {
		logger.Fatal("aws config", zap.Error(err))
	}
	client := awsutil.NewDynamoClient(cfg, endpoint)

	createCardsTable(ctx, client, env.CardsTable, logger)
	createCaseTable(ctx, client, env.CaseTable, logger)
	seedCards(ctx, client, env.CardsTable, logger)

	logger.Info("database initialization complete")
}

func createCardsTable(ctx context.Context, client *dynamodb.Client, name string, logger *zap.Logger) {
	createTable(ctx, client, logger, &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("customer_id"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("composite_key"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("customer_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("composite_key"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("transaction_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(ddb.TransactionIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("transaction_id"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	})
}

func createCaseTable(ctx context.Context, client *dynamodb.Client, name string, logger *zap.Logger) {
	// Both GSIs sort on created_at so "latest case first" queries are real
	// index order, not an accident of insertion.
	createTable(ctx, client, logger, &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("case_id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("case_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("transaction_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("customer_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("created_at"), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(ddb.TransactionIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("transaction_id"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("created_at"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
			{
				IndexName: aws.String(ddb.CustomerIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("customer_id"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("created_at"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	})
}

func createTable(ctx context.Context, client *dynamodb.Client, logger *zap.Logger, in *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, in)
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			logger.Info("table already exists", zap.String("table", *in.TableName))
			return
		}
		logger.Fatal("create table", zap.String("table", *in.TableName), zap.Error(err))
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: in.TableName}, 2*time.Minute); err != nil {
		logger.Fatal("wait for table", zap.String("table", *in.TableName), zap.Error(err))
	}
	logger.Info("table active", zap.String("table", *in.TableName))
}

func seedCards(ctx context.Context, client *dynamodb.Client, table string, logger *zap.Logger) {
	rows := []seedRow{
		{
			CustomerID:   "CUST001",
			CompositeKey: ddb.CardKey("1234"),
			CardNumber:   "1234",
			CardType:     "Visa",
			CardStatus:   "Active",
			Holder:       "John Doe",
			ExpiryDate:   "12/28",
		},
		{
			CustomerID:   "CUST001",
			CompositeKey: ddb.CardTxnKey("1234", "TXN001"),
			CardNumber:   "1234",
			CardType:     "Visa",
			CardStatus:   "Active",
			Holder:       "John Doe",
			ExpiryDate:   "12/28",
			TxnID:        "TXN001",
			Amount:       models.MustMoney("99.00"),
			Currency:     "USD",
			TxnDate:      "2024-01-15T10:00:00Z",
			Merchant:     "Netflix",
			Description:  "Monthly Subscription",
			TxnStatus:    "Posted",
		},
		{
			CustomerID:   "CUST001",
			CompositeKey: ddb.CardTxnKey("1234", "TXN002"),
			CardNumber:   "1234",
			CardType:     "Visa",
			CardStatus:   "Active",
			Holder:       "John Doe",
			ExpiryDate:   "12/28",
			TxnID:        "TXN002",
			Amount:       models.MustMoney("150.00"),
			Currency:     "USD",
			TxnDate:      "2024-01-20T14:30:00Z",
			Merchant:     "Amazon",
			Description:  "Electronics",
			TxnStatus:    "Posted",
		},
	}

	for _, row := range rows {
		item, err := attributevalue.MarshalMap(row)
		if err != nil {
			logger.Fatal("encode seed row", zap.String("key", row.CompositeKey), zap.Error(err))
		}
		if _, err := client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(table),
			Item:      item,
		}); err != nil {
			logger.Fatal("put seed row", zap.String("key", row.CompositeKey), zap.Error(err))
		}
		logger.Info("seeded", zap.String("composite_key", row.CompositeKey))
	}
}
