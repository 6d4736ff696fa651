// Package main files a dispute for a verified transaction and returns the
// decided case.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cardpath/dispute-resolution-portal/internal/api"
	"github.com/cardpath/dispute-resolution-portal/internal/authz"
	"github.com/cardpath/dispute-resolution-portal/internal/awsutil"
	"github.com/cardpath/dispute-resolution-portal/internal/config"
	"github.com/cardpath/dispute-resolution-portal/internal/ddb"
	"github.com/cardpath/dispute-resolution-portal/internal/decision"
	"github.com/cardpath/dispute-resolution-portal/internal/dispute"
	"github.com/cardpath/dispute-resolution-portal/internal/fault"
	"github.com/cardpath/dispute-resolution-portal/internal/httpx"
	"github.com/cardpath/dispute-resolution-portal/internal/validate"
)

// App holds the application state, including configuration and AWS clients.
type App struct {
	env     config.Env
	manager *dispute.Manager
	logger  *zap.Logger
}

// main initializes the app and starts the Lambda handler.
func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	env := config.MustLoad()
	cfg, endpoint, err := awsutil.Load(context.Background(), env.Region)
	if err != nil {
		logger.Fatal("aws config", zap.Error(err))
	}

	repo := ddb.New(
		awsutil.NewDynamoClient(cfg, endpoint),
		env.CardsTable, env.CaseTable,
		env.RetryPolicy(), logger,
	)
	engine := decision.NewEngine(env.Decision)

	app := &App{
		env:     env,
		manager: dispute.NewManager(repo, engine, logger),
		logger:  logger,
	}
	lambda.Start(app.handler)
}

// handler processes the incoming API Gateway request to file a dispute.
func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	customerID, err := authz.CustomerFromRequest(req, a.env.DevBypassAuth)
	if err != nil {
		return httpx.Fail(http.StatusUnauthorized, "UNAUTHORIZED", "missing customer identity")
	}

	var body api.FileDisputeRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), "invalid json")
	}
	if err := validate.CustomerID(customerID); err != nil {
		return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), err.Error())
	}
	if err := validate.TransactionID(body.TransactionID); err != nil {
		return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), err.Error())
	}

	filedAt := time.Now().UTC()
	if body.FiledAt != "" {
		t, err := decision.ParseDate(body.FiledAt)
		if err != nil {
			return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), "invalid filed_at")
		}
		filedAt = t
	}

	res := a.manager.FileDispute(ctx, customerID, body.TransactionID, filedAt)
	if !res.Success {
		if res.ErrorKind == fault.KindDuplicateCase {
			return httpx.Fail(http.StatusConflict, string(res.ErrorKind),
				"case already exists: "+res.ExistingCaseID)
		}
		return httpx.Fail(httpx.StatusForKind(res.ErrorKind), string(res.ErrorKind), res.Message)
	}
	return httpx.OK(http.StatusCreated, res.Case, "dispute case created")
}
