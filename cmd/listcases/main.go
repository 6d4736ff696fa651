// Package main lists the dispute cases belonging to the calling customer.
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

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
}

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
	app := &App{
		env:     env,
		manager: dispute.NewManager(repo, decision.NewEngine(env.Decision), logger),
	}
	lambda.Start(app.handler)
}

// handler lists cases for the authenticated customer, latest first.
func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	customerID, err := authz.CustomerFromRequest(req, a.env.DevBypassAuth)
	if err != nil {
		return httpx.Fail(http.StatusUnauthorized, "UNAUTHORIZED", "missing customer identity")
	}
	if err := validate.CustomerID(customerID); err != nil {
		return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), err.Error())
	}

	cases, err := a.manager.GetCasesForCustomer(ctx, customerID)
	if err != nil {
		return httpx.FailErr(err)
	}
	return httpx.OK(http.StatusOK, cases, "")
}
