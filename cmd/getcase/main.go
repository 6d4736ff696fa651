// Package main returns one dispute case by id, with fresh download links for
// its attached documents.
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cardpath/dispute-resolution-portal/internal/awsutil"
	"github.com/cardpath/dispute-resolution-portal/internal/config"
	"github.com/cardpath/dispute-resolution-portal/internal/ddb"
	"github.com/cardpath/dispute-resolution-portal/internal/decision"
	"github.com/cardpath/dispute-resolution-portal/internal/dispute"
	"github.com/cardpath/dispute-resolution-portal/internal/fault"
	"github.com/cardpath/dispute-resolution-portal/internal/httpx"
	"github.com/cardpath/dispute-resolution-portal/internal/s3io"
	"github.com/cardpath/dispute-resolution-portal/internal/validate"
)

// App holds the application state, including configuration and AWS clients.
type App struct {
	env     config.Env
	manager *dispute.Manager
	s3p     *s3.PresignClient
	logger  *zap.Logger
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
		s3p:     s3.NewPresignClient(awsutil.NewS3Client(cfg, endpoint)),
		logger:  logger,
	}
	lambda.Start(app.handler)
}

// handler loads the case named by the path parameter.
func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	caseID := req.PathParameters["case_id"]
	if err := validate.CaseID(caseID); err != nil {
		return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), err.Error())
	}

	c, err := a.manager.GetCase(ctx, caseID)
	if err != nil {
		return httpx.FailErr(err)
	}

	// Stored URLs are s3:// locators; hand the client usable links instead.
	for i := range c.Documents {
		url, perr := s3io.PresignDownload(ctx, a.s3p, a.env.Bucket, c.Documents[i].S3Key, a.env.PresignTTL)
		if perr != nil {
			a.logger.Warn("presign download failed",
				zap.String("case_id", caseID), zap.String("s3_key", c.Documents[i].S3Key), zap.Error(perr))
			continue
		}
		c.Documents[i].URL = url
	}

	return httpx.OK(http.StatusOK, c, "")
}
