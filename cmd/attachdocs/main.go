// Package main attaches documents to an existing case: it records the
// document pointers and hands back presigned upload URLs.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cardpath/dispute-resolution-portal/internal/api"
	"github.com/cardpath/dispute-resolution-portal/internal/awsutil"
	"github.com/cardpath/dispute-resolution-portal/internal/config"
	"github.com/cardpath/dispute-resolution-portal/internal/ddb"
	"github.com/cardpath/dispute-resolution-portal/internal/decision"
	"github.com/cardpath/dispute-resolution-portal/internal/dispute"
	"github.com/cardpath/dispute-resolution-portal/internal/fault"
	"github.com/cardpath/dispute-resolution-portal/internal/httpx"
	"github.com/cardpath/dispute-resolution-portal/internal/models"
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

// handler validates the request, records the documents on the case, and
// returns one presigned upload slot per document.
func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	caseID := req.PathParameters["case_id"]
	if err := validate.CaseID(caseID); err != nil {
		return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), err.Error())
	}

	var body api.AttachDocumentsRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), "invalid json")
	}
	if err := validate.DocCount(len(body.Documents)); err != nil {
		return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), err.Error())
	}
	for _, d := range body.Documents {
		if err := validate.DocFilename(d.Filename); err != nil {
			return httpx.Fail(http.StatusBadRequest, string(fault.KindValidation), err.Error())
		}
	}

	now := time.Now().UTC()
	docs := make([]models.Document, 0, len(body.Documents))
	grants := make([]api.DocumentGrant, 0, len(body.Documents))
	for _, d := range body.Documents {
		key := s3io.DocKey(caseID, d.Filename, now)
		uploadURL, err := s3io.PresignUpload(ctx, a.s3p, a.env.Bucket, key, d.ContentType, caseID, d.Filename, a.env.PresignTTL)
		if err != nil {
			a.logger.Error("presign upload failed", zap.String("case_id", caseID), zap.Error(err))
			return httpx.Fail(http.StatusInternalServerError, string(fault.KindConnectivity), "presign error")
		}
		docs = append(docs, models.Document{
			Filename: d.Filename,
			S3Key:    key,
			URL:      s3io.ObjectURL(a.env.Bucket, key),
		})
		grants = append(grants, api.DocumentGrant{
			Filename:  d.Filename,
			S3Key:     key,
			UploadURL: uploadURL,
			ExpiresIn: int(a.env.PresignTTL.Seconds()),
		})
	}

	if err := a.manager.AttachDocuments(ctx, caseID, docs); err != nil {
		return httpx.FailErr(err)
	}

	return httpx.OK(http.StatusOK, api.AttachDocumentsResponse{CaseID: caseID, Grants: grants},
		"documents recorded")
}
