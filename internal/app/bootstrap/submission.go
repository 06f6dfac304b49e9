package bootstrap

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
	"github.com/wolfman30/careconnect-platform/internal/submission"
	"github.com/wolfman30/careconnect-platform/internal/wizard"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

const (
	SubmitModeSimulated = "simulated"
	SubmitModeHTTP      = "http"
	SubmitModeSQS       = "sqs"
)

// SubmitDeps carries the optional clients a submitter may need.
type SubmitDeps struct {
	HTTPClient *http.Client
	SQS        *sqs.Client
	Receipts   *submission.ReceiptRepository
}

// BuildSubmitter selects the backend transport for one flow. prefix names the
// receipt references the simulator issues.
func BuildSubmitter[T any](cfg *appconfig.Config, deps SubmitDeps, prefix string, logger *logging.Logger) (wizard.Submitter[T], error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var next wizard.Submitter[T]
	mode := strings.ToLower(strings.TrimSpace(cfg.SubmitMode))
	switch mode {
	case "", SubmitModeSimulated:
		next = submission.NewSimulated[T](prefix, logger).
			WithDelay(cfg.SubmitDelay).
			WithFailureRate(cfg.SubmitFailureRate)
	case SubmitModeHTTP:
		if strings.TrimSpace(cfg.SubmitBaseURL) == "" {
			return nil, fmt.Errorf("bootstrap: SUBMIT_BASE_URL required for http mode")
		}
		next = submission.NewHTTP[T](cfg.SubmitBaseURL, logger).
			WithHTTPClient(deps.HTTPClient).
			WithTimeout(cfg.SubmitTimeout).
			WithMaxAttempts(cfg.SubmitRetryMaxAttempts).
			WithBaseDelay(cfg.SubmitRetryBaseDelay)
	case SubmitModeSQS:
		if deps.SQS == nil || strings.TrimSpace(cfg.SubmitQueueURL) == "" {
			return nil, fmt.Errorf("bootstrap: sqs client and SUBMIT_QUEUE_URL required for sqs mode")
		}
		next = submission.NewQueue[T](deps.SQS, cfg.SubmitQueueURL, logger)
	default:
		return nil, fmt.Errorf("bootstrap: unknown submit mode %q", cfg.SubmitMode)
	}

	if deps.Receipts != nil {
		return submission.NewRecording[T](next, deps.Receipts, logger), nil
	}
	return next, nil
}
