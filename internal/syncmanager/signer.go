package syncmanager

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"
)

const edgeSyncService = "execute-api"

// RequestSigner optionally signs outbound cloud requests with AWS SigV4,
// used when the cloud endpoint sits behind an IAM-authenticated API
// Gateway (CLOUD_AUTH_MODE=sigv4). It degrades to IsConfigured()==false
// when no AWS credentials are available, in which case requests are sent
// unsigned.
type RequestSigner struct {
	credentials aws.CredentialsProvider
	region      string
	signer      *v4.Signer
	configured  bool
}

// NewRequestSigner loads AWS credentials from the default credential chain
// (environment, shared config file, IAM role). It always returns a non-nil
// signer; callers check IsConfigured before relying on it.
func NewRequestSigner(ctx context.Context) *RequestSigner {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	rs := &RequestSigner{region: region, signer: v4.NewSigner()}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Warn().Err(err).Msg("syncmanager: failed to load AWS config for request signer")
		return rs
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil || creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		log.Debug().Msg("syncmanager: no AWS credentials available, cloud requests will be unsigned")
		return rs
	}

	rs.credentials = cfg.Credentials
	rs.configured = true
	return rs
}

// IsConfigured reports whether credentials were found.
func (rs *RequestSigner) IsConfigured() bool { return rs.configured }

// Sign applies SigV4 to req in place, using body for the payload hash.
func (rs *RequestSigner) Sign(ctx context.Context, req *http.Request, body []byte) error {
	if !rs.configured {
		return fmt.Errorf("syncmanager: request signer not configured")
	}
	creds, err := rs.credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("syncmanager: retrieve credentials: %w", err)
	}
	payloadHash := fmt.Sprintf("%x", sha256.Sum256(body))
	if err := rs.signer.SignHTTP(ctx, creds, req, payloadHash, edgeSyncService, rs.region, time.Now()); err != nil {
		return fmt.Errorf("syncmanager: sign request: %w", err)
	}
	return nil
}
