package vikingkb

import (
	"net/http"

	"github.com/volcengine/volc-sdk-golang/base"
)

// Signer adds authentication headers to an outgoing request
type Signer interface {
	Sign(req *http.Request) *http.Request
}

// SignerFunc adapts a function to Signer
type SignerFunc func(req *http.Request) *http.Request

func (f SignerFunc) Sign(req *http.Request) *http.Request {
	return f(req)
}

// NewVolcSigner signs requests with Volcengine V4 credentials
func NewVolcSigner(cfg *Config) Signer {
	return base.Credentials{
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		Service:         cfg.Service,
		Region:          cfg.Region,
	}
}
