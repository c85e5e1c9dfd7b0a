package service

import (
	"github.com/kava-labs/body-rewrite-proxy/rewrite"
)

// RequestBodyInterceptor transforms the body of a request sent by the caller
// before it is proxied to the backend. Interceptors never fail the request,
// bodies they can't handle produce a pass through result.
type RequestBodyInterceptor interface {
	Rewrite(rawBody []byte) rewrite.Result
}

var _ RequestBodyInterceptor = (*rewrite.Rewriter)(nil)
