// Package http builds HTTP clients for calling services through their gateway.
package http

import (
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/rainbow-me/rpc-interceptors/common/logger"
	interceptors "github.com/rainbow-me/rpc-interceptors/http/interceptors/resty"
)

// NewRestyWithClient wraps client in a resty client that propagates the call binding and traces.
func NewRestyWithClient(client *http.Client, log *logger.Logger, opt ...interceptors.InterceptorOpt) *resty.Client {
	restyClient := resty.NewWithClient(client)
	interceptors.InjectInterceptors(restyClient, opt...)

	if log != nil {
		restyClient.SetLogger(log.Sugar())
	}
	return restyClient
}
