package hello

import (
	"context"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rainbow-me/rpc-interceptors/common/headers"
	"github.com/rainbow-me/rpc-interceptors/grpc/callctx"
	"github.com/rainbow-me/rpc-interceptors/grpc/codec"
	rpcerrors "github.com/rainbow-me/rpc-interceptors/grpc/errors"
)

// HTTP routes served by the gateway.
const (
	SayHelloPath     = "/v1/hello"
	SayHelloNamePath = "/v1/hello/{name}"
)

const maxBodyBytes = 1 << 20

// RegisterHelloServiceHandlerFromEndpoint dials endpoint and registers the HTTP routes of HelloService on
// mux. The connection is closed when ctx is done.
func RegisterHelloServiceHandlerFromEndpoint(
	ctx context.Context,
	mux *runtime.ServeMux,
	endpoint string,
	opts []grpc.DialOption,
) error {
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return errors.Wrapf(err, "dial %s", endpoint)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return RegisterHelloServiceHandlerClient(ctx, mux, NewHelloServiceClient(conn))
}

// RegisterHelloServiceHandlerClient registers the HTTP routes of HelloService on mux, calling client.
//
//	POST /v1/hello         {"name": "..."} -> SayHello
//	GET  /v1/hello/{name}                  -> SayHello
func RegisterHelloServiceHandlerClient(_ context.Context, mux *runtime.ServeMux, client *HelloServiceClient) error {
	if err := mux.HandlePath(http.MethodPost, SayHelloPath,
		func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			req := new(HelloRequest)
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err == nil && len(body) > 0 {
				err = codec.Unmarshal(body, req)
			}
			if err != nil {
				writeError(r.Context(), mux, w, r, rpcerrors.InvalidArgument("body", "Request body is not valid JSON").Err())
				return
			}
			sayHello(mux, client, w, r, req)
		}); err != nil {
		return errors.Wrap(err, "register POST "+SayHelloPath)
	}

	if err := mux.HandlePath(http.MethodGet, SayHelloNamePath,
		func(w http.ResponseWriter, r *http.Request, params map[string]string) {
			sayHello(mux, client, w, r, &HelloRequest{Name: params["name"]})
		}); err != nil {
		return errors.Wrap(err, "register GET "+SayHelloNamePath)
	}
	return nil
}

func sayHello(mux *runtime.ServeMux, client *HelloServiceClient, w http.ResponseWriter, r *http.Request, req *HelloRequest) {
	ctx, err := runtime.AnnotateContext(r.Context(), mux, r, SayHelloMethod, runtime.WithHTTPPathPattern(r.URL.Path))
	if err != nil {
		writeError(r.Context(), mux, w, r, err)
		return
	}
	ctx = bindForwarded(ctx)

	var header, trailer metadata.MD
	resp, err := client.SayHello(ctx, req, grpc.Header(&header), grpc.Trailer(&trailer))
	ctx = runtime.NewServerMetadataContext(ctx, runtime.ServerMetadata{HeaderMD: header, TrailerMD: trailer})
	if err != nil {
		// A call rejected before any message carries its headers in the trailers.
		copyCorrelation(w, trailer)
		writeError(ctx, mux, w, r, err)
		return
	}

	body, err := codec.Marshal(resp)
	if err != nil {
		writeError(ctx, mux, w, r, err)
		return
	}
	copyCorrelation(w, header)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// bindForwarded turns the forwarded credential and trace id into the outbound call binding so the client
// interceptors attach them the same way they would for an in-process caller.
func bindForwarded(ctx context.Context) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return ctx
	}
	b := callctx.Binding(ctx)
	if v := md.Get(headers.Authorization); len(v) > 0 && b.Token == "" {
		b.Token = v[0]
	}
	if v := md.Get(headers.XTraceID); len(v) > 0 && b.TraceID == "" {
		b.TraceID = v[0]
	}
	return callctx.WithBinding(ctx, b)
}

func copyCorrelation(w http.ResponseWriter, md metadata.MD) {
	for _, key := range []string{headers.XTraceID, headers.XRequestID} {
		if v := md.Get(key); len(v) > 0 {
			w.Header().Set(http.CanonicalHeaderKey(key), v[0])
		}
	}
}

func writeError(ctx context.Context, mux *runtime.ServeMux, w http.ResponseWriter, r *http.Request, err error) {
	_, outbound := runtime.MarshalerForRequest(mux, r)
	runtime.HTTPError(ctx, mux, outbound, w, r, err)
}
