package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kehao95/rlmtrace/internal/config"
	"github.com/kehao95/rlmtrace/internal/llm/protocol"
	"github.com/kehao95/rlmtrace/internal/llm/transport"
)

// Completer performs one chat completion round trip. It owns
// authentication and the network call; retries live above it.
type Completer interface {
	Complete(ctx context.Context, req protocol.Request) (protocol.Completion, error)
}

// httpCompleter implements Completer using composable protocol and transport.
type httpCompleter struct {
	proto    protocol.Protocol
	trans    transport.Transport
	endpoint string
	client   *http.Client
}

// NewHTTPCompleter constructs a Completer for an OpenAI-compatible endpoint.
func NewHTTPCompleter(cfg *config.Config) (Completer, error) {
	trans, err := transport.For(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	proto := &protocol.OpenAI{}
	return &httpCompleter{
		proto:    proto,
		trans:    trans,
		endpoint: buildEndpoint(cfg.BaseURL, proto),
		// Per-attempt deadlines come from the context; this is only a backstop.
		client: transport.NewHTTPClient(10 * time.Minute),
	}, nil
}

// buildEndpoint joins the base URL and the protocol path.
func buildEndpoint(base string, proto protocol.Protocol) string {
	return strings.TrimRight(base, "/") + proto.EndpointPath()
}

func (p *httpCompleter) Complete(ctx context.Context, req protocol.Request) (protocol.Completion, error) {
	body, err := p.proto.EncodeRequest(req)
	if err != nil {
		return protocol.Completion{}, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return protocol.Completion{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", p.proto.ContentType())
	if err := p.trans.Sign(httpReq, body); err != nil {
		return protocol.Completion{}, fmt.Errorf("signing request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return protocol.Completion{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return protocol.Completion{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return protocol.Completion{}, p.proto.ClassifyError(resp.StatusCode, respBody)
	}
	return p.proto.DecodeResponse(respBody)
}
