package entropy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RPCHashProvider fetches the most recent block hash from a JSON-RPC
// node. It backs the chain-hash entropy source in production.
type RPCHashProvider struct {
	url    string
	client *http.Client
}

func NewRPCHashProvider(url string, client *http.Client) *RPCHashProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RPCHashProvider{url: url, client: client}
}

var blockhashRequest = []byte(`{"jsonrpc":"2.0","id":1,"method":"getLatestBlockhash"}`)

func (p *RPCHashProvider) RecentHash(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(blockhashRequest))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("entropy: chain hash fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entropy: chain hash fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}
	var rpcResp struct {
		Result struct {
			Value struct {
				Blockhash string `json:"blockhash"`
			} `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("entropy: chain hash decode: %w", err)
	}
	if rpcResp.Result.Value.Blockhash == "" {
		return nil, errors.New("entropy: empty block hash in rpc response")
	}
	return []byte(rpcResp.Result.Value.Blockhash), nil
}
