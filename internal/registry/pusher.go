package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/domain"
)

// HTTPPusher posts configuration payloads to the scanner fleet's
// configuration endpoint.
type HTTPPusher struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPPusher(endpoint, apiKey string) *HTTPPusher {
	return &HTTPPusher{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{},
	}
}

func (p *HTTPPusher) Push(ctx context.Context, device domain.Device, config json.RawMessage) error {
	body, err := json.Marshal(map[string]interface{}{
		"deviceId":      device.DeviceID,
		"configuration": config,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/config", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("device endpoint returned %d", resp.StatusCode)
	}
	return nil
}
