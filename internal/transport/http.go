package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// HTTP sends each command as the query of a GET on the vehicle's /drive endpoint.
type HTTP struct {
	baseURL string
	client  *http.Client
}

func NewHTTP(server string, timeout time.Duration) *HTTP {
	baseURL := server
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &HTTP{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) Send(ctx context.Context, cmd string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+DrivePath+"?"+cmd, nil)
	if err != nil {
		return sendFailure(err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return fmt.Errorf("%w - %w", ErrUnavailable, err)
		}
		return sendFailure(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return sendFailure(fmt.Errorf("unexpected status: %s", resp.Status))
	}
	return nil
}
