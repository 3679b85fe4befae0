package pixoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brettg0396/skyface-go/internal/domain"
)

// DefaultPort is the Pixoo HTTP API port.
const DefaultPort = 80

// DefaultTimeout bounds a single command round trip.
const DefaultTimeout = 5 * time.Second

// ErrDevice is returned when the device answers with a non-zero error_code.
var ErrDevice = errors.New("pixoo device error")

// Client sends commands to one Pixoo device.
type Client struct {
	IP         string
	Port       int
	HTTPClient *http.Client
	Logger     *zap.Logger

	endpoint string
}

// NewClient creates a client for the device at ip on DefaultPort.
func NewClient(ip string) *Client {
	return NewClientWithPort(ip, DefaultPort)
}

// NewClientWithPort creates a client for the device at ip:port.
func NewClientWithPort(ip string, port int) *Client {
	return &Client{
		IP:         ip,
		Port:       port,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Logger:     zap.NewNop(),
	}
}

// Endpoint returns the command URL.
func (c *Client) Endpoint() string {
	if c.endpoint != "" {
		return c.endpoint
	}
	return fmt.Sprintf("http://%s:%d/post", c.IP, c.Port)
}

// send posts command and returns the raw response body.
func (c *Client) send(ctx context.Context, command any) ([]byte, error) {
	data, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var envelope Response
	if len(body) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	if envelope.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: error_code %d", ErrDevice, envelope.ErrorCode)
	}

	return body, nil
}

// SendFrame shows frame as animation frame picID.
func (c *Client) SendFrame(ctx context.Context, frame *domain.Frame, picID int) error {
	_, err := c.send(ctx, NewFrameCommand(frame, picID))
	return err
}

// ResetGifID resets the device's animation frame counter.
func (c *Client) ResetGifID(ctx context.Context) error {
	_, err := c.send(ctx, NewResetGifIDCommand())
	return err
}

// GetDeviceTime queries the device clock.
func (c *Client) GetDeviceTime(ctx context.Context) ([]byte, error) {
	return c.send(ctx, NewDeviceTimeCommand())
}

// SetBrightness sets the display brightness (0-100).
func (c *Client) SetBrightness(ctx context.Context, brightness int) error {
	_, err := c.send(ctx, NewBrightnessCommand(brightness))
	return err
}

// IsReachable reports whether the device answers a clock query.
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.GetDeviceTime(ctx)
	if err != nil {
		c.Logger.Debug("pixoo unreachable", zap.String("ip", c.IP), zap.Error(err))
	}
	return err == nil
}
