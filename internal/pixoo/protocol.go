// Package pixoo drives a Divoom Pixoo64 over its local HTTP API.
//
// The device accepts JSON commands at POST http://<ip>/post. Frames are
// 64x64 RGB, base64 encoded: 12,288 bytes raw, about 16KB on the wire.
// Each animation frame must carry a PicID greater than the last one the
// device accepted, and the counter is reset with Draw/ResetHttpGifId.
package pixoo

import (
	"encoding/base64"
	"fmt"

	"github.com/brettg0396/skyface-go/internal/domain"
)

// Command is a bare Pixoo API command.
type Command struct {
	Command string `json:"Command"`
}

// FrameCommand is a Draw/SendHttpGif command.
type FrameCommand struct {
	Command   string `json:"Command"`
	PicNum    int    `json:"PicNum"`
	PicWidth  int    `json:"PicWidth"`
	PicOffset int    `json:"PicOffset"`
	PicID     int    `json:"PicID"`
	PicSpeed  int    `json:"PicSpeed"`
	PicData   string `json:"PicData"`
}

// BrightnessCommand is a Channel/SetBrightness command.
type BrightnessCommand struct {
	Command    string `json:"Command"`
	Brightness int    `json:"Brightness"`
}

// Response is the envelope every command returns.
type Response struct {
	ErrorCode int `json:"error_code"`
}

// EncodeFrame encodes frame pixels for the PicData field.
func EncodeFrame(frame *domain.Frame) string {
	return base64.StdEncoding.EncodeToString(frame.Pixels)
}

// DecodeFrame reverses EncodeFrame for a width x height frame.
func DecodeFrame(encoded string, width, height int) (*domain.Frame, error) {
	pixels, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	expectedSize := width * height * domain.BytesPerPixel
	if len(pixels) != expectedSize {
		return nil, fmt.Errorf("pixel data size mismatch: expected %d, got %d", expectedSize, len(pixels))
	}

	return &domain.Frame{
		Width:  width,
		Height: height,
		Pixels: pixels,
	}, nil
}

// NewFrameCommand builds a single-frame Draw/SendHttpGif command.
func NewFrameCommand(frame *domain.Frame, picID int) FrameCommand {
	return FrameCommand{
		Command:   "Draw/SendHttpGif",
		PicNum:    1,
		PicWidth:  frame.Width,
		PicOffset: 0,
		PicID:     max(1, picID),
		PicSpeed:  1000,
		PicData:   EncodeFrame(frame),
	}
}

// NewResetGifIDCommand builds a Draw/ResetHttpGifId command.
func NewResetGifIDCommand() Command {
	return Command{Command: "Draw/ResetHttpGifId"}
}

// NewDeviceTimeCommand builds a Device/GetDeviceTime command.
func NewDeviceTimeCommand() Command {
	return Command{Command: "Device/GetDeviceTime"}
}

// NewBrightnessCommand builds a Channel/SetBrightness command, clamped to 0-100.
func NewBrightnessCommand(brightness int) BrightnessCommand {
	return BrightnessCommand{
		Command:    "Channel/SetBrightness",
		Brightness: max(0, min(100, brightness)),
	}
}
