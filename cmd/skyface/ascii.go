package main

import (
	"fmt"
	"strings"

	"github.com/brettg0396/skyface-go/internal/domain"
)

// shade maps a brightness to a block character.
func shade(brightness int) string {
	switch {
	case brightness > 200:
		return "█"
	case brightness > 150:
		return "▓"
	case brightness > 100:
		return "▒"
	case brightness > 50:
		return "░"
	case brightness > 10:
		return "·"
	default:
		return " "
	}
}

// printFrameASCII renders the frame as block characters.
func printFrameASCII(frame *domain.Frame) {
	fmt.Println("  ┌" + strings.Repeat("─", frame.Width) + "┐")
	for y := 0; y < frame.Height; y++ {
		var row strings.Builder
		for x := 0; x < frame.Width; x++ {
			pixel := frame.GetPixel(x, y)
			if pixel == nil {
				row.WriteString(" ")
				continue
			}
			row.WriteString(shade(pixel.Brightness()))
		}
		fmt.Printf("%2d│%s│\n", y, row.String())
	}
	fmt.Println("  └" + strings.Repeat("─", frame.Width) + "┘")
}
