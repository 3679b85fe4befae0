// Package main is the entry point for the skyface application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		showUsage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "preview":
		err = runPreview(ctx, args)
	case "render":
		err = runRender(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	case "serve":
		err = runServe(ctx)
	case "status":
		err = runStatus(ctx)
	case "scan":
		err = runScan(ctx)
	case "brightness":
		err = runBrightness(ctx, args)
	case "forget":
		err = runForget(ctx, args)
	case "version":
		fmt.Println("skyface", version)
	default:
		showUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("Usage:")
	fmt.Println("  skyface preview [--mode M]        - ASCII preview of the current sky")
	fmt.Println("  skyface render <out.png> [--mode M] - Write the current sky to a PNG")
	fmt.Println("  skyface watch [IP] [--ambient]    - Push the sky to a Pixoo")
	fmt.Println("  skyface serve                     - HTTP preview, status and metrics")
	fmt.Println("  skyface status                    - Show the last stored weather")
	fmt.Println("  skyface scan                      - Find Pixoo devices on the local network")
	fmt.Println("  skyface brightness [0-100|reset]  - Show or set the Pixoo brightness")
	fmt.Println("  skyface forget <IP>               - Forget a remembered Pixoo")
	fmt.Println()
	fmt.Println("Modes: interactive, ambient, lowbit, burnin")
	fmt.Println()
	fmt.Println("Configuration is read from $SKYFACE_CONFIG (YAML), .env and SKYFACE_* variables:")
	fmt.Println("  SKYFACE_WEATHER_API_KEY  - OpenWeatherMap key (without it the seasonal sky is shown)")
	fmt.Println("  SKYFACE_LAT, SKYFACE_LON - Fixed location")
	fmt.Println("  SKYFACE_ASSETS_DIR       - Directory of <key>.png art (default: built-in art)")
	fmt.Println("  SKYFACE_DB_PATH          - SQLite database (default: skyface.db)")
}

// flagValue returns the value following name in args, if present.
func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

// positional returns the first argument that is neither a flag nor a flag value.
func positional(args []string) string {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--mode":
			i++
		case "--ambient":
		default:
			return args[i]
		}
	}
	return ""
}
