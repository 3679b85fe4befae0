package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/pixoo"
	"github.com/brettg0396/skyface-go/internal/render"
	"github.com/brettg0396/skyface-go/internal/scheduler"
	"github.com/brettg0396/skyface-go/internal/server"
	"github.com/brettg0396/skyface-go/internal/sky"
	"github.com/brettg0396/skyface-go/internal/storage"
	"github.com/brettg0396/skyface-go/internal/storage/sqlite"
)

const (
	interactivePush = time.Second
	ambientPush     = time.Minute
	shutdownTimeout = 10 * time.Second
)

// renderNow brings the bundle up to date and renders one frame.
func renderNow(ctx context.Context, a *app, mode render.Mode) *image.RGBA {
	now := time.Now()
	if err := a.engine.Refresh(ctx, now, true); err != nil {
		a.logger.Warn("refresh before render failed", zap.Error(err))
	}
	return a.engine.Render(ctx, now, mode)
}

func runPreview(ctx context.Context, args []string) error {
	mode, err := server.ParseMode(flagValue(args, "--mode"))
	if err != nil {
		return err
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	img := renderNow(ctx, a, mode)
	render.DrawClock(img, time.Now())

	st := a.engine.Status()
	fmt.Printf("%dx%d %s sky, phase %s, %s\n", img.Bounds().Dx(), img.Bounds().Dy(), st.Base, st.Phase, mode)
	fmt.Println()
	printFrameASCII(domain.FrameFromImage(img))
	fmt.Println()
	fmt.Println("Legend: █=bright ▓=medium ▒=dim ░=faint ·=very dim (space)=off")
	return nil
}

func runRender(ctx context.Context, args []string) error {
	out := positional(args)
	if out == "" {
		return errors.New("output path required: skyface render <out.png>")
	}
	mode, err := server.ParseMode(flagValue(args, "--mode"))
	if err != nil {
		return err
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	img := renderNow(ctx, a, mode)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := a.store.CacheFrame(ctx, &storage.CachedFrame{
		FrameData:   buf.Bytes(),
		Mode:        mode.String(),
		GeneratedAt: time.Now(),
	}); err != nil {
		a.logger.Warn("failed to cache frame", zap.Error(err))
	}

	fmt.Printf("Wrote %s (%s)\n", out, humanize.Bytes(uint64(buf.Len())))
	return nil
}

func runWatch(ctx context.Context, args []string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ip, err := resolveDevice(ctx, a, positional(args))
	if err != nil {
		return err
	}
	client := pixoo.NewClient(ip)
	client.Logger = a.logger.Named("pixoo")

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	reachable := client.IsReachable(probeCtx)
	cancel()
	if !reachable {
		return fmt.Errorf("cannot reach Pixoo at %s", ip)
	}
	if err := a.store.SaveDevice(ctx, storage.NewDevice(ip, ip, "Pixoo", "pixoo64")); err != nil {
		a.logger.Warn("failed to remember device", zap.Error(err))
	}

	mode := render.Mode{}
	push := interactivePush
	if hasFlag(args, "--ambient") {
		mode = render.Mode{Ambient: true}
		push = ambientPush
	}
	applyBrightness(ctx, a, client, mode)

	surface := &clockSurface{Surface: pixoo.NewSurface(client, 0, a.logger.Named("pixoo"))}
	sched := scheduler.New(a.engine, scheduler.Options{
		WeatherInterval:   a.cfg.WeatherInterval,
		ScreenInterval:    a.cfg.ScreenInterval,
		LightningInterval: a.cfg.LightningInterval,
		Surface:           surface,
		PushInterval:      push,
		Mode:              func() render.Mode { return mode },
		Logger:            a.logger.Named("scheduler"),
	})
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	fmt.Printf("Showing the sky on Pixoo at %s (%s, every %s). Press Ctrl+C to stop.\n", ip, mode, push)
	<-ctx.Done()
	fmt.Println("\nStopping...")
	return nil
}

// resolveDevice picks the Pixoo to drive: the argument, the configured
// address, the most recently used device, or the first one found by a scan.
func resolveDevice(ctx context.Context, a *app, arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if a.cfg.PixooAddr != "" {
		return a.cfg.PixooAddr, nil
	}
	devices, err := a.store.GetDevices(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) > 0 {
		return devices[0].IP, nil
	}

	fmt.Println("No Pixoo configured; scanning the local network...")
	found, err := pixoo.Scan(ctx, nil)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", errors.New("no Pixoo found; pass its IP: skyface watch <IP>")
	}
	return found[0].IP, nil
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	opts := scheduler.Options{
		WeatherInterval:   a.cfg.WeatherInterval,
		ScreenInterval:    a.cfg.ScreenInterval,
		LightningInterval: a.cfg.LightningInterval,
		Logger:            a.logger.Named("scheduler"),
	}
	if a.cfg.PixooAddr != "" {
		client := pixoo.NewClient(a.cfg.PixooAddr)
		client.Logger = a.logger.Named("pixoo")
		applyBrightness(ctx, a, client, render.Mode{})
		opts.Surface = &clockSurface{Surface: pixoo.NewSurface(client, 0, client.Logger)}
		opts.PushInterval = interactivePush
	}
	sched := scheduler.New(a.engine, opts)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	srv := server.New(server.Options{
		Engine:    a.engine,
		Logger:    a.logger.Named("http"),
		CachePing: a.cachePing,
	})
	return srv.ListenAndServe(ctx, a.cfg.HTTPAddr, shutdownTimeout)
}

func runStatus(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := sqlite.NewFileStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Database: %s\n", cfg.DatabasePath)

	if loc, err := store.GetLocation(ctx); err == nil {
		fmt.Printf("Location: %s\n", loc)
	} else if storage.IsNotFound(err) {
		fmt.Println("Location: unknown")
	} else {
		return err
	}

	snap, err := store.LatestSnapshot(ctx)
	switch {
	case storage.IsNotFound(err):
		fmt.Println("Weather:  no snapshot stored yet")
	case err != nil:
		return err
	default:
		name := snap.LocationName
		if name == "" {
			name = "unnamed location"
		}
		fmt.Printf("Weather:  %s (code %d) at %s, updated %s\n",
			snap.Description, snap.ConditionCode, name, humanize.Time(snap.ObservedAt))
		fmt.Printf("Wind:     %.1f m/s\n", snap.WindSpeed)
		fmt.Printf("Sun:      rises %s, sets %s\n",
			snap.Sunrise.Local().Format("15:04"), snap.Sunset.Local().Format("15:04"))
	}

	if frame, err := store.GetCachedFrame(ctx); err == nil {
		fmt.Printf("Frame:    %s %s, rendered %s\n",
			frame.Mode, humanize.Bytes(uint64(len(frame.FrameData))), humanize.Time(frame.GeneratedAt))
	}

	devices, err := store.GetDevices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("Device:   %s %s, last used %s\n", d.Name, d.IP, humanize.Time(d.LastSeen))
	}
	return nil
}

func runScan(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	fmt.Println("Scanning for Pixoo devices on local network...")
	scanCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	devices, err := pixoo.Scan(scanCtx, func(scanned, total int) {
		pct := scanned * 100 / total
		bar := strings.Repeat("█", pct/5) + strings.Repeat("░", 20-pct/5)
		fmt.Printf("\r  [%s] %d%% (%d/%d)", bar, pct, scanned, total)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No Pixoo devices found. Make sure it is powered on and on the same network.")
		return nil
	}

	store, err := sqlite.NewFileStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Found %d device(s):\n", len(devices))
	for i, d := range devices {
		fmt.Printf("  %d. %s - %s\n", i+1, d.Name, d.IP)
		if err := store.SaveDevice(ctx, storage.NewDevice(d.IP, d.IP, d.Name, "pixoo64")); err != nil {
			logger.Warn("failed to remember device", zap.String("ip", d.IP), zap.Error(err))
		}
	}
	fmt.Printf("\nTo start: skyface watch %s\n", devices[0].IP)
	return nil
}

// applyBrightness sets the device to the stored brightness, dimmed in
// ambient mode. Failures only cost the dimming.
func applyBrightness(ctx context.Context, a *app, client *pixoo.Client, mode render.Mode) {
	level, err := storage.Brightness(ctx, a.store)
	if err != nil {
		a.logger.Warn("failed to read brightness", zap.Error(err))
		return
	}
	if mode.Ambient {
		level = storage.AmbientBrightness(level)
	}
	if err := client.SetBrightness(ctx, level); err != nil {
		a.logger.Warn("failed to set brightness", zap.Int("level", level), zap.Error(err))
	}
}

func runBrightness(ctx context.Context, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := sqlite.NewFileStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch arg := positional(args); arg {
	case "":
		level, err := storage.Brightness(ctx, store)
		if err != nil {
			return err
		}
		fmt.Printf("Brightness: %d (ambient %d)\n", level, storage.AmbientBrightness(level))
		return nil
	case "reset":
		if err := storage.ResetBrightness(ctx, store); err != nil {
			return err
		}
		fmt.Printf("Brightness reset to %d\n", storage.DefaultBrightness)
		return nil
	default:
		level, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("brightness must be a number: %w", err)
		}
		if err := storage.SetBrightness(ctx, store, level); err != nil {
			return err
		}
		fmt.Printf("Brightness set to %d; applied on the next watch\n", level)
		return nil
	}
}

func runForget(ctx context.Context, args []string) error {
	ip := positional(args)
	if ip == "" {
		return errors.New("device IP required: skyface forget <IP>")
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := sqlite.NewFileStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	device, err := storage.ForgetDevice(ctx, store, ip)
	if storage.IsNotFound(err) {
		return fmt.Errorf("no remembered device at %s", ip)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Forgot %s (%s), last used %s\n", device.Name, device.IP, humanize.Time(device.LastSeen))
	return nil
}

// clockSurface draws the time over each frame before showing it.
type clockSurface struct {
	sky.Surface
}

func (c *clockSurface) Show(ctx context.Context, img image.Image) error {
	frame := image.NewRGBA(img.Bounds())
	draw.Draw(frame, frame.Bounds(), img, img.Bounds().Min, draw.Src)
	render.DrawClock(frame, time.Now())
	return c.Surface.Show(ctx, frame)
}
