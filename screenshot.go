package main

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultScreenshotTimeout = 300 * time.Second
	defaultFearGreedURL      = "https://money.cnn.com/data/fear-and-greed/"
	fearGreedWidth           = 660
	fearGreedHeight          = 470
)

// Screenshotter captures a web page as PNG.
type Screenshotter interface {
	Screenshot(ctx context.Context, url string, width, height int) ([]byte, error)
}

// ChromeScreenshotter drives a headless Chrome through chromedp. Each call
// starts a fresh browser.
type ChromeScreenshotter struct {
	timeout time.Duration
}

func NewChromeScreenshotter(timeout time.Duration) *ChromeScreenshotter {
	if timeout <= 0 {
		timeout = defaultScreenshotTimeout
	}
	return &ChromeScreenshotter{timeout: timeout}
}

func (s *ChromeScreenshotter) Screenshot(ctx context.Context, url string, width, height int) ([]byte, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var buf []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
