package main

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	chartWidth   = 1900
	chartHeight  = 950
	chartPadding = 60
	chartTitleH  = 70
	chartAxisW   = 110
	chartXAxisH  = 40
	chartVolFrac = 0.25
)

var (
	colorUp     = color.RGBA{R: 38, G: 166, B: 154, A: 255}
	colorDown   = color.RGBA{R: 239, G: 83, B: 80, A: 255}
	colorGrid   = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	colorBG     = color.RGBA{R: 20, G: 20, B: 24, A: 255}
	colorText   = color.RGBA{R: 220, G: 220, B: 220, A: 255}
	colorVolume = color.RGBA{R: 90, G: 110, B: 160, A: 255}

	errNoCandles = errors.New("no candles to draw")
)

type ChartRenderer interface {
	Render(ticker, rangeLabel string, candles []Candle) ([]byte, error)
}

// CandleChart draws candlestick charts with a volume pane as PNG.
type CandleChart struct {
	fontPath string
}

// NewCandleChart uses the truetype font at fontPath, or a built-in bitmap
// font when fontPath is empty.
func NewCandleChart(fontPath string) *CandleChart {
	return &CandleChart{fontPath: fontPath}
}

func (r *CandleChart) Render(ticker, rangeLabel string, candles []Candle) ([]byte, error) {
	if len(candles) == 0 {
		return nil, errNoCandles
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(colorBG)
	dc.Clear()
	if err := r.setFont(dc, 26); err != nil {
		return nil, err
	}

	dc.SetColor(colorText)
	dc.DrawStringAnchored(fmt.Sprintf("%s %s", ticker, rangeLabel), chartWidth/2, chartPadding/2+10, 0.5, 0.5)

	left := float64(chartPadding)
	right := float64(chartWidth - chartPadding - chartAxisW)
	top := float64(chartTitleH)
	bottom := float64(chartHeight - chartPadding - chartXAxisH)
	volTop := bottom - (bottom-top)*chartVolFrac
	priceBottom := volTop - 20

	lo, hi := math.Inf(1), math.Inf(-1)
	var maxVol int64
	for _, c := range candles {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
		if c.Volume > maxVol {
			maxVol = c.Volume
		}
	}
	if hi == lo {
		hi, lo = hi+1, lo-1
	}
	priceY := func(p float64) float64 {
		return priceBottom - (p-lo)/(hi-lo)*(priceBottom-top)
	}

	if err := r.setFont(dc, 16); err != nil {
		return nil, err
	}
	dc.SetLineWidth(1)
	for i := 0; i <= 5; i++ {
		p := lo + (hi-lo)*float64(i)/5
		y := priceY(p)
		dc.SetColor(colorGrid)
		dc.DrawLine(left, y, right, y)
		dc.Stroke()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", p), right+10, y, 0, 0.5)
	}

	step := (right - left) / float64(len(candles))
	body := math.Max(step*0.7, 1)
	for i, c := range candles {
		x := left + step*float64(i) + step/2
		col := colorUp
		if c.Close < c.Open {
			col = colorDown
		}
		dc.SetColor(col)
		dc.DrawLine(x, priceY(c.High), x, priceY(c.Low))
		dc.Stroke()
		y0, y1 := priceY(c.Open), priceY(c.Close)
		h := math.Max(math.Abs(y1-y0), 1)
		dc.DrawRectangle(x-body/2, math.Min(y0, y1), body, h)
		dc.Fill()

		if maxVol > 0 {
			vh := float64(c.Volume) / float64(maxVol) * (bottom - volTop)
			dc.SetColor(colorVolume)
			dc.DrawRectangle(x-body/2, bottom-vh, body, vh)
			dc.Fill()
		}
	}

	dc.SetColor(colorText)
	labels := 6
	if len(candles) < labels {
		labels = len(candles)
	}
	for i := 0; i < labels; i++ {
		idx := i * (len(candles) - 1) / max(labels-1, 1)
		x := left + step*float64(idx) + step/2
		dc.DrawStringAnchored(candles[idx].Time.Format("Jan 2006"), x, bottom+chartXAxisH/2, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *CandleChart) setFont(dc *gg.Context, size float64) error {
	if r.fontPath == "" {
		dc.SetFontFace(basicfont.Face7x13)
		return nil
	}
	return dc.LoadFontFace(r.fontPath, size)
}
