package responder

import (
	_ "embed"
	"fmt"
	"math/rand/v2"

	"github.com/spigell/zhipin-responder/internal/utils"
)

const (
	minWidth       = 1200
	maxWidth       = 1400
	minHeight      = 700
	maxHeight      = 900
	viewportJitter = 50

	fingerprintLocale = "zh-CN"
)

var chromeVersions = []int{120, 121, 122}

//go:embed stealth.js
var stealthScript string

type fingerprint struct {
	UserAgent      string
	Width          int
	Height         int
	JitteredWidth  int
	JitteredHeight int
}

// newFingerprint picks a desktop Chrome user agent and viewport. With jitter
// the viewport applied after launch drifts by up to ±50px on each axis.
func newFingerprint(rng *rand.Rand, jitter bool) fingerprint {
	version := chromeVersions[rng.IntN(len(chromeVersions))]
	fp := fingerprint{
		UserAgent: fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36", version),
		Width:  utils.UniformInt(rng, minWidth, maxWidth),
		Height: utils.UniformInt(rng, minHeight, maxHeight),
	}
	fp.JitteredWidth, fp.JitteredHeight = fp.Width, fp.Height
	if jitter {
		fp.JitteredWidth += utils.UniformInt(rng, -viewportJitter, viewportJitter)
		fp.JitteredHeight += utils.UniformInt(rng, -viewportJitter, viewportJitter)
	}
	return fp
}
