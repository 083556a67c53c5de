package timeline

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"assetizer/internal/services"
)

// Signal weights for the combined info-density score. Text presence
// dominates: a slide full of text should outrank a busy talking head.
const (
	weightText          = 0.40
	weightConcentration = 0.25
	weightEdges         = 0.20
	weightVariance      = 0.15
)

// laplacian is the 3x3 edge detection kernel.
var laplacian = [9]float64{
	-1, -1, -1,
	-1, 8, -1,
	-1, -1, -1,
}

// ScoreFrame computes the info-density score of a frame image in [0, 1].
// The score needs no OCR or ASR: it is built from luminance statistics and
// edge structure alone, so the timeline stage stays cheap.
func ScoreFrame(path string) (float64, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return 0, services.Wrap(services.ErrDataIntegrity, "timeline", "score", "open frame "+path, err)
	}
	return scoreImage(img), nil
}

func scoreImage(img image.Image) float64 {
	gray := imaging.Grayscale(img)
	luma := grayValues(gray)
	edges := grayValues(imaging.Convolve3x3(gray, laplacian, nil))

	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()

	score := weightText*textLikelihood(edges, width, height) +
		weightConcentration*contentConcentration(edges, width, height) +
		weightEdges*edgeDensity(edges) +
		weightVariance*luminanceVariance(luma)
	return math.Round(score*10000) / 10000
}

// grayValues extracts one 8-bit channel per pixel from a grayscale NRGBA.
func grayValues(img *image.NRGBA) []float64 {
	bounds := img.Bounds()
	values := make([]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[(y-bounds.Min.Y)*img.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			values = append(values, float64(row[x*4]))
		}
	}
	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

// luminanceVariance: normalized against 10000, roughly the variance of a
// high-contrast slide.
func luminanceVariance(luma []float64) float64 {
	v := variance(luma, mean(luma))
	return math.Min(v/10000.0, 1.0)
}

// edgeDensity: mean edge magnitude normalized against 100.
func edgeDensity(edges []float64) float64 {
	return math.Min(mean(edges)/100.0, 1.0)
}

// contentConcentration measures how unevenly edges are spread over a 3x3
// grid. Concentrated complexity (a text block, a diagram) scores high;
// uniform complexity (noise, busy backgrounds) scores low.
func contentConcentration(edges []float64, width, height int) float64 {
	if width < 3 || height < 3 {
		return 0.5
	}
	var regions []float64
	for gy := 0; gy < 3; gy++ {
		for gx := 0; gx < 3; gx++ {
			x0, x1 := gx*width/3, (gx+1)*width/3
			y0, y1 := gy*height/3, (gy+1)*height/3
			var sum float64
			count := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += edges[y*width+x]
					count++
				}
			}
			if count > 0 {
				regions = append(regions, sum/float64(count))
			}
		}
	}
	if len(regions) < 2 {
		return 0.5
	}
	m := mean(regions)
	if m < 0.01 {
		// Essentially blank frame.
		return 0.5
	}
	cv := math.Sqrt(variance(regions, m)) / m
	cv = math.Min(cv, 2.0)
	return math.Round(math.Min(cv/0.8, 1.0)*10000) / 10000
}

// textLikelihood analyzes horizontal edge bands. Text lines produce distinct
// peaks of edge density across image height; faces and gradients do not.
func textLikelihood(edges []float64, width, height int) float64 {
	const numStrips = 30
	if height < numStrips*2 {
		return 0.5
	}
	stripHeight := height / numStrips

	densities := make([]float64, 0, numStrips)
	for i := 0; i < numStrips; i++ {
		y0 := i * stripHeight
		y1 := y0 + stripHeight
		if i == numStrips-1 {
			y1 = height
		}
		var sum float64
		count := 0
		for y := y0; y < y1; y++ {
			for x := 0; x < width; x++ {
				sum += edges[y*width+x]
				count++
			}
		}
		if count > 0 {
			densities = append(densities, sum/float64(count))
		} else {
			densities = append(densities, 0)
		}
	}

	m := mean(densities)
	if m < 2.0 {
		return 0.0
	}

	peaks, strongPeaks := 0, 0
	for _, d := range densities {
		if d > m*1.5 {
			peaks++
		}
		if d > m*2.0 {
			strongPeaks++
		}
	}
	cv := math.Sqrt(variance(densities, m)) / m

	peakScore := math.Min(float64(peaks)/10.0, 1.0)
	cvScore := math.Min(cv/0.8, 1.0)
	strongPeakScore := math.Min(float64(strongPeaks)/5.0, 1.0)

	score := 0.3*peakScore + 0.4*cvScore + 0.3*strongPeakScore
	return math.Round(score*10000) / 10000
}
