// Renders PNG spectrograms for WAV files, useful when checking why a
// recording transcribes poorly (clipping, noise floor, missing fundamentals).
package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"

	wsaudio "github.com/wavescore/wavescore/pkg/wavescore/audio"
)

func main() {
	inputDir := flag.String("in", ".", "Directory of WAV files to render")
	outputDir := flag.String("out", "spectrograms", "Directory to write PNGs to")
	width := flag.Int("width", 2048, "Spectrogram image width")
	height := flag.Int("height", 512, "Spectrogram image height (frequency bins)")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatal(err)
	}

	err := filepath.WalkDir(*inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".wav" {
			return nil
		}

		fmt.Printf("Processing %s...\n", path)

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Error reading %s: %v", path, err)
			return nil
		}

		wave, err := wsaudio.Decode(data)
		if err != nil {
			log.Printf("Error decoding %s: %v", path, err)
			return nil
		}

		fmt.Printf("Read %d samples at %d Hz\n", len(wave.Samples), wave.SampleRate)

		img := spectrogram.NewImage128(image.Rect(0, 0, *width, *height))

		black := spectrogram.ParseColor("000000")
		draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

		// FFT with a Hamming window, linear magnitude scale.
		spectrogram.Drawfft(
			img,
			wave.Samples,
			uint32(wave.SampleRate),
			uint32(*height),
			false, // RECTANGLE (use Hamming window)
			false, // DFT (use FFT instead)
			true,  // MAG (magnitude)
			false, // LOG10 (linear scale)
		)

		outputPath := filepath.Join(*outputDir, filepath.Base(path)+".png")
		if err := spectrogram.SavePng(img, outputPath); err != nil {
			log.Printf("Error saving PNG for %s: %v", outputPath, err)
			return nil
		}

		fmt.Printf("Saved spectrogram to %s\n", outputPath)
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Done!")
}
