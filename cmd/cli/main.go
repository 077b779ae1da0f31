package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wavescore/wavescore/pkg/logger"
	"github.com/wavescore/wavescore/pkg/utils"
	"github.com/wavescore/wavescore/pkg/wavescore"
)

// Global flags
var (
	dbPath     string
	tempDir    string
	sampleRate int
	tempoBPM   float64
	timeSig    string
	grid       int
	flats      bool
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&dbPath, "db", getEnvOrDefault("WAVESCORE_DB_PATH", "wavescore.sqlite3"), "Path to the SQLite score library")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("WAVESCORE_TEMP_DIR", "/tmp"), "Directory for temporary audio conversion files")
	flag.IntVar(&sampleRate, "rate", 22050, "Audio sample rate for analysis")
	flag.Float64Var(&tempoBPM, "tempo", 120, "Assumed tempo in beats per minute")
	flag.StringVar(&timeSig, "time", "4/4", "Time signature, e.g. 4/4 or 3/4")
	flag.IntVar(&grid, "grid", 16, "Quantization grid subdivision per whole note")
	flag.BoolVar(&flats, "flats", false, "Spell accidentals as flats instead of sharps")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// createService creates a transcription service with the configured options
func createService() (wavescore.Service, error) {
	beats, unit, err := parseTimeSig(timeSig)
	if err != nil {
		return nil, err
	}
	opts := []wavescore.Option{
		wavescore.WithDBPath(dbPath),
		wavescore.WithTempDir(tempDir),
		wavescore.WithSampleRate(sampleRate),
		wavescore.WithTempoBPM(tempoBPM),
		wavescore.WithTimeSignature(beats, unit),
		wavescore.WithGridSubdivision(grid),
	}
	if flats {
		opts = append(opts, wavescore.WithSpelling(wavescore.SpellFlats))
	}
	return wavescore.NewService(opts...)
}

func parseTimeSig(s string) (int, int, error) {
	var beats, unit int
	if _, err := fmt.Sscanf(s, "%d/%d", &beats, &unit); err != nil {
		return 0, 0, fmt.Errorf("invalid time signature %q (expected N/M)", s)
	}
	if beats < 1 || unit < 1 {
		return 0, 0, fmt.Errorf("invalid time signature %q", s)
	}
	return beats, unit, nil
}

func main() {
	log := logger.GetLogger()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Infof("Executing command: %s", command)

	switch command {
	case "transcribe":
		handleTranscribe()
	case "youtube":
		handleYouTube()
	case "synthesize":
		handleSynthesize()
	case "list":
		handleList()
	case "info":
		handleInfo()
	case "delete":
		handleDelete()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
__        __             ____
\ \      / /_ ___   ____/ ___|  ___ ___  _ __ ___
 \ \ /\ / / _` + "`" + ` \ \ / / _ \___ \ / __/ _ \| '__/ _ \
  \ V  V / (_| |\ V /  __/___) | (_| (_) | | |  __/
   \_/\_/ \__,_| \_/ \___|____/ \___\___/|_|  \___|

          Audio to Sheet Music Transcriber
`
	fmt.Println(banner)
}

// splitArgs separates the first positional argument from the flags that
// follow it, so "transcribe song.wav --out score.xml" parses cleanly.
func splitArgs(args []string) (string, []string) {
	var positional string
	var flagArgs []string
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && positional == "" {
			positional = arg
		} else {
			flagArgs = append(flagArgs, args[i:]...)
			break
		}
	}
	return positional, flagArgs
}

func handleTranscribe() {
	log := logger.GetLogger()

	audioPath, flagArgs := splitArgs(os.Args[2:])

	cmd := flag.NewFlagSet("transcribe", flag.ExitOnError)
	out := cmd.String("out", "", "Output MusicXML path (default: input name with .musicxml)")
	midiOut := cmd.String("midi", "", "Also write a Standard MIDI File to this path")
	title := cmd.String("title", "", "Score title (default: input file name)")
	save := cmd.Bool("save", false, "Store the score in the library")
	cmd.Parse(flagArgs)

	if audioPath == "" {
		fmt.Println("Usage: wavescore transcribe <audio_file> [--out <path>] [--midi <path>] [--title <title>] [--save]")
		os.Exit(1)
	}
	if utils.IsRemoteURL(audioPath) {
		fmt.Println("❌ transcribe expects a local file; use 'wavescore youtube <url>' for remote audio")
		os.Exit(1)
	}

	if *title == "" {
		*title = strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	}
	if *out == "" {
		*out = strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".musicxml"
	}

	fmt.Println("\n🔧 Initializing service...")
	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	fmt.Println("🎵 Transcribing audio...")
	fmt.Println("   This may take a few moments for long recordings")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := svc.TranscribeFile(ctx, audioPath)
	if err != nil {
		fmt.Printf("\n❌ Transcription failed: %v\n", err)
		log.Errorf("TranscribeFile failed: %v", err)
		os.Exit(1)
	}
	res.Document.Title = *title

	if err := os.WriteFile(*out, res.MusicXML, 0o644); err != nil {
		fmt.Printf("❌ Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("\n✅ Wrote %s (%s)\n", *out, humanize.Bytes(uint64(len(res.MusicXML))))

	if *midiOut != "" {
		if err := os.WriteFile(*midiOut, res.MIDI, 0o644); err != nil {
			fmt.Printf("❌ Failed to write %s: %v\n", *midiOut, err)
			os.Exit(1)
		}
		fmt.Printf("✅ Wrote %s (%s)\n", *midiOut, humanize.Bytes(uint64(len(res.MIDI))))
	}

	fmt.Printf("   Measures: %d | Notes: %d | Audio: %.1fs\n",
		res.Document.MeasureCount(), res.Document.NoteCount(), res.AudioDuration)

	if *save {
		id, err := svc.SaveResult(res, *title, "upload")
		if err != nil {
			fmt.Printf("❌ Failed to save score: %v\n", err)
			log.Errorf("SaveResult failed: %v", err)
			os.Exit(1)
		}
		fmt.Printf("📚 Saved to library with ID %s\n", id)
	}
	log.Infof("Transcribed %s: %d measures, %d notes", audioPath, res.Document.MeasureCount(), res.Document.NoteCount())
}

func handleYouTube() {
	log := logger.GetLogger()

	url, flagArgs := splitArgs(os.Args[2:])

	cmd := flag.NewFlagSet("youtube", flag.ExitOnError)
	out := cmd.String("out", "score.musicxml", "Output MusicXML path")
	midiOut := cmd.String("midi", "", "Also write a Standard MIDI File to this path")
	save := cmd.Bool("save", false, "Store the score in the library")
	cmd.Parse(flagArgs)

	if url == "" {
		fmt.Println("Usage: wavescore youtube <url> [--out <path>] [--midi <path>] [--save]")
		os.Exit(1)
	}

	fmt.Println("\n🔧 Initializing service...")
	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	fmt.Println("📥 Downloading and transcribing...")
	fmt.Println("   This may take a few moments depending on video length")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	res, title, err := svc.TranscribeRemote(ctx, url)
	if err != nil {
		fmt.Printf("\n❌ Transcription failed: %v\n", err)
		log.Errorf("TranscribeRemote failed: %v", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, res.MusicXML, 0o644); err != nil {
		fmt.Printf("❌ Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("\n✅ Transcribed \"%s\"\n", title)
	fmt.Printf("   Wrote %s (%s)\n", *out, humanize.Bytes(uint64(len(res.MusicXML))))
	fmt.Printf("   Measures: %d | Notes: %d | Audio: %.1fs\n",
		res.Document.MeasureCount(), res.Document.NoteCount(), res.AudioDuration)

	if *midiOut != "" {
		if err := os.WriteFile(*midiOut, res.MIDI, 0o644); err != nil {
			fmt.Printf("❌ Failed to write %s: %v\n", *midiOut, err)
			os.Exit(1)
		}
		fmt.Printf("   Wrote %s\n", *midiOut)
	}

	if *save {
		id, err := svc.SaveResult(res, title, "youtube")
		if err != nil {
			fmt.Printf("❌ Failed to save score: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("📚 Saved to library with ID %s\n", id)
	}
}

func handleSynthesize() {
	log := logger.GetLogger()

	audioPath, flagArgs := splitArgs(os.Args[2:])

	cmd := flag.NewFlagSet("synthesize", flag.ExitOnError)
	out := cmd.String("out", "", "Output WAV path (default: input name with .synth.wav)")
	cmd.Parse(flagArgs)

	if audioPath == "" {
		fmt.Println("Usage: wavescore synthesize <audio_file> [--out <path>]")
		fmt.Println("Transcribes the audio, then renders the score back to a WAV preview.")
		os.Exit(1)
	}
	if *out == "" {
		*out = strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".synth.wav"
	}

	fmt.Println("\n🔧 Initializing service...")
	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	fmt.Println("🎵 Transcribing audio...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := svc.TranscribeFile(ctx, audioPath)
	if err != nil {
		fmt.Printf("\n❌ Transcription failed: %v\n", err)
		log.Errorf("TranscribeFile failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("🔊 Rendering score to audio...")
	wav, err := svc.Synthesize(res.Document)
	if err != nil {
		fmt.Printf("❌ Synthesis failed: %v\n", err)
		log.Errorf("Synthesize failed: %v", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, wav, 0o644); err != nil {
		fmt.Printf("❌ Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("\n✅ Wrote %s (%s)\n", *out, humanize.Bytes(uint64(len(wav))))
}

func handleList() {
	log := logger.GetLogger()

	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	scores, err := svc.ListScores()
	if err != nil {
		fmt.Printf("❌ Failed to list scores: %v\n", err)
		log.Errorf("ListScores failed: %v", err)
		os.Exit(1)
	}

	if len(scores) == 0 {
		fmt.Println("\n📭 No scores in library")
		return
	}

	fmt.Printf("\n📚 Found %d score(s):\n\n", len(scores))
	for i, sc := range scores {
		fmt.Printf("%d. \"%s\" (ID: %s)\n", i+1, sc.Title, sc.ID)
		fmt.Printf("   %s | %.0f BPM | %d measures | %d notes | added %s\n",
			sc.TimeSig, sc.TempoBPM, sc.Measures, sc.NoteCount, humanize.Time(sc.CreatedAt))
		if sc.DurationMs > 0 {
			duration := sc.DurationMs / 1000
			fmt.Printf("   Audio: %d:%02d\n", duration/60, duration%60)
		}
		fmt.Println()
	}
	log.Infof("Listed %d scores", len(scores))
}

func handleInfo() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Usage: wavescore info <score_id> [--out <path>]")
		os.Exit(1)
	}
	id, flagArgs := splitArgs(os.Args[2:])

	cmd := flag.NewFlagSet("info", flag.ExitOnError)
	out := cmd.String("out", "", "Write the stored MusicXML to this path")
	cmd.Parse(flagArgs)

	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	sc, err := svc.GetScoreByID(id)
	if err != nil {
		fmt.Printf("❌ Score not found (ID: %s)\n", id)
		log.Warnf("Score %s not found: %v", id, err)
		os.Exit(1)
	}

	fmt.Printf("\n🎼 \"%s\"\n", sc.Title)
	fmt.Printf("   ID:       %s\n", sc.ID)
	fmt.Printf("   Source:   %s\n", sc.Source)
	fmt.Printf("   Tempo:    %.0f BPM (%s)\n", sc.TempoBPM, sc.TimeSig)
	fmt.Printf("   Measures: %d | Notes: %d\n", sc.Measures, sc.NoteCount)
	fmt.Printf("   MusicXML: %s\n", humanize.Bytes(uint64(len(sc.MusicXML))))

	if *out != "" {
		if err := os.WriteFile(*out, sc.MusicXML, 0o644); err != nil {
			fmt.Printf("❌ Failed to write %s: %v\n", *out, err)
			os.Exit(1)
		}
		fmt.Printf("✅ Wrote %s\n", *out)
	}
}

func handleDelete() {
	log := logger.GetLogger()

	if len(os.Args) < 3 {
		fmt.Println("Usage: wavescore delete <score_id>")
		os.Exit(1)
	}
	id := os.Args[2]

	svc, err := createService()
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	sc, err := svc.GetScoreByID(id)
	if err != nil {
		fmt.Printf("❌ Score not found (ID: %s)\n", id)
		log.Warnf("Score %s not found: %v", id, err)
		os.Exit(1)
	}

	if err := svc.DeleteScore(id); err != nil {
		fmt.Printf("❌ Failed to delete score: %v\n", err)
		log.Errorf("DeleteScore failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Deleted \"%s\" (ID: %s)\n", sc.Title, sc.ID)
	log.Infof("Deleted score ID=%s ('%s')", sc.ID, sc.Title)
}

func printUsage() {
	fmt.Println("WaveScore - Audio to Sheet Music Transcriber")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>     Path to SQLite score library (env: WAVESCORE_DB_PATH, default: wavescore.sqlite3)")
	fmt.Println("  --temp <dir>    Temporary directory for audio conversion (env: WAVESCORE_TEMP_DIR, default: /tmp)")
	fmt.Println("  --rate <hz>     Analysis sample rate (default: 22050)")
	fmt.Println("  --tempo <bpm>   Assumed tempo (default: 120)")
	fmt.Println("  --time <n/m>    Time signature (default: 4/4)")
	fmt.Println("  --grid <n>      Grid subdivision per whole note (default: 16)")
	fmt.Println("  --flats         Spell accidentals as flats")
	fmt.Println("\nUsage:")
	fmt.Println("  wavescore [global-options] transcribe <audio_file> [--out <path>] [--midi <path>] [--title <title>] [--save]")
	fmt.Println("  wavescore [global-options] youtube <url> [--out <path>] [--midi <path>] [--save]")
	fmt.Println("  wavescore [global-options] synthesize <audio_file> [--out <path>]")
	fmt.Println("  wavescore [global-options] list")
	fmt.Println("  wavescore [global-options] info <score_id> [--out <path>]")
	fmt.Println("  wavescore [global-options] delete <score_id>")
	fmt.Println("\nExamples:")
	fmt.Println("  # Transcribe a WAV recording to MusicXML and MIDI")
	fmt.Println("  wavescore transcribe melody.wav --midi melody.mid")
	fmt.Println()
	fmt.Println("  # Transcribe straight from YouTube and keep the score")
	fmt.Println("  wavescore youtube \"https://youtube.com/watch?v=dQw4w9WgXcQ\" --save")
	fmt.Println()
	fmt.Println("  # Hear what the transcription sounds like")
	fmt.Println("  wavescore --tempo 90 synthesize melody.wav")
}
