package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	TempDir string `yaml:"temp_dir"`

	Output    OutputConfig    `yaml:"output"`
	Encoding  EncodingConfig  `yaml:"encoding"`
	Clip      ClipConfig      `yaml:"clip"`
	Detection DetectionConfig `yaml:"detection"`
	Faces     FacesConfig     `yaml:"faces"`
	Title     TitleConfig     `yaml:"title"`
	Audio     AudioConfig     `yaml:"audio"`
	Library   LibraryConfig   `yaml:"library"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Vision    VisionConfig    `yaml:"vision"`
}

// OutputConfig is the geometry of the final vertical video.
type OutputConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    string `yaml:"fps"`
}

type EncodingConfig struct {
	VideoBitrate    string `yaml:"video_bitrate"`
	Profile         string `yaml:"profile"`
	Preset          string `yaml:"preset"`
	PixelFormat     string `yaml:"pixel_format"`
	AudioSampleRate int    `yaml:"audio_sample_rate"`
	AudioBitrate    string `yaml:"audio_bitrate"`
}

// ClipConfig controls the raw cut taken from each source video.
type ClipConfig struct {
	Duration float64 `yaml:"duration"`
	Preset   string  `yaml:"preset"`
	CRF      int     `yaml:"crf"`
}

type DetectionConfig struct {
	Interval      float64      `yaml:"interval"`
	MinFaceWidth  int          `yaml:"min_face_width"`
	MinFaceHeight int          `yaml:"min_face_height"`
	Weights       ScoreWeights `yaml:"weights"`
}

// ScoreWeights are the per-term weights of the face score.
type ScoreWeights struct {
	Area       float64 `yaml:"area"`
	Expression float64 `yaml:"expression"`
	Centering  float64 `yaml:"centering"`
	Confidence float64 `yaml:"confidence"`
}

type FacesConfig struct {
	ScanInterval     float64 `yaml:"scan_interval"`
	ClusterThreshold float64 `yaml:"cluster_threshold"`
	MinClusterSize   int     `yaml:"min_cluster_size"`
	PreviewWidth     int     `yaml:"preview_width"`
	PreviewHeight    int     `yaml:"preview_height"`
	PreviewDir       string  `yaml:"preview_dir"`
	CacheFile        string  `yaml:"cache_file"`
}

type TitleConfig struct {
	Duration  float64 `yaml:"duration"`
	FontPath  string  `yaml:"font_path"`
	FontSize  int     `yaml:"font_size"`
	TextColor string  `yaml:"text_color"`
}

type AudioConfig struct {
	BGMFolder   string   `yaml:"bgm_folder"`
	DefaultPath string   `yaml:"default_path"`
	Formats     []string `yaml:"formats"`
	BGMVolume   float64  `yaml:"bgm_volume"`
	FadeOut     float64  `yaml:"fade_out"`
}

type LibraryConfig struct {
	VideoFormats []string `yaml:"video_formats"`
	// SortOrder is "name" (byte order) or "natural" (clip2 before clip10).
	SortOrder string `yaml:"sort_order"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
}

// VisionConfig points at the face model sidecar and the optional
// in-process ONNX embedder.
type VisionConfig struct {
	WorkerCommand   []string `yaml:"worker_command"`
	EmbeddingModel  string   `yaml:"embedding_model"`
	EmbeddingInput  string   `yaml:"embedding_input"`
	EmbeddingOutput string   `yaml:"embedding_output"`
	EmbeddingDim    int      `yaml:"embedding_dim"`
	RuntimeLibrary  string   `yaml:"runtime_library"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		errs = append(errs, fmt.Errorf("output size must be positive, got %dx%d", c.Output.Width, c.Output.Height))
	}
	if c.Output.FPS == "" {
		errs = append(errs, errors.New("output fps is required"))
	}
	if c.Clip.Duration <= 0 {
		errs = append(errs, fmt.Errorf("clip duration must be positive, got %v", c.Clip.Duration))
	}
	if c.Detection.Interval <= 0 {
		errs = append(errs, fmt.Errorf("detection interval must be positive, got %v", c.Detection.Interval))
	}
	if c.Faces.ScanInterval <= 0 {
		errs = append(errs, fmt.Errorf("scan interval must be positive, got %v", c.Faces.ScanInterval))
	}
	if c.Faces.ClusterThreshold <= 0 {
		errs = append(errs, fmt.Errorf("cluster threshold must be positive, got %v", c.Faces.ClusterThreshold))
	}
	if c.Faces.MinClusterSize < 1 {
		errs = append(errs, fmt.Errorf("min cluster size must be at least 1, got %d", c.Faces.MinClusterSize))
	}
	if c.Faces.PreviewWidth <= 0 || c.Faces.PreviewHeight <= 0 {
		errs = append(errs, errors.New("preview size must be positive"))
	}
	if c.Faces.CacheFile == "" || c.Faces.PreviewDir == "" {
		errs = append(errs, errors.New("cache file and preview dir are required"))
	}
	if len(c.Library.VideoFormats) == 0 {
		errs = append(errs, errors.New("at least one video format is required"))
	}
	switch c.Library.SortOrder {
	case "name", "natural":
	default:
		errs = append(errs, fmt.Errorf("unknown sort order %q", c.Library.SortOrder))
	}
	if c.Audio.BGMVolume < 0 {
		errs = append(errs, fmt.Errorf("bgm volume cannot be negative, got %v", c.Audio.BGMVolume))
	}

	return errors.Join(errs...)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TempDir: filepath.Join(os.TempDir(), "memoryreel"),
		Output: OutputConfig{
			Width:  540,
			Height: 960,
			FPS:    "30000/1001",
		},
		Encoding: EncodingConfig{
			VideoBitrate:    "4500k",
			Profile:         "main",
			Preset:          "medium",
			PixelFormat:     "yuv420p",
			AudioSampleRate: 48000,
			AudioBitrate:    "192k",
		},
		Clip: ClipConfig{
			Duration: 1.0,
			Preset:   "fast",
			CRF:      23,
		},
		Detection: DetectionConfig{
			Interval:      1.0,
			MinFaceWidth:  30,
			MinFaceHeight: 30,
			Weights: ScoreWeights{
				Area:       0.35,
				Expression: 0.35,
				Centering:  0.20,
				Confidence: 0.10,
			},
		},
		Faces: FacesConfig{
			ScanInterval:     2.0,
			ClusterThreshold: 0.5,
			MinClusterSize:   2,
			PreviewWidth:     150,
			PreviewHeight:    150,
			PreviewDir:       "face_previews",
			CacheFile:        "scan_cache.json",
		},
		Title: TitleConfig{
			Duration:  3.0,
			FontPath:  "./assets/NotoSansJP-Regular.ttf",
			FontSize:  48,
			TextColor: "#FFFFFF",
		},
		Audio: AudioConfig{
			BGMFolder:   "./bgm",
			DefaultPath: "./assets/default_bgm.aac",
			Formats:     []string{".mp3", ".aac", ".wav", ".m4a", ".flac"},
			BGMVolume:   0.3,
			FadeOut:     2.0,
		},
		Library: LibraryConfig{
			VideoFormats: []string{".mp4", ".mov", ".avi"},
			SortOrder:    "name",
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Vision: VisionConfig{
			WorkerCommand:   []string{"python3", "-u", "python/face_worker.py"},
			EmbeddingInput:  "input.1",
			EmbeddingOutput: "683",
			EmbeddingDim:    512,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./memoryreel.yaml",
		"./config.yaml",
		filepath.Join(os.Getenv("HOME"), ".memoryreel", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnv overlays MEMORYREEL_* variables on top of file settings.
func (c *Config) applyEnv() error {
	c.TempDir = getEnvOrDefault("MEMORYREEL_TEMP_DIR", c.TempDir)
	c.FFmpeg.BinaryPath = getEnvOrDefault("MEMORYREEL_FFMPEG", c.FFmpeg.BinaryPath)
	c.FFmpeg.ProbePath = getEnvOrDefault("MEMORYREEL_FFPROBE", c.FFmpeg.ProbePath)
	c.Audio.BGMFolder = getEnvOrDefault("MEMORYREEL_BGM_FOLDER", c.Audio.BGMFolder)
	c.Title.FontPath = getEnvOrDefault("MEMORYREEL_FONT", c.Title.FontPath)
	c.Vision.EmbeddingModel = getEnvOrDefault("MEMORYREEL_EMBEDDING_MODEL", c.Vision.EmbeddingModel)
	c.Vision.RuntimeLibrary = getEnvOrDefault("MEMORYREEL_ORT_LIBRARY", c.Vision.RuntimeLibrary)

	if cmd := os.Getenv("MEMORYREEL_WORKER_CMD"); cmd != "" {
		c.Vision.WorkerCommand = strings.Fields(cmd)
	}

	threads, err := getEnvIntOrDefault("MEMORYREEL_THREADS", c.FFmpeg.Threads)
	if err != nil {
		return err
	}
	c.FFmpeg.Threads = threads

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
