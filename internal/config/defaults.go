package config

// Default returns a configuration populated with default values.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: "~/.local/share/assetizer",
			LogDir:  "~/.local/share/assetizer/logs",
		},
		Fetcher: Fetcher{
			BaseURL:        "https://api.bilibili.com",
			RequestTimeout: 30,
		},
		Frames: Frames{
			IntervalSec: 3.0,
			SceneThresh: 0,
			MaxFrames:   0,
			MaxWidth:    768,
		},
		Timeline: Timeline{
			BucketSec: 15,
		},
		Select: Select{
			TopBuckets: 10,
			MaxFrames:  30,
		},
		OCR: OCR{
			Language:      "eng+chi_sim",
			PageSegMode:   6,
			MinConfidence: 40,
			Timeout:       30,
		},
		Transcript: Transcript{
			Model:   "base",
			Timeout: 600,
		},
		Index: Index{
			MergeSegments: false,
			MergeMaxChars: 480,
		},
		Query: Query{
			TopK: 8,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
