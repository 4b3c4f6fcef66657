package library

import (
	"os"
	"path/filepath"
	"sort"
)

// AudioSource tells where the background track came from.
type AudioSource string

const (
	AudioNone     AudioSource = "none"
	AudioExplicit AudioSource = "explicit"
	AudioFolder   AudioSource = "bgm-folder"
	AudioDefault  AudioSource = "default"
)

// AudioChoice is the resolved background track for a run.
type AudioChoice struct {
	Path   string
	Source AudioSource
	// Missing is set when an explicit path was requested but does not exist.
	Missing string
}

// ResolveAudio picks the background track. An explicit path wins; a missing
// explicit path yields no audio rather than falling through. Otherwise the
// first file by name in bgmFolder with a supported extension is used, then
// defaultPath if it exists.
func ResolveAudio(explicit, bgmFolder, defaultPath string, formats []string) AudioChoice {
	if explicit != "" {
		if fileExists(explicit) {
			return AudioChoice{Path: explicit, Source: AudioExplicit}
		}
		return AudioChoice{Source: AudioNone, Missing: explicit}
	}

	if path := firstAudioIn(bgmFolder, formats); path != "" {
		return AudioChoice{Path: path, Source: AudioFolder}
	}

	if defaultPath != "" && fileExists(defaultPath) {
		return AudioChoice{Path: defaultPath, Source: AudioDefault}
	}

	return AudioChoice{Source: AudioNone}
}

func firstAudioIn(folder string, formats []string) string {
	if folder == "" {
		return ""
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return ""
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && HasExtension(entry.Name(), formats) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}

	sort.Strings(names)
	return filepath.Join(folder, names[0])
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
