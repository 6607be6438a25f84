package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/lexiqai/narration-gateway/internal/apperror"
)

const lockFileName = ".narration.lock"

// Bundle is everything a successful batch publishes
type Bundle struct {
	Audio          []byte
	Subtitles      string
	Translated     string
	Bilingual      string
	HasTranslation bool
}

// Published lists the files written for one batch
type Published struct {
	BaseName       string `json:"base_name"`
	AudioPath      string `json:"audio_path"`
	SubtitlePath   string `json:"subtitle_path"`
	TranslatedPath string `json:"translated_path,omitempty"`
	BilingualPath  string `json:"bilingual_path,omitempty"`
}

// Publisher writes bundles into the output directory. All files of a bundle
// appear together or not at all; concurrent publishers (including other
// processes) serialize on a lock file in the directory.
type Publisher struct {
	dir  string
	lock *flock.Flock
}

// NewPublisher creates a publisher for dir, creating it if needed
func NewPublisher(dir string) (*Publisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperror.Storage(err, "create output directory")
	}
	return &Publisher{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

// Dir returns the output directory
func (p *Publisher) Dir() string {
	return p.dir
}

type fileContent struct {
	target string
	data   []byte
}

type pendingFile struct {
	tmp    string
	target string
}

// Publish writes the bundle under a base name derived from stamp and voice.
// If that name is taken a numeric suffix is appended.
func (p *Publisher) Publish(ctx context.Context, stamp time.Time, voice string, bundle Bundle) (*Published, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.Storage(err, "acquire output lock")
	}
	ok, err := p.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, apperror.Storage(err, "acquire output lock")
	}
	if !ok {
		return nil, apperror.Storage(fmt.Errorf("lock %s not acquired", lockFileName), "acquire output lock")
	}
	defer p.lock.Unlock()

	base := p.freeBaseName(BaseName(stamp, voice), bundle.HasTranslation)
	published := &Published{
		BaseName:     base,
		AudioPath:    filepath.Join(p.dir, base+SuffixAudio),
		SubtitlePath: filepath.Join(p.dir, base+SuffixSubtitles),
	}

	contents := []fileContent{
		{published.AudioPath, bundle.Audio},
		{published.SubtitlePath, []byte(bundle.Subtitles)},
	}
	if bundle.HasTranslation {
		published.TranslatedPath = filepath.Join(p.dir, base+SuffixTranslated)
		published.BilingualPath = filepath.Join(p.dir, base+SuffixBilingual)
		contents = append(contents,
			fileContent{published.TranslatedPath, []byte(bundle.Translated)},
			fileContent{published.BilingualPath, []byte(bundle.Bilingual)},
		)
	}

	pending := make([]pendingFile, 0, len(contents))
	for _, c := range contents {
		tmp, err := p.writeTemp(base, c.data)
		if err != nil {
			discard(pending, 0)
			return nil, apperror.Storage(err, "write %s", filepath.Base(c.target))
		}
		pending = append(pending, pendingFile{tmp: tmp, target: c.target})
	}

	for i, f := range pending {
		if err := os.Rename(f.tmp, f.target); err != nil {
			discard(pending, i)
			return nil, apperror.Storage(err, "publish %s", filepath.Base(f.target))
		}
	}
	return published, nil
}

// freeBaseName returns base, or base-N for the smallest N >= 2 whose files
// do not exist. SanitizeVoice never emits '-', so a suffixed name cannot
// equal another voice's unsuffixed one.
func (p *Publisher) freeBaseName(base string, translated bool) string {
	suffixes := []string{SuffixAudio, SuffixSubtitles}
	if translated {
		suffixes = append(suffixes, SuffixTranslated, SuffixBilingual)
	}

	candidate := base
	for n := 2; ; n++ {
		taken := false
		for _, s := range suffixes {
			if _, err := os.Lstat(filepath.Join(p.dir, candidate+s)); err == nil {
				taken = true
				break
			}
		}
		if !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (p *Publisher) writeTemp(base string, data []byte) (string, error) {
	f, err := os.CreateTemp(p.dir, "."+base+"-*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// discard removes renamed targets before index renamed and temp files from there on
func discard(pending []pendingFile, renamed int) {
	for i, f := range pending {
		if i < renamed {
			os.Remove(f.target)
		} else {
			os.Remove(f.tmp)
		}
	}
}
