package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// UnknownArtist is used when a file carries no artist tag.
const UnknownArtist = "Unknown Artist"

// Info is what can be learned about an audio file without decoding it fully.
type Info struct {
	Title    string
	Artist   string
	Duration int // seconds, 0 when unknown
	Picture  *Picture
}

// Picture is embedded cover art.
type Picture struct {
	Data     []byte
	MIMEType string
	Ext      string
}

// Extractor handles metadata extraction from audio files
type Extractor struct {
	supportedFormats []string
	imageFormats     []string
	logger           *logrus.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Extractor{
		supportedFormats: supportedFormats,
		imageFormats:     []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
		logger:           logger,
	}
}

// ExtractFromFile opens path and extracts its metadata.
func (e *Extractor) ExtractFromFile(filePath string) (Info, error) {
	file, err := os.Open(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Error("Failed to open audio file")
		return Info{}, err
	}
	defer file.Close()

	return e.Extract(file, filepath.Base(filePath))
}

// Extract reads tags and duration from r. name supplies the format (by
// extension) and the fallback title. Missing tags are not an error; only a
// failure to rewind r is.
func (e *Extractor) Extract(r io.ReadSeeker, name string) (Info, error) {
	startTime := time.Now()
	fallbackTitle := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	duration, err := e.calculateDuration(r, name)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"name":  name,
			"error": err.Error(),
		}).Warn("Failed to calculate duration, setting to 0")
		duration = 0
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Info{}, fmt.Errorf("failed to rewind %s: %w", name, err)
	}

	info := Info{
		Title:    fallbackTitle,
		Artist:   UnknownArtist,
		Duration: duration,
	}

	metadata, err := tag.ReadFrom(r)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"name":  name,
			"error": err.Error(),
		}).Debug("No readable tags, using filename")
	} else {
		if title := strings.TrimSpace(metadata.Title()); title != "" {
			info.Title = title
		}
		if artist := strings.TrimSpace(metadata.Artist()); artist != "" {
			info.Artist = artist
		}
		if picture := metadata.Picture(); picture != nil && len(picture.Data) > 0 {
			info.Picture = &Picture{
				Data:     picture.Data,
				MIMEType: ImageContentType(picture.Data),
				Ext:      imageExt(picture),
			}
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Info{}, fmt.Errorf("failed to rewind %s: %w", name, err)
	}

	e.logger.WithFields(logrus.Fields{
		"name":           name,
		"title":          info.Title,
		"artist":         info.Artist,
		"duration":       info.Duration,
		"hasPicture":     info.Picture != nil,
		"processingTime": time.Since(startTime),
	}).Debug("Successfully extracted metadata")

	return info, nil
}

// calculateDuration calculates the duration of an audio stream in seconds
func (e *Extractor) calculateDuration(r io.ReadSeeker, name string) (int, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".mp3":
		return durationMP3(r)
	case ".flac":
		return durationFLAC(r)
	case ".wav":
		return durationWAV(r)
	case ".m4a":
		return durationM4A(r)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// MP3 duration using frame decoding; fallback to average bitrate estimation only if frames fail entirely.
func durationMP3(r io.ReadSeeker) (int, error) {
	dec := mp3.NewDecoder(r)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return estimateFromSize(r, 192000) // assume 192 kbps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds()), nil
}

// FLAC duration via STREAMINFO metadata block
func durationFLAC(r io.Reader) (int, error) {
	stream, err := flac.Parse(r)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration from the header and the stream size
func durationWAV(r io.ReadSeeker) (int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	pcmBytes := size - 44
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	secs := float64(pcmBytes/bytesPerSampleFrame) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// M4A duration from the mvhd atom inside moov. Best-effort.
func durationM4A(r io.ReadSeeker) (int, error) {
	head := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if string(head[4:8]) != "moov" {
			if _, err := r.Seek(int64(size)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}

		limit := int64(size) - 8
		for read := int64(0); read < limit; {
			if _, err := io.ReadFull(r, head); err != nil {
				return 0, err
			}
			subSize := binary.BigEndian.Uint32(head[0:4])
			if string(head[4:8]) == "mvhd" {
				return readMVHD(r)
			}
			if subSize < 8 {
				return 0, fmt.Errorf("invalid sub-atom size")
			}
			if _, err := r.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += int64(subSize)
		}
		return 0, fmt.Errorf("mvhd atom not found")
	}
}

func readMVHD(r io.ReadSeeker) (int, error) {
	version := make([]byte, 1)
	if _, err := io.ReadFull(r, version); err != nil {
		return 0, err
	}
	skip := int64(3 + 4 + 4) // flags + 32-bit times
	if version[0] == 1 {
		skip = 3 + 8 + 8
	}
	if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
		return 0, err
	}

	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	timescale := binary.BigEndian.Uint32(buf[0:4])
	units := binary.BigEndian.Uint32(buf[4:8])
	if timescale == 0 {
		return 0, fmt.Errorf("invalid timescale")
	}
	return int(float64(units)/float64(timescale) + 0.5), nil
}

// estimateFromSize provides last-resort estimation if parsing fails.
func estimateFromSize(r io.Seeker, bitrate int) (int, error) {
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return int((size * 8) / int64(bitrate)), nil
}

func imageExt(p *tag.Picture) string {
	if p.Ext != "" {
		return "." + strings.ToLower(strings.TrimPrefix(p.Ext, "."))
	}
	switch ImageContentType(p.Data) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// ImageContentType guesses MIME type from image data
func ImageContentType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}
	if data[0] == 0xFF && data[1] == 0xD8 {
		return "image/jpeg"
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 {
		return "image/gif"
	}
	return "application/octet-stream"
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(name string) bool {
	return hasExt(name, e.supportedFormats)
}

// IsImageFile checks if a file is a supported cover image format
func (e *Extractor) IsImageFile(name string) bool {
	return hasExt(name, e.imageFormats)
}

// SupportedFormats returns the accepted audio extensions.
func (e *Extractor) SupportedFormats() []string {
	return e.supportedFormats
}

func hasExt(name string, formats []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, format := range formats {
		if ext == format {
			return true
		}
	}
	return false
}

// ContentType returns the MIME type for an audio or image file name
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
