package extract

import "github.com/dmitrijs2005/vidkeeper/internal/common"

const (
	formatVideo = "bestvideo+bestaudio/best"
	formatAudio = "bestaudio/best"

	containerVideo = "mp4"
	containerAudio = "mp3"
)

// Options is the declarative option set handed to the extraction tool.
type Options struct {
	OutputTemplate string
	Format         string
	WriteThumbnail bool
	CookieFile     string

	ExtractAudio bool
	AudioFormat  string
	AudioQuality string

	MergeOutputFormat string
	RemuxVideo        string
}

// optionsFor maps a requested quality tier onto tool options. Only "audio"
// is special; every other tier asks for the best video.
func optionsFor(quality, outputTemplate, cookieFile string) Options {
	o := Options{
		OutputTemplate: outputTemplate,
		WriteThumbnail: true,
		CookieFile:     cookieFile,
	}
	if quality == common.QualityAudio {
		o.Format = formatAudio
		o.ExtractAudio = true
		o.AudioFormat = containerAudio
		o.AudioQuality = "192K"
		return o
	}
	o.Format = formatVideo
	o.MergeOutputFormat = containerVideo
	o.RemuxVideo = containerVideo
	return o
}
