package probe

// ffprobeOutput mirrors the JSON document emitted by
// `ffprobe -show_streams -show_format -of json`.
//
// Every field is optional: RTSP encoders differ wildly in what they report,
// so nothing beyond "at least one stream entry" may be assumed. Numeric
// fields arrive as strings and may hold "N/A".
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	BitRate      string `json:"bit_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

type ffprobeFormat struct {
	BitRate string `json:"bit_rate"`
}

// StreamDescription holds the normalized media properties of one probe.
// Pointer fields are nil when the encoder did not report the value.
type StreamDescription struct {
	HasVideo bool
	HasAudio bool

	VideoCodec string // "" if no video stream
	AudioCodec string // "" if no audio stream

	FrameRate       *float64 // frames/second
	Width           *int
	Height          *int
	BitrateBPS      *int64 // from format or stream headers; samplers may fill later
	AudioChannels   *int
	AudioSampleRate *int // Hz
}
