package td

// MessageContent is the closed set of message payload kinds.
type MessageContent interface {
	ContentType() string
	isContent()
}

type MessageText struct {
	Text string
}

type MessagePhoto struct {
	Caption string
	Photo   *File
}

type MessageVideo struct {
	Caption string
	Video   *File
}

type MessageVoiceNote struct {
	Caption  string
	Duration int32
	Voice    *File
}

type MessageAnimation struct {
	Caption   string
	Animation *File
}

type MessageSticker struct {
	Emoji   string
	Sticker *File
}

type MessageAnimatedEmoji struct {
	Emoji string
}

// MessageUnsupported stands for every payload this package does not model.
type MessageUnsupported struct {
	Kind string
}

func (*MessageText) ContentType() string          { return "text" }
func (*MessagePhoto) ContentType() string         { return "photo" }
func (*MessageVideo) ContentType() string         { return "video" }
func (*MessageVoiceNote) ContentType() string     { return "voice" }
func (*MessageAnimation) ContentType() string     { return "animation" }
func (*MessageSticker) ContentType() string       { return "sticker" }
func (*MessageAnimatedEmoji) ContentType() string { return "animatedEmoji" }
func (*MessageUnsupported) ContentType() string   { return "unsupported" }

func (*MessageText) isContent()          {}
func (*MessagePhoto) isContent()         {}
func (*MessageVideo) isContent()         {}
func (*MessageVoiceNote) isContent()     {}
func (*MessageAnimation) isContent()     {}
func (*MessageSticker) isContent()       {}
func (*MessageAnimatedEmoji) isContent() {}
func (*MessageUnsupported) isContent()   {}

// ContentFile returns the downloadable file attached to content, if any.
func ContentFile(c MessageContent) *File {
	switch c := c.(type) {
	case *MessagePhoto:
		return c.Photo
	case *MessageVideo:
		return c.Video
	case *MessageVoiceNote:
		return c.Voice
	case *MessageAnimation:
		return c.Animation
	case *MessageSticker:
		return c.Sticker
	}
	return nil
}
